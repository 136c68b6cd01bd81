// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorse-io/fairness/base/log"
	"github.com/gorse-io/fairness/cmd/version"
	"github.com/gorse-io/fairness/config"
	"github.com/gorse-io/fairness/cv"
	"github.com/gorse-io/fairness/dataset"
	"github.com/gorse-io/fairness/storage/blob"
	"github.com/gorse-io/fairness/storage/data"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "gorse-fairness",
	Short: "Fairness evaluation of group recommendations",
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate recommendations of every fold and write reports",
	Run: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		defer func() { _ = log.Logger().Sync() }()

		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(configPath, cmd.Flags())
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}
		pathPrefix, _ := cmd.Flags().GetString("path-prefix")
		applyPathPrefix(cfg, pathPrefix)

		var progress io.Writer
		if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
			progress = os.Stderr
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err = evaluate(ctx, cfg, os.Stdout, progress); err != nil {
			log.Logger().Fatal("failed to evaluate", zap.Error(err))
		}
		if metricsFile, _ := cmd.Flags().GetString("metrics-file"); metricsFile != "" {
			if err = prometheus.WriteToTextfile(metricsFile, prometheus.DefaultGatherer); err != nil {
				log.Logger().Fatal("failed to write metrics", zap.String("path", metricsFile), zap.Error(err))
			}
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.BuildInfo())
	},
}

// applyPathPrefix joins a prefix with local data and output directories.
func applyPathPrefix(cfg *config.Config, prefix string) {
	if prefix == "" {
		return
	}
	join := func(dir string) string {
		if strings.Contains(dir, "://") || filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(prefix, dir)
	}
	cfg.Data.Store = join(cfg.Data.Store)
	cfg.Output.Store = join(cfg.Output.Store)
}

// evaluate runs the sweep. Each report is written to the output store, printed as a table
// and persisted to the result store if one is configured.
func evaluate(ctx context.Context, cfg *config.Config, stdout, progress io.Writer) error {
	dataStore, err := blob.Open(cfg.Data.Store, cfg.Data)
	if err != nil {
		return errors.Annotatef(err, "open data store %s", cfg.Data.Store)
	}
	outputStore, err := blob.Open(cfg.Output.Store, cfg.Data)
	if err != nil {
		return errors.Annotatef(err, "open output store %s", cfg.Output.Store)
	}
	var database data.Database
	if cfg.Output.ResultStore != "" {
		database, err = data.Open(cfg.Output.ResultStore, cfg.Output.TablePrefix)
		if err != nil {
			return errors.Annotatef(err, "open result store %s", log.RedactDBURL(cfg.Output.ResultStore))
		}
		defer database.Close()
		if err = database.Init(); err != nil {
			return errors.Trace(err)
		}
	}

	batch := uuid.NewString()
	log.Logger().Info("start evaluation",
		zap.String("batch", batch),
		zap.String("data_store", cfg.Data.Store),
		zap.String("output_store", cfg.Output.Store),
		zap.Strings("group_types", cfg.Evaluation.GroupTypes),
		zap.Ints("group_sizes", cfg.Evaluation.GroupSizes),
		zap.Float64s("constants", cfg.Evaluation.Constants()))
	runner := cv.NewRunner(dataset.NewLoader(dataStore))
	return runner.Sweep(ctx, cfg.Evaluation, progress, func(report *cv.Report) error {
		if err := writeReport(outputStore, report, cfg.Output.Format); err != nil {
			return errors.Trace(err)
		}
		if err := renderReport(stdout, report); err != nil {
			return errors.Trace(err)
		}
		if database != nil {
			if err := database.PutResults(ctx, toResults(report, batch, time.Now())); err != nil {
				return errors.Trace(err)
			}
		}
		log.Logger().Info("write report", zap.String("name", report.Name()), zap.Int("n_algorithms", len(report.Rows)))
		return nil
	})
}

// writeReport stores a report as CSV under its name or as JSON with a .json suffix.
func writeReport(store blob.Store, report *cv.Report, format string) error {
	name, content := report.Name(), []byte(report.CSV())
	if format == "json" {
		var err error
		if content, err = report.JSON(); err != nil {
			return errors.Trace(err)
		}
		name += ".json"
	}
	w, done, err := store.Create(name)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err = w.Write(content); err != nil {
		_ = w.Close()
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return errors.Trace(err)
	}
	<-done
	return nil
}

func renderReport(w io.Writer, report *cv.Report) error {
	if _, err := fmt.Fprintln(w, report.Name()); err != nil {
		return errors.Trace(err)
	}
	table := tablewriter.NewWriter(w)
	table.Header(lo.ToAnySlice(report.Header())...)
	for _, record := range report.Records() {
		if err := table.Append(record); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func toResults(report *cv.Report, batch string, timestamp time.Time) []data.Result {
	var results []data.Result
	for _, row := range report.Rows {
		for i, metric := range report.Metrics {
			results = append(results, data.Result{
				Run:       report.Name(),
				Batch:     batch,
				Algorithm: row.Algorithm,
				GroupType: report.GroupType,
				GroupSize: report.GroupSize,
				Metric:    metric,
				Value:     row.Values[i],
				Timestamp: timestamp,
			})
		}
	}
	return results
}

func init() {
	log.AddFlags(evaluateCmd.Flags())
	evaluateCmd.Flags().Bool("debug", false, "use debug log mode")
	evaluateCmd.Flags().StringP("config", "c", "", "configuration file path")
	evaluateCmd.Flags().Bool("progress", false, "show progress over folds")
	evaluateCmd.Flags().String("path-prefix", "", "prefix of local data and output directories")
	evaluateCmd.Flags().String("data-store", "", "data store (directory, s3://, gs:// or azblob:// URL)")
	evaluateCmd.Flags().String("output-store", "", "output store for reports")
	evaluateCmd.Flags().String("output-format", "", "report format (csv or json)")
	evaluateCmd.Flags().String("metrics-file", "", "write Prometheus metrics of the run to a text file")
	evaluateCmd.Flags().String("result-store", "", "database for results (sqlite://, mysql:// or postgres:// URL)")
	evaluateCmd.Flags().String("rating-normalization", "", "global rating normalization")
	evaluateCmd.Flags().String("user-rating-normalization", "", "per-user rating normalization")
	evaluateCmd.Flags().Bool("use-quadratic-amplification", false, "square ratings after normalization")
	evaluateCmd.Flags().Float64("normalization-c", 0, "constant of rating normalization")
	evaluateCmd.Flags().String("normalization-expr", "", "expression of norm_expression over x and c")
	evaluateCmd.Flags().Bool("use-all-constants", false, "evaluate every default normalization constant")
	evaluateCmd.Flags().StringSlice("group-types", nil, "group types")
	evaluateCmd.Flags().IntSlice("group-sizes", nil, "group sizes")
	evaluateCmd.Flags().IntP("jobs", "j", 1, "number of algorithms evaluated concurrently")
	rootCmd.AddCommand(evaluateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Logger().Fatal("failed to execute command", zap.Error(err))
	}
}
