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

// Package cv evaluates recommendation algorithms over cross-validation folds and
// reduces per-fold metrics into reports.
package cv

import (
	"context"
	"io"
	"time"

	"github.com/gorse-io/fairness/base/log"
	"github.com/gorse-io/fairness/common/parallel"
	"github.com/gorse-io/fairness/config"
	"github.com/gorse-io/fairness/model/fairness"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Provider supplies folds, groups and recommendations.
type Provider interface {
	// ListFolds returns fold identifiers in ascending order.
	ListFolds() ([]int, error)
	LoadRatingMatrix(fold int) (*mat.Dense, error)
	LoadGroups(groupType string, groupSize int) ([]fairness.Group, error)
	ListAlgorithms(fold int, groupType string, groupSize int) ([]string, error)
	LoadRecommendations(fold int, groupType string, groupSize int, algorithm string) (fairness.Recommendations, error)
}

type Options struct {
	GroupType     string
	GroupSize     int
	Normalization fairness.NormalizationOptions
	TopK          int
	Jobs          int
	// Progress receives a progress bar over folds if not nil.
	Progress io.Writer
}

type Runner struct {
	provider Provider
}

func NewRunner(provider Provider) *Runner {
	return &Runner{provider: provider}
}

// Run evaluates every algorithm of every fold for a group type and size, then averages
// metrics across the folds each algorithm appears in.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = fairness.DefaultTopK
	}
	normalizer, err := fairness.NewNormalizer(opts.Normalization)
	if err != nil {
		return nil, errors.Trace(err)
	}
	groups, err := r.provider.LoadGroups(opts.GroupType, opts.GroupSize)
	if err != nil {
		return nil, errors.Trace(err)
	}
	folds, err := r.provider.ListFolds()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(folds) == 0 {
		log.Logger().Warn("no folds found",
			zap.String("group_type", opts.GroupType), zap.Int("group_size", opts.GroupSize))
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(folds),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription(Name(opts.GroupType, opts.GroupSize, opts.Normalization)),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish())
	}

	var results []fairness.Result
	for _, fold := range folds {
		foldResults, err := r.evaluateFold(ctx, fold, groups, normalizer, topK, opts)
		if err != nil {
			return nil, errors.Annotatef(err, "fold %d", fold)
		}
		results = append(results, foldResults...)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	report := Aggregate(results, opts.GroupType, opts.GroupSize)
	report.Normalization = opts.Normalization
	return report, nil
}

func (r *Runner) evaluateFold(ctx context.Context, fold int, groups []fairness.Group, normalizer *fairness.Normalizer, topK int, opts Options) ([]fairness.Result, error) {
	start := time.Now()
	ratings, err := r.provider.LoadRatingMatrix(fold)
	if err != nil {
		return nil, errors.Trace(err)
	}
	normalized, err := normalizer.Normalize(ratings)
	if err != nil {
		return nil, errors.Trace(err)
	}
	evaluator := fairness.NewEvaluator(normalized, groups, topK)
	algorithms, err := r.provider.ListAlgorithms(fold, opts.GroupType, opts.GroupSize)
	if err != nil {
		return nil, errors.Trace(err)
	}
	numUsers, numItems := normalized.Dims()
	log.Logger().Info("evaluate fold",
		zap.Int("fold", fold),
		zap.Int("n_users", numUsers),
		zap.Int("n_items", numItems),
		zap.Int("n_groups", len(groups)),
		zap.Int("n_algorithms", len(algorithms)))

	// each algorithm writes to its own slot
	slots := make([][]fairness.Result, len(algorithms))
	err = parallel.Parallel(ctx, len(algorithms), opts.Jobs, func(_, jobId int) error {
		algorithm := algorithms[jobId]
		recommendations, err := r.provider.LoadRecommendations(fold, opts.GroupType, opts.GroupSize, algorithm)
		if err != nil {
			return errors.Trace(err)
		}
		slots[jobId], err = evaluator.Evaluate(algorithm, recommendations)
		if err != nil {
			return errors.Trace(err)
		}
		EvaluatedAlgorithms.WithLabelValues(algorithm).Inc()
		log.Logger().Debug("evaluate algorithm", zap.Int("fold", fold), zap.String("algorithm", algorithm))
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	var results []fairness.Result
	for _, slot := range slots {
		results = append(results, slot...)
	}
	EvaluatedFolds.Inc()
	EvaluateFoldSeconds.Observe(time.Since(start).Seconds())
	return results, nil
}

// Sweep runs every combination of group type, group size and normalization constant.
// Reports are passed to handle in that order.
func (r *Runner) Sweep(ctx context.Context, cfg config.EvaluationConfig, progress io.Writer, handle func(*Report) error) error {
	constants := cfg.Constants()
	for _, groupType := range cfg.GroupTypes {
		for _, groupSize := range cfg.GroupSizes {
			for _, constant := range constants {
				report, err := r.Run(ctx, Options{
					GroupType:     groupType,
					GroupSize:     groupSize,
					Normalization: cfg.NormalizationOptions(constant),
					TopK:          cfg.TopK,
					Jobs:          cfg.NumJobs,
					Progress:      progress,
				})
				if err != nil {
					return errors.Trace(err)
				}
				if err = handle(report); err != nil {
					return errors.Trace(err)
				}
			}
		}
	}
	return nil
}
