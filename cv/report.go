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

package cv

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/goccy/go-json"
	"github.com/gorse-io/fairness/model/fairness"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Precision is the number of decimals kept in reports.
const Precision = 3

// Row holds the metric values of an algorithm, aligned with Report.Metrics.
type Row struct {
	Algorithm string
	Values    []float64
}

type Report struct {
	GroupType     string
	GroupSize     int
	Normalization fairness.NormalizationOptions
	Metrics       []string
	Rows          []Row
}

// Aggregate averages results by algorithm and metric. Metrics and algorithms are sorted
// lexicographically. An algorithm is averaged over the folds it appears in.
func Aggregate(results []fairness.Result, groupType string, groupSize int) *Report {
	metrics := mapset.NewSet[string]()
	algorithms := mapset.NewSet[string]()
	values := make(map[lo.Tuple2[string, string]][]float64)
	for _, result := range results {
		metrics.Add(result.Metric)
		algorithms.Add(result.Algorithm)
		key := lo.T2(result.Algorithm, result.Metric)
		values[key] = append(values[key], result.Value)
	}
	report := &Report{
		GroupType: groupType,
		GroupSize: groupSize,
		Metrics:   mapset.Sorted(metrics),
	}
	for _, algorithm := range mapset.Sorted(algorithms) {
		row := Row{Algorithm: algorithm, Values: make([]float64, len(report.Metrics))}
		for i, metric := range report.Metrics {
			if v, ok := values[lo.T2(algorithm, metric)]; ok {
				row.Values[i] = Round(stat.Mean(v, nil))
			} else {
				row.Values[i] = math.NaN()
			}
		}
		report.Rows = append(report.Rows, row)
	}
	return report
}

// Round rounds a value to Precision decimals.
func Round(v float64) float64 {
	scale := math.Pow10(Precision)
	return math.Round(v*scale) / scale
}

// FormatValue prints the shortest representation of a value that keeps at least one decimal.
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Name identifies a run by group type, group size and normalization.
func Name(groupType string, groupSize int, opts fairness.NormalizationOptions) string {
	userNormalization := opts.UserRatingNormalization
	if userNormalization == "" {
		userNormalization = fairness.IdentityUserNormalization
	}
	return fmt.Sprintf("result_%s_%d_c=%s_%s_%s_%s", groupType, groupSize,
		FormatValue(opts.Constant), opts.RatingNormalization, userNormalization,
		lo.Ternary(opts.QuadraticAmplification, "True", "False"))
}

func (r *Report) Name() string {
	return Name(r.GroupType, r.GroupSize, r.Normalization)
}

// Header returns column names.
func (r *Report) Header() []string {
	return append([]string{"alg", "group_type", "group_size"}, r.Metrics...)
}

// Records returns formatted rows.
func (r *Report) Records() [][]string {
	records := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		record := []string{row.Algorithm, r.GroupType, strconv.Itoa(r.GroupSize)}
		for _, v := range row.Values {
			record = append(record, FormatValue(v))
		}
		records = append(records, record)
	}
	return records
}

// CSV renders the report with a trailing newline after every line.
func (r *Report) CSV() string {
	var builder strings.Builder
	builder.WriteString(strings.Join(lo.Map(r.Header(), escape), ","))
	builder.WriteString("\n")
	for _, record := range r.Records() {
		builder.WriteString(strings.Join(lo.Map(record, escape), ","))
		builder.WriteString("\n")
	}
	return builder.String()
}

type jsonRow struct {
	Algorithm string              `json:"alg"`
	GroupType string              `json:"group_type"`
	GroupSize int                 `json:"group_size"`
	Metrics   map[string]*float64 `json:"metrics"`
}

// JSON renders the report as an array of rows. Missing values are null.
func (r *Report) JSON() ([]byte, error) {
	rows := make([]jsonRow, 0, len(r.Rows))
	for _, row := range r.Rows {
		metrics := make(map[string]*float64, len(r.Metrics))
		for i, metric := range r.Metrics {
			if v := row.Values[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				metrics[metric] = &v
			} else {
				metrics[metric] = nil
			}
		}
		rows = append(rows, jsonRow{
			Algorithm: row.Algorithm,
			GroupType: r.GroupType,
			GroupSize: r.GroupSize,
			Metrics:   metrics,
		})
	}
	return json.MarshalIndent(rows, "", "  ")
}

// Value returns the value of a metric for an algorithm.
func (r *Report) Value(algorithm, metric string) (float64, bool) {
	i := lo.IndexOf(r.Metrics, metric)
	if i < 0 {
		return 0, false
	}
	row, ok := lo.Find(r.Rows, func(row Row) bool { return row.Algorithm == algorithm })
	if !ok {
		return 0, false
	}
	return row.Values[i], true
}

// escape quotes a field containing a separator, a quote or a line break.
func escape(text string, _ int) string {
	if !strings.ContainsAny(text, ",\"\r\n") {
		return text
	}
	return `"` + strings.ReplaceAll(text, `"`, `""`) + `"`
}
