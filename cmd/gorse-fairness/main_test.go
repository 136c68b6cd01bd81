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
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/fairness/base/log"
	"github.com/gorse-io/fairness/config"
	"github.com/gorse-io/fairness/cv"
	"github.com/gorse-io/fairness/dataset"
	"github.com/gorse-io/fairness/model/fairness"
	"github.com/gorse-io/fairness/storage/blob"
	"github.com/gorse-io/fairness/storage/data"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestMain(m *testing.M) {
	log.CloseLogger()
	os.Exit(m.Run())
}

func writeFile(t *testing.T, path string, content []byte) {
	assert.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
	assert.NoError(t, os.WriteFile(path, content, 0644))
}

func TestApplyPathPrefix(t *testing.T) {
	cfg := config.GetDefaultConfig()
	applyPathPrefix(cfg, "/experiments")
	assert.Equal(t, "/experiments/data/ml1m", cfg.Data.Store)
	assert.Equal(t, "/experiments/results", cfg.Output.Store)

	cfg.Data.Store = "s3://gorse/ml1m"
	applyPathPrefix(cfg, "/other")
	assert.Equal(t, "s3://gorse/ml1m", cfg.Data.Store)
	assert.Equal(t, "/experiments/results", cfg.Output.Store)
}

func TestEvaluate(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data", "ml1m")
	for _, fold := range []string{"1", "2"} {
		var buf bytes.Buffer
		assert.NoError(t, dataset.WriteMatrix(&buf, mat.NewDense(2, 3, []float64{4, 2, 0, 0, 0, 5})))
		writeFile(t, filepath.Join(dataDir, fold, "mf_data.npy"), buf.Bytes())
	}
	writeFile(t, filepath.Join(dataDir, "sim_group_2"), []byte("1\t0\t1\n"))
	writeFile(t, filepath.Join(dataDir, "1", "sim", "2", "Best"), []byte("1\t0\n1\t2\n"))
	writeFile(t, filepath.Join(dataDir, "2", "sim", "2", "Best"), []byte("1\t2\n1\t0\n"))

	cfg := config.GetDefaultConfig()
	cfg.Evaluation.RatingNormalization = fairness.ShiftNonlinearNormalization
	cfg.Evaluation.GroupSizes = []int{2}
	cfg.Output.ResultStore = "sqlite://" + filepath.Join(root, "results.db")
	applyPathPrefix(cfg, root)

	var stdout bytes.Buffer
	err := evaluate(context.Background(), cfg, &stdout, nil)
	assert.NoError(t, err)
	name := "result_sim_2_c=0.0_norm_shift_nonlinear_identity_False"
	assert.Contains(t, stdout.String(), name)

	// report file
	r, err := blob.NewPOSIX(filepath.Join(root, "results")).Open(name)
	assert.NoError(t, err)
	content, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.NoError(t, r.Close())
	assert.Equal(t, "alg,group_type,group_size,AR_avg,AR_min,AR_min/max,AR_std,nDCG_avg,nDCG_min,nDCG_min/max,nDCG_std\n"+
		"Best,sim,2,2.25,2.0,0.8,0.25,0.718,0.555,0.655,0.162\n", string(content))

	// result store
	database, err := data.Open(cfg.Output.ResultStore, "")
	assert.NoError(t, err)
	defer database.Close()
	results, err := database.GetResults(context.Background(), name)
	assert.NoError(t, err)
	assert.Len(t, results, len(fairness.MetricNames))
	assert.NotEmpty(t, results[0].Batch)
}

func TestWriteReportJSON(t *testing.T) {
	store := blob.NewPOSIX(t.TempDir())
	report := &cv.Report{
		GroupType: "sim",
		GroupSize: 2,
		Normalization: fairness.NormalizationOptions{
			RatingNormalization: fairness.ShiftNonlinearNormalization,
		},
		Metrics: []string{fairness.NDCGAvg},
		Rows:    []cv.Row{{Algorithm: "Best", Values: []float64{0.5}}},
	}
	assert.NoError(t, writeReport(store, report, "json"))
	names, err := store.List()
	assert.NoError(t, err)
	assert.Equal(t, []string{"result_sim_2_c=0.0_norm_shift_nonlinear_identity_False.json"}, names)

	var stdout bytes.Buffer
	assert.NoError(t, renderReport(&stdout, report))
	assert.Contains(t, stdout.String(), "Best")
	assert.Contains(t, stdout.String(), "0.5")
}

func TestEvaluateMissingGroups(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Evaluation.RatingNormalization = fairness.ShiftNonlinearNormalization
	applyPathPrefix(cfg, t.TempDir())
	err := evaluate(context.Background(), cfg, io.Discard, nil)
	assert.Error(t, err)
}
