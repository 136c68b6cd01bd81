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

package dataset

import (
	"bytes"
	"testing"

	"github.com/gorse-io/fairness/model/fairness"
	"github.com/gorse-io/fairness/storage/blob"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gonum.org/v1/gonum/mat"
)

type LoaderTestSuite struct {
	suite.Suite
	store  *blob.POSIX
	loader *Loader
}

func (suite *LoaderTestSuite) SetupTest() {
	suite.store = blob.NewPOSIX(suite.T().TempDir())
	suite.writeMatrix("2/mf_data.npy", mat.NewDense(2, 3, []float64{5, 3, 0, 1, 0, 4}))
	suite.writeMatrix("10/mf_data.npy", mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}))
	suite.writeMatrix("1/mf_data.npy", mat.NewDense(2, 3, []float64{0, 0, 0, 0, 0, 0}))
	suite.writeFile("stats/mf_data.npy", "")
	suite.writeFile("sim_group_2", "7\t0\t1\n8\t1\t0\n")
	suite.writeFile("div_group_2", "7\t0\n")
	suite.writeFile("2/sim/2/ItemKNN", "7\t0\t0.9\n7\t2\n8\t1\n")
	suite.writeFile("2/sim/2/BPR", "7\t1\n")
	suite.writeFile("2/sim/2/nested/ALS", "7\t1\n")
	suite.writeFile("2/sim/4/ALS", "7\t1\n")
	suite.writeFile("2/sim/2/Broken", "7\n")
	suite.loader = NewLoader(suite.store)
}

func (suite *LoaderTestSuite) writeFile(name, content string) {
	w, done, err := suite.store.Create(name)
	suite.NoError(err)
	_, err = w.Write([]byte(content))
	suite.NoError(err)
	suite.NoError(w.Close())
	<-done
}

func (suite *LoaderTestSuite) writeMatrix(name string, m mat.Matrix) {
	var buf bytes.Buffer
	suite.NoError(WriteMatrix(&buf, m))
	suite.writeFile(name, buf.String())
}

func (suite *LoaderTestSuite) TestListFolds() {
	folds, err := suite.loader.ListFolds()
	suite.NoError(err)
	suite.Equal([]int{1, 2, 10}, folds)
}

func (suite *LoaderTestSuite) TestLoadRatingMatrix() {
	m, err := suite.loader.LoadRatingMatrix(2)
	suite.NoError(err)
	suite.Equal([]float64{5, 3, 0}, mat.Row(nil, 0, m))
	suite.Equal([]float64{1, 0, 4}, mat.Row(nil, 1, m))

	_, err = suite.loader.LoadRatingMatrix(3)
	suite.True(errors.Is(err, errors.NotFound))
}

func (suite *LoaderTestSuite) TestLoadGroups() {
	groups, err := suite.loader.LoadGroups("sim", 2)
	suite.NoError(err)
	suite.Equal([]fairness.Group{
		{ID: 7, Members: []int{0, 1}},
		{ID: 8, Members: []int{1, 0}},
	}, groups)

	_, err = suite.loader.LoadGroups("div", 2)
	suite.True(errors.Is(err, errors.NotValid))
	suite.ErrorContains(err, "div_group_2")

	_, err = suite.loader.LoadGroups("random", 2)
	suite.True(errors.Is(err, errors.NotFound))
}

func (suite *LoaderTestSuite) TestListAlgorithms() {
	algorithms, err := suite.loader.ListAlgorithms(2, "sim", 2)
	suite.NoError(err)
	suite.Equal([]string{"BPR", "Broken", "ItemKNN"}, algorithms)

	algorithms, err = suite.loader.ListAlgorithms(1, "sim", 2)
	suite.NoError(err)
	suite.Empty(algorithms)
}

func (suite *LoaderTestSuite) TestLoadRecommendations() {
	recommendations, err := suite.loader.LoadRecommendations(2, "sim", 2, "ItemKNN")
	suite.NoError(err)
	suite.Equal(fairness.Recommendations{7: {0, 2}, 8: {1}}, recommendations)

	_, err = suite.loader.LoadRecommendations(2, "sim", 2, "Broken")
	suite.True(errors.Is(err, errors.NotValid))
}

func TestLoader(t *testing.T) {
	suite.Run(t, new(LoaderTestSuite))
}

func TestReadMatrix(t *testing.T) {
	_, err := ReadMatrix(bytes.NewReader([]byte("not a numpy file")))
	assert.Error(t, err)

	var buf bytes.Buffer
	assert.NoError(t, WriteMatrix(&buf, mat.NewDense(1, 2, []float64{0.5, -1})))
	m, err := ReadMatrix(&buf)
	assert.NoError(t, err)
	assert.Equal(t, []float64{0.5, -1}, mat.Row(nil, 0, m))
}
