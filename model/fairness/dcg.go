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

package fairness

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// DefaultTopK is the cutoff of ideal DCG.
const DefaultTopK = 20

// DCG means Discounted Cumulative Gain.
//
//	DCG = \sum^{N}_{i=1} \frac {rel_i} {\log_2(i+1)}
func DCG(values []float64) float64 {
	dcg := 0.0
	for i, value := range values {
		dcg += value / math.Log2(float64(i)+2)
	}
	return dcg
}

// IdealDCG computes the best achievable DCG of every user (row) in the rating matrix: ratings
// are sorted in descending order and cut at topK before DCG is computed. The returned slice
// is indexed by user.
func IdealDCG(ratings mat.Matrix, topK int) []float64 {
	numUsers, numItems := ratings.Dims()
	idcg := make([]float64, numUsers)
	row := make([]float64, numItems)
	for userIndex := 0; userIndex < numUsers; userIndex++ {
		mat.Row(row, userIndex, ratings)
		idcg[userIndex] = DCG(topValues(row, topK))
	}
	return idcg
}

// topValues sorts values in descending order in place and returns at most k of them.
func topValues(values []float64, k int) []float64 {
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))
	if k < len(values) {
		return values[:k]
	}
	return values
}
