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
	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	ARAvg      = "AR_avg"
	ARMin      = "AR_min"
	ARMinMax   = "AR_min/max"
	ARStd      = "AR_std"
	NDCGAvg    = "nDCG_avg"
	NDCGMin    = "nDCG_min"
	NDCGMinMax = "nDCG_min/max"
	NDCGStd    = "nDCG_std"
)

// MetricNames lists the metrics produced for every algorithm, in output order.
var MetricNames = []string{ARAvg, ARMin, ARMinMax, ARStd, NDCGAvg, NDCGMin, NDCGMinMax, NDCGStd}

// Group is a set of users sharing one recommendation list.
type Group struct {
	ID      int
	Members []int
}

// Recommendations maps a group id to the items recommended to the group, best first.
type Recommendations map[int][]int

// Result is the value of a metric for an algorithm.
type Result struct {
	Algorithm string
	Metric    string
	Value     float64
}

// SafeRatio returns numerator / denominator, or 0 if the denominator is exactly 0.
func SafeRatio(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// Summary reduces the values of group members.
type Summary struct {
	Avg    float64
	Min    float64
	MinMax float64
	Std    float64
}

// Summarize computes the mean, the minimum, the min/max ratio and the population standard
// deviation. The ratio is not clamped: if every value is negative it exceeds 1.
func Summarize(values []float64) Summary {
	mean, std := stat.PopMeanStdDev(values, nil)
	lower, upper := floats.Min(values), floats.Max(values)
	return Summary{
		Avg:    mean,
		Min:    lower,
		MinMax: SafeRatio(lower, upper),
		Std:    std,
	}
}

// Evaluator evaluates group recommendations of algorithms against a (normalized) rating matrix.
type Evaluator struct {
	ratings mat.Matrix
	groups  []Group
	idcg    []float64
}

// NewEvaluator creates an evaluator. Ideal DCG of every user is computed at cutoff topK.
func NewEvaluator(ratings mat.Matrix, groups []Group, topK int) *Evaluator {
	return &Evaluator{
		ratings: ratings,
		groups:  groups,
		idcg:    IdealDCG(ratings, topK),
	}
}

// IdealDCG returns the ideal DCG of a user.
func (e *Evaluator) IdealDCG(userIndex int) float64 {
	return e.idcg[userIndex]
}

// MemberScore is the reward of a group member for a recommendation list.
type MemberScore struct {
	User       int
	Rewards    []float64
	MeanReward float64
	DCG        float64
	NDCG       float64
}

// ScoreMember reads the ratings of a user for recommended items.
func (e *Evaluator) ScoreMember(userIndex int, items []int) (MemberScore, error) {
	numUsers, numItems := e.ratings.Dims()
	if userIndex < 0 || userIndex >= numUsers {
		return MemberScore{}, errors.NotValidf("user index %d out of range [0, %d)", userIndex, numUsers)
	}
	score := MemberScore{User: userIndex, Rewards: make([]float64, len(items))}
	for i, itemIndex := range items {
		if itemIndex < 0 || itemIndex >= numItems {
			return MemberScore{}, errors.NotValidf("item index %d out of range [0, %d)", itemIndex, numItems)
		}
		score.Rewards[i] = e.ratings.At(userIndex, itemIndex)
	}
	score.MeanReward = SafeRatio(floats.Sum(score.Rewards), float64(len(items)))
	score.DCG = DCG(score.Rewards)
	score.NDCG = SafeRatio(score.DCG, e.idcg[userIndex])
	return score, nil
}

// GroupScore holds the summaries of a group.
type GroupScore struct {
	Group int
	AR    Summary
	NDCG  Summary
}

// ScoreGroup evaluates the recommendation list of a group.
func (e *Evaluator) ScoreGroup(group Group, items []int) (GroupScore, error) {
	if len(group.Members) == 0 {
		return GroupScore{}, errors.NotValidf("group %d without members", group.ID)
	}
	meanRewards := make([]float64, len(group.Members))
	ndcgs := make([]float64, len(group.Members))
	for i, member := range group.Members {
		score, err := e.ScoreMember(member, items)
		if err != nil {
			return GroupScore{}, errors.Annotatef(err, "group %d", group.ID)
		}
		meanRewards[i] = score.MeanReward
		ndcgs[i] = score.NDCG
	}
	return GroupScore{
		Group: group.ID,
		AR:    Summarize(meanRewards),
		NDCG:  Summarize(ndcgs),
	}, nil
}

// Evaluate computes the metrics of an algorithm. Every metric is the mean of per-group values.
// A group without recommendations is an error.
func (e *Evaluator) Evaluate(algorithm string, recommendations Recommendations) ([]Result, error) {
	if len(e.groups) == 0 {
		return nil, errors.NotValidf("empty groups")
	}
	values := make(map[string][]float64, len(MetricNames))
	for _, group := range e.groups {
		items, exist := recommendations[group.ID]
		if !exist {
			return nil, errors.NotFoundf("recommendations of group %d for %s", group.ID, algorithm)
		}
		score, err := e.ScoreGroup(group, items)
		if err != nil {
			return nil, errors.Annotatef(err, "algorithm %s", algorithm)
		}
		values[ARAvg] = append(values[ARAvg], score.AR.Avg)
		values[ARMin] = append(values[ARMin], score.AR.Min)
		values[ARMinMax] = append(values[ARMinMax], score.AR.MinMax)
		values[ARStd] = append(values[ARStd], score.AR.Std)
		values[NDCGAvg] = append(values[NDCGAvg], score.NDCG.Avg)
		values[NDCGMin] = append(values[NDCGMin], score.NDCG.Min)
		values[NDCGMinMax] = append(values[NDCGMinMax], score.NDCG.MinMax)
		values[NDCGStd] = append(values[NDCGStd], score.NDCG.Std)
	}
	results := make([]Result, 0, len(MetricNames))
	for _, metric := range MetricNames {
		results = append(results, Result{
			Algorithm: algorithm,
			Metric:    metric,
			Value:     stat.Mean(values[metric], nil),
		})
	}
	return results, nil
}
