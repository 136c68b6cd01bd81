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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluatedFolds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gorse",
		Subsystem: "fairness",
		Name:      "evaluated_folds_total",
	})
	EvaluatedAlgorithms = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gorse",
		Subsystem: "fairness",
		Name:      "evaluated_algorithms_total",
	}, []string{"algorithm"})
	EvaluateFoldSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gorse",
		Subsystem: "fairness",
		Name:      "evaluate_fold_seconds",
	})
)
