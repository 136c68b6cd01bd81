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
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Epsilon is the lower bound of shifted ratings. Zero ratings would break ratio metrics.
const Epsilon = 1e-6

const (
	IdentityUserNormalization   = "identity"
	MinMaxUserNormalization     = "u_norm_min_max_scaler"
	ShiftNonlinearNormalization = "norm_shift_nonlinear"
	ExpressionNormalization     = "norm_expression"
)

// UserNormalization transforms the ratings of a single user in place.
type UserNormalization func(row []float64)

// RatingNormalization builds an elementwise transform from the normalization constant and an
// optional expression.
type RatingNormalization func(c float64, expression string) (func(float64) (float64, error), error)

var userNormalizations = map[string]UserNormalization{
	IdentityUserNormalization: func([]float64) {},
	MinMaxUserNormalization:   minMaxScale,
}

var ratingNormalizations = map[string]RatingNormalization{
	ShiftNonlinearNormalization: shiftNonlinear,
	ExpressionNormalization:     compileExpression,
}

// UserNormalizations returns the names of registered per-user normalizations.
func UserNormalizations() []string {
	names := lo.Keys(userNormalizations)
	sort.Strings(names)
	return names
}

// RatingNormalizations returns the names of registered global normalizations.
func RatingNormalizations() []string {
	names := lo.Keys(ratingNormalizations)
	sort.Strings(names)
	return names
}

// minMaxScale rescales a row into [0, 1]. A constant row becomes all zeros.
func minMaxScale(row []float64) {
	if len(row) == 0 {
		return
	}
	lower, upper := floats.Min(row), floats.Max(row)
	scale := upper - lower
	if scale == 0 {
		scale = 1
	}
	for i := range row {
		row[i] = (row[i] - lower) / scale
	}
}

func shiftNonlinear(c float64, _ string) (func(float64) (float64, error), error) {
	return func(v float64) (float64, error) {
		return max(Epsilon, v+c), nil
	}, nil
}

// compileExpression compiles an expression over the rating `x` and the constant `c`, for
// example `max(1e-6, x + c)` or `exp(x * c)`.
func compileExpression(c float64, expression string) (func(float64) (float64, error), error) {
	if expression == "" {
		return nil, errors.NotValidf("empty expression for %s", ExpressionNormalization)
	}
	program, err := expr.Compile(expression,
		expr.Env(map[string]any{"x": 0.0, "c": 0.0}),
		expr.AsFloat64())
	if err != nil {
		return nil, errors.Annotatef(err, "failed to compile expression %q", expression)
	}
	var machine vm.VM
	env := map[string]any{"c": c}
	return func(v float64) (float64, error) {
		env["x"] = v
		out, err := machine.Run(program, env)
		if err != nil {
			return 0, errors.Trace(err)
		}
		return out.(float64), nil
	}, nil
}

// NormalizationOptions selects the transforms applied to a rating matrix.
type NormalizationOptions struct {
	RatingNormalization     string
	UserRatingNormalization string
	QuadraticAmplification  bool
	Constant                float64
	Expression              string
}

// Normalizer applies a per-user normalization, a global normalization and an optional
// quadratic amplification, in this order. A Normalizer must not be shared between goroutines.
type Normalizer struct {
	user      UserNormalization
	rating    func(float64) (float64, error)
	quadratic bool
}

// NewNormalizer resolves normalization names. Unknown names are reported as not supported.
func NewNormalizer(opts NormalizationOptions) (*Normalizer, error) {
	userName := opts.UserRatingNormalization
	if userName == "" {
		userName = IdentityUserNormalization
	}
	user, ok := userNormalizations[userName]
	if !ok {
		return nil, errors.NotSupportedf("user rating normalization %q", userName)
	}
	build, ok := ratingNormalizations[opts.RatingNormalization]
	if !ok {
		return nil, errors.NotSupportedf("rating normalization %q", opts.RatingNormalization)
	}
	rating, err := build(opts.Constant, opts.Expression)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Normalizer{
		user:      user,
		rating:    rating,
		quadratic: opts.QuadraticAmplification,
	}, nil
}

// Normalize returns a transformed copy of the rating matrix. The input is never modified.
func (n *Normalizer) Normalize(ratings mat.Matrix) (*mat.Dense, error) {
	numUsers, numItems := ratings.Dims()
	normalized := mat.NewDense(numUsers, numItems, nil)
	row := make([]float64, numItems)
	for userIndex := 0; userIndex < numUsers; userIndex++ {
		mat.Row(row, userIndex, ratings)
		n.user(row)
		for i, v := range row {
			v, err := n.rating(v)
			if err != nil {
				return nil, errors.Annotatef(err, "failed to normalize rating of user %d", userIndex)
			}
			if n.quadratic {
				v *= v
			}
			row[i] = v
		}
		normalized.SetRow(userIndex, row)
	}
	return normalized, nil
}
