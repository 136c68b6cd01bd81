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
	"io"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/sbinet/npyio/npy"
	"gonum.org/v1/gonum/mat"
)

// ReadMatrix decodes a two-dimensional NumPy array into a dense float64 matrix.
// Floating point and integer element types are converted.
func ReadMatrix(r io.Reader) (*mat.Dense, error) {
	reader, err := npy.NewReader(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	shape := reader.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, errors.NotValidf("array of shape %v", shape)
	}
	rows, cols := shape[0], shape[1]
	if rows == 0 || cols == 0 {
		return nil, errors.NotValidf("empty array of shape %v", shape)
	}
	var values []float64
	switch dtype := reader.Header.Descr.Type; dtype {
	case "<f8", "f8":
		err = reader.Read(&values)
	case "<f4", "f4":
		values, err = readConverted[float32](reader)
	case "<i8", "i8":
		values, err = readConverted[int64](reader)
	case "<i4", "i4":
		values, err = readConverted[int32](reader)
	default:
		return nil, errors.NotSupportedf("array type %s", dtype)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	if reader.Header.Descr.Fortran {
		// column-major storage
		m := mat.NewDense(cols, rows, values)
		return mat.DenseCopyOf(m.T()), nil
	}
	return mat.NewDense(rows, cols, values), nil
}

func readConverted[T float32 | int64 | int32](reader *npy.Reader) ([]float64, error) {
	var raw []T
	if err := reader.Read(&raw); err != nil {
		return nil, err
	}
	return lo.Map(raw, func(v T, _ int) float64 { return float64(v) }), nil
}

// WriteMatrix encodes a matrix as a NumPy array of float64.
func WriteMatrix(w io.Writer, m mat.Matrix) error {
	return errors.Trace(npy.Write(w, m))
}
