// Package matrix provides universal operations on any Matrix implementation,
// including element-wise addition, subtraction, matrix multiplication,
// transpose, and scalar scaling. All functions perform strict
// fail-fast validation and return clear errors on dimension mismatches.
//
// Purpose:
//   - Declare canonical linear-algebra kernels (signatures) used across the package.
//   - Define operation tags and shared constants for determinism and error reporting.
//
// Notes:
//   - Implementations live in this file to keep roles clean.
//   - All kernels must use central validators and return plain sentinels or wrapped via matrixErrorf at the facade.
package matrix

import (
	"fmt"
)

// Operation name constants for unified error wrapping and reducing magic strings.
const (
	opAdd       = "Add"
	opSub       = "Sub"
	opMul       = "Mul"
	opMulInto   = "MulInto"
	opTranspose = "Transpose"
	opScale     = "Scale"
	opMatVec    = "MatVec"
)

// matrixErrorf wraps an underlying error with the given tag.
func matrixErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}

// Add returns a new Matrix containing the element-wise sum of a and b.
//
// Contract:
//   - a, b must be non-nil and have identical shapes.
//
// Determinism & Performance:
//   - Loop order is fixed (flat 0..n-1 in fast path; i→j in fallback).
//   - Single allocation for the result; no temps inside loops.
//
// Complexity: Time O(r*c), Space O(r*c).
func Add(a, b Matrix) (Matrix, error) {
	if err := ValidateNotNil(a); err != nil {
		return nil, matrixErrorf(opAdd, err)
	}
	if err := ValidateNotNil(b); err != nil {
		return nil, matrixErrorf(opAdd, err)
	}
	if err := ValidateSameShape(a, b); err != nil {
		return nil, matrixErrorf(opAdd, err)
	}

	rows, cols := a.Rows(), a.Cols()
	res, err := NewDense(rows, cols)
	if err != nil {
		return nil, matrixErrorf(opAdd, err)
	}

	if da, okA := a.(*Dense); okA {
		if db, okB := b.(*Dense); okB {
			length := rows * cols
			for idx := 0; idx < length; idx++ {
				res.data[idx] = da.data[idx] + db.data[idx]
			}

			return res, nil
		}
	}

	var i, j int
	var av, bv float64
	for i = 0; i < rows; i++ {
		for j = 0; j < cols; j++ {
			av, _ = a.At(i, j)
			bv, _ = b.At(i, j)
			_ = res.Set(i, j, av+bv)
		}
	}

	return res, nil
}

// Sub returns a new Matrix with the element-wise difference a - b.
//
// Contract: non-nil inputs, identical shapes.
// Determinism: fixed loop order (fast: flat; fallback: i→j).
// Complexity: Time O(r*c), Space O(r*c).
func Sub(a, b Matrix) (Matrix, error) {
	if err := ValidateNotNil(a); err != nil {
		return nil, matrixErrorf(opSub, err)
	}
	if err := ValidateNotNil(b); err != nil {
		return nil, matrixErrorf(opSub, err)
	}
	if err := ValidateSameShape(a, b); err != nil {
		return nil, matrixErrorf(opSub, err)
	}

	rows, cols := a.Rows(), a.Cols()
	res, err := NewDense(rows, cols)
	if err != nil {
		return nil, matrixErrorf(opSub, err)
	}

	if da, okA := a.(*Dense); okA {
		if db, okB := b.(*Dense); okB {
			length := rows * cols
			for idx := 0; idx < length; idx++ {
				res.data[idx] = da.data[idx] - db.data[idx]
			}

			return res, nil
		}
	}

	var (
		i, j   int
		av, bv float64
	)
	for i = 0; i < rows; i++ {
		for j = 0; j < cols; j++ {
			av, _ = a.At(i, j)
			bv, _ = b.At(i, j)
			_ = res.Set(i, j, av-bv)
		}
	}

	return res, nil
}

// Mul performs standard matrix multiplication c = a × b.
//
// Contract:
//   - a, b non-nil; a.Cols() == b.Rows().
//
// Determinism & Performance:
//   - Fast path (*Dense×*Dense) uses fixed i→k→j with row-major strides.
//   - Fallback uses fixed i→j→k; both orders are stable across runs.
//
// Complexity: Time O(r*n*c), Space O(r*c).
func Mul(a, b Matrix) (Matrix, error) {
	if err := ValidateNotNil(a); err != nil {
		return nil, matrixErrorf(opMul, err)
	}
	if err := ValidateNotNil(b); err != nil {
		return nil, matrixErrorf(opMul, err)
	}
	if a.Cols() != b.Rows() {
		return nil, matrixErrorf(opMul, ErrDimensionMismatch)
	}

	aRows, bCols := a.Rows(), b.Cols()
	res, err := NewDense(aRows, bCols)
	if err != nil {
		return nil, matrixErrorf(opMul, err)
	}
	if err := mulInto(res, a, b); err != nil {
		return nil, matrixErrorf(opMul, err)
	}

	return res, nil
}

// MulInto multiplies a × b into a pre-allocated dst, avoiding an allocation
// per call. dst must already have shape a.Rows() × b.Cols(); its prior
// contents are overwritten (not accumulated).
//
// Contract: dst, a, b non-nil; a.Cols() == b.Rows(); dst shape matches.
// Complexity: Time O(r*n*c), Space O(1) extra (writes into dst).
func MulInto(dst, a, b Matrix) error {
	if err := ValidateNotNil(dst); err != nil {
		return matrixErrorf(opMulInto, err)
	}
	if err := ValidateNotNil(a); err != nil {
		return matrixErrorf(opMulInto, err)
	}
	if err := ValidateNotNil(b); err != nil {
		return matrixErrorf(opMulInto, err)
	}
	if a.Cols() != b.Rows() {
		return matrixErrorf(opMulInto, ErrDimensionMismatch)
	}
	if dst.Rows() != a.Rows() || dst.Cols() != b.Cols() {
		return matrixErrorf(opMulInto, ErrDimensionMismatch)
	}

	return mulInto(dst, a, b)
}

// mulInto is the unchecked multiply kernel shared by Mul and MulInto.
func mulInto(dst, a, b Matrix) error {
	aRows, aCols, bCols := a.Rows(), a.Cols(), b.Cols()

	dd, okDst := dst.(*Dense)
	da, okA := a.(*Dense)
	db, okB := b.(*Dense)
	if okDst && okA && okB {
		for idx := range dd.data {
			dd.data[idx] = 0
		}
		var i, j, k, rowOffsetA, rowOffsetB, rowOffsetR int
		var av float64
		for i = 0; i < aRows; i++ {
			rowOffsetA = i * aCols
			rowOffsetR = i * bCols
			for k = 0; k < aCols; k++ {
				av = da.data[rowOffsetA+k]
				if av == 0 {
					continue
				}
				rowOffsetB = k * bCols
				for j = 0; j < bCols; j++ {
					dd.data[rowOffsetR+j] += av * db.data[rowOffsetB+j]
				}
			}
		}

		return nil
	}

	var i, j, k int
	var av, bv, current float64
	for i = 0; i < aRows; i++ {
		for j = 0; j < bCols; j++ {
			current = 0.0
			for k = 0; k < aCols; k++ {
				av, _ = a.At(i, k)
				if av == 0 {
					continue
				}
				bv, _ = b.At(k, j)
				current += av * bv
			}
			_ = dst.Set(i, j, current)
		}
	}

	return nil
}

// Transpose returns a new Matrix with rows and columns swapped.
//
// Contract: m non-nil.
// Determinism: fixed i→j; fast path copies via flat indices.
// Complexity: Time O(r*c), Space O(r*c).
func Transpose(m Matrix) (Matrix, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opTranspose, err)
	}

	rows, cols := m.Rows(), m.Cols()
	res, err := NewDense(cols, rows)
	if err != nil {
		return nil, matrixErrorf(opTranspose, err)
	}

	var i, j int
	if dm, ok := m.(*Dense); ok {
		var baseSrc int
		for i = 0; i < rows; i++ {
			baseSrc = i * cols
			for j = 0; j < cols; j++ {
				res.data[j*rows+i] = dm.data[baseSrc+j]
			}
		}
		return res, nil
	}

	var v float64
	for i = 0; i < rows; i++ {
		for j = 0; j < cols; j++ {
			v, _ = m.At(i, j)
			_ = res.Set(j, i, v)
		}
	}

	return res, nil
}

// Scale returns a new Matrix with each element of m multiplied by alpha.
//
// Contract: m non-nil.
// Determinism: flat loop (fast) or i→j (fallback).
// Complexity: Time O(r*c), Space O(r*c).
func Scale(m Matrix, alpha float64) (Matrix, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opScale, err)
	}

	rows, cols := m.Rows(), m.Cols()
	res, err := NewDense(rows, cols)
	if err != nil {
		return nil, matrixErrorf(opScale, err)
	}

	if dm, ok := m.(*Dense); ok {
		n := rows * cols
		for idx := 0; idx < n; idx++ {
			res.data[idx] = dm.data[idx] * alpha
		}
		return res, nil
	}

	var i, j int
	var v float64
	for i = 0; i < rows; i++ {
		for j = 0; j < cols; j++ {
			v, _ = m.At(i, j)
			_ = res.Set(i, j, v*alpha)
		}
	}

	return res, nil
}

// ScaleInPlace multiplies every element of m by alpha without allocating.
// Falls back to At/Set for non-*Dense implementations.
//
// Contract: m non-nil.
// Complexity: Time O(r*c), Space O(1).
func ScaleInPlace(m Matrix, alpha float64) error {
	if err := ValidateNotNil(m); err != nil {
		return matrixErrorf(opScale, err)
	}

	if dm, ok := m.(*Dense); ok {
		n := dm.r * dm.c
		for idx := 0; idx < n; idx++ {
			dm.data[idx] *= alpha
		}
		return nil
	}

	rows, cols := m.Rows(), m.Cols()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v, err := m.At(i, j)
			if err != nil {
				return matrixErrorf(opScale, err)
			}
			if err := m.Set(i, j, v*alpha); err != nil {
				return matrixErrorf(opScale, err)
			}
		}
	}

	return nil
}

// MatVec computes y = m * x for a column vector x.
//
// Contract: m non-nil; x non-nil; len(x) == m.Cols().
// Fast-path: *Dense performs one pass per row with flat indexing.
// Determinism: fixed i→j loop order.
// Complexity: Time O(r*c), Space O(r) for y.
func MatVec(m Matrix, x []float64) ([]float64, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opMatVec, err)
	}
	if err := ValidateVecLen(x, m.Cols()); err != nil {
		return nil, matrixErrorf(opMatVec, err)
	}
	rows, cols := m.Rows(), m.Cols()
	y := make([]float64, rows)

	if d, ok := m.(*Dense); ok {
		var i, j, base int
		var acc, xv float64
		for i = 0; i < d.r; i++ {
			acc = 0
			base = i * d.c
			for j = 0; j < d.c; j++ {
				xv = x[j]
				if xv != 0 {
					acc += d.data[base+j] * xv
				}
			}
			y[i] = acc
		}

		return y, nil
	}

	var i, j int
	var mv float64
	for i = 0; i < rows; i++ {
		y[i] = 0
		for j = 0; j < cols; j++ {
			mv, _ = m.At(i, j)
			y[i] += mv * x[j]
		}
	}

	return y, nil
}

// L1Norm returns Σ|m_ij| over all elements.
//
// Contract: m non-nil.
// Complexity: Time O(r*c), Space O(1).
func L1Norm(m Matrix) (float64, error) {
	if err := ValidateNotNil(m); err != nil {
		return 0, matrixErrorf(opScale, err)
	}

	var s float64
	if dm, ok := m.(*Dense); ok {
		for _, v := range dm.data {
			if v < 0 {
				v = -v
			}
			s += v
		}
		return s, nil
	}

	rows, cols := m.Rows(), m.Cols()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v, err := m.At(i, j)
			if err != nil {
				return 0, matrixErrorf(opScale, err)
			}
			if v < 0 {
				v = -v
			}
			s += v
		}
	}

	return s, nil
}
