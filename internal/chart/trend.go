package chart

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// trendMinSamples is the window size above which trend lines are drawn.
const trendMinSamples = 20

// fitQuadratic returns the least-squares coefficients c0, c1, c2 of
// y = c0 + c1*x + c2*x^2.
func fitQuadratic(xs, ys []float64) ([3]float64, error) {
	var coef [3]float64
	if len(xs) != len(ys) {
		return coef, fmt.Errorf("fit: %d xs for %d ys", len(xs), len(ys))
	}
	if len(xs) < 3 {
		return coef, fmt.Errorf("fit: need at least 3 points, got %d", len(xs))
	}
	a := mat.NewDense(len(xs), 3, nil)
	for i, x := range xs {
		a.Set(i, 0, 1)
		a.Set(i, 1, x)
		a.Set(i, 2, x*x)
	}
	var beta mat.VecDense
	if err := beta.SolveVec(a, mat.NewVecDense(len(ys), append([]float64(nil), ys...))); err != nil {
		return coef, fmt.Errorf("fit: %w", err)
	}
	for i := range coef {
		coef[i] = beta.AtVec(i)
	}
	return coef, nil
}

func evalQuadratic(c [3]float64, x float64) float64 {
	return c[0] + c[1]*x + c[2]*x*x
}
