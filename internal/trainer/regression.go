package trainer

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// FitOLS fits y = b0 + b·x by ordinary least squares. x holds one feature
// vector per observation.
func FitOLS(x [][]float64, y []float64) (intercept float64, coef []float64, err error) {
	n := len(y)
	if n == 0 || len(x) != n {
		return 0, nil, fmt.Errorf("need matching observations, got %d rows and %d targets", len(x), n)
	}
	p := len(x[0]) + 1
	if n < p {
		return 0, nil, fmt.Errorf("need at least %d observations for %d coefficients, got %d", p, p, n)
	}

	a := mat.NewDense(n, p, nil)
	for i, row := range x {
		if len(row) != p-1 {
			return 0, nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), p-1)
		}
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}

	var beta mat.VecDense
	if err := beta.SolveVec(a, mat.NewVecDense(n, append([]float64(nil), y...))); err != nil {
		// An ill-conditioned design still yields a least-squares answer;
		// only reject it when the solution is not finite.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return 0, nil, err
		}
	}

	coef = make([]float64, p-1)
	for j := 0; j < p; j++ {
		v := beta.AtVec(j)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, nil, fmt.Errorf("singular design matrix")
		}
		if j == 0 {
			intercept = v
		} else {
			coef[j-1] = v
		}
	}
	return intercept, coef, nil
}
