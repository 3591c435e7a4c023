package explain

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CosineDistance returns 1 - cos(a, b). A zero vector is at distance 1 from everything.
func CosineDistance(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - floats.Dot(a, b)/(na*nb)
}

// KernelWeights weighs every sample by its proximity to the first (unperturbed)
// sample with the exponential kernel sqrt(exp(-d^2 / width^2))
func KernelWeights(data [][]float64, width float64) []float64 {
	weights := make([]float64, len(data))
	for i, row := range data {
		d := CosineDistance(row, data[0])
		weights[i] = math.Sqrt(math.Exp(-(d * d) / (width * width)))
	}
	return weights
}

// Surrogate is a weighted ridge regression fitted around one prediction
type Surrogate struct {
	Coef      []float64
	Intercept float64
	// Score is the weighted R^2 of the fit on its own samples
	Score float64
}

// Predict evaluates the surrogate for one on/off vector
func (s *Surrogate) Predict(x []float64) float64 {
	return floats.Dot(s.Coef, x) + s.Intercept
}

// FitRidge solves the sample weighted ridge regression with an unpenalised intercept
func FitRidge(x [][]float64, y, w []float64, alpha float64) (*Surrogate, error) {
	n := len(x)
	if n == 0 || len(y) != n || len(w) != n {
		return nil, fmt.Errorf("inconsistent sample sizes: x=%d y=%d w=%d", n, len(y), len(w))
	}
	p := len(x[0])
	if p == 0 {
		return nil, errors.New("no features")
	}

	wsum := floats.Sum(w)
	if wsum <= 0 {
		return nil, errors.New("sample weights sum to zero")
	}

	xOffset := make([]float64, p)
	yOffset := 0.0
	for i, row := range x {
		if len(row) != p {
			return nil, fmt.Errorf("sample %d has %d features, expected %d", i, len(row), p)
		}
		floats.AddScaled(xOffset, w[i]/wsum, row)
		yOffset += w[i] / wsum * y[i]
	}

	xs := mat.NewDense(n, p, nil)
	ys := mat.NewVecDense(n, nil)
	for i, row := range x {
		sw := math.Sqrt(w[i])
		for j, v := range row {
			xs.Set(i, j, (v-xOffset[j])*sw)
		}
		ys.SetVec(i, (y[i]-yOffset)*sw)
	}

	gram := mat.NewSymDense(p, nil)
	gram.SymOuterK(1, xs.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(xs.T(), ys)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return nil, errors.New("ridge system is not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return nil, fmt.Errorf("failed to solve ridge system: %w", err)
	}

	s := &Surrogate{Coef: make([]float64, p)}
	for j := range s.Coef {
		s.Coef[j] = beta.AtVec(j)
	}
	s.Intercept = yOffset - floats.Dot(xOffset, s.Coef)
	s.Score = weightedR2(s, x, y, w, yOffset)
	return s, nil
}

func weightedR2(s *Surrogate, x [][]float64, y, w []float64, yMean float64) float64 {
	var residual, total float64
	for i, row := range x {
		r := y[i] - s.Predict(row)
		residual += w[i] * r * r
		d := y[i] - yMean
		total += w[i] * d * d
	}
	if total == 0 {
		if residual == 0 {
			return 1
		}
		return 0
	}
	return 1 - residual/total
}
