package forecast

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes each column to zero mean and unit variance.
// Columns with zero variance keep a unit scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler learns per-column statistics from x.
func FitScaler(x mat.Matrix) Scaler {
	_, c := x.Dims()
	s := Scaler{Mean: make([]float64, c), Scale: make([]float64, c)}
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j], s.Scale[j] = mean, std
	}
	return s
}

// Transform returns a scaled copy of row.
func (s Scaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}

// TransformRows scales every row of x.
func (s Scaler) TransformRows(x *mat.Dense) [][]float64 {
	if x == nil {
		return nil
	}
	r, _ := x.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = s.Transform(x.RawRowView(i))
	}
	return out
}
