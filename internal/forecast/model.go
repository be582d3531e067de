package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MaxConfidence caps the confidence score; the ensemble never claims certainty.
const MaxConfidence = 0.95

// Model is the trained artifact: scaler, ensemble and fit diagnostics.
// It is immutable once built and safe for concurrent use.
type Model struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Features  []string  `json:"features"`
	Params    Params    `json:"params"`
	Scaler    Scaler    `json:"scaler"`
	Forest    Forest    `json:"forest"`
	Scores    Scores    `json:"scores"`
}

// Scores summarizes fit quality on both splits.
type Scores struct {
	TrainR2   float64 `json:"train_r2"`
	TestR2    float64 `json:"test_r2"`
	TrainRMSE float64 `json:"train_rmse"`
	TestRMSE  float64 `json:"test_rmse"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}

// Estimate is one scored (date, hour).
type Estimate struct {
	SalesCount float64 // ensemble mean, clamped at 0
	Spread     float64 // per-tree standard deviation
}

// Confidence maps the ensemble spread to [0, MaxConfidence]: a tight
// ensemble relative to the predicted volume scores high.
func (e Estimate) Confidence() float64 {
	cv := e.Spread / math.Max(e.SalesCount, 1)
	c := MaxConfidence / (1 + cv)
	return math.Max(0, math.Min(MaxConfidence, c))
}

// Dataset is a feature matrix with its sales-count target.
type Dataset struct {
	X *mat.Dense
	Y []float64
}

// NewDataset packs feature rows into a dense matrix.
func NewDataset(rows [][]float64, y []float64) (Dataset, error) {
	if len(rows) != len(y) {
		return Dataset{}, fmt.Errorf("forecast: %d rows but %d targets", len(rows), len(y))
	}
	if len(rows) == 0 {
		return Dataset{}, fmt.Errorf("forecast: empty dataset")
	}
	x := mat.NewDense(len(rows), NumFeatures, nil)
	for i, r := range rows {
		if len(r) != NumFeatures {
			return Dataset{}, fmt.Errorf("forecast: row %d has %d features, want %d", i, len(r), NumFeatures)
		}
		x.SetRow(i, r)
	}
	return Dataset{X: x, Y: y}, nil
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.Y) }

func (d Dataset) subset(idx []int) Dataset {
	if len(idx) == 0 {
		return Dataset{}
	}
	x := mat.NewDense(len(idx), NumFeatures, nil)
	y := make([]float64, len(idx))
	for k, i := range idx {
		x.SetRow(k, d.X.RawRowView(i))
		y[k] = d.Y[i]
	}
	return Dataset{X: x, Y: y}
}

// Fit splits ds, standardizes on the training rows only, grows the
// ensemble and scores both splits.
func Fit(ctx context.Context, ds Dataset, testFraction float64, p Params) (*Model, error) {
	trainIdx, testIdx := TrainTestSplit(ds.Len(), testFraction, p.Seed)
	train, test := ds.subset(trainIdx), ds.subset(testIdx)

	scaler := FitScaler(train.X)
	trainRows := scaler.TransformRows(train.X)
	testRows := scaler.TransformRows(test.X)

	forest, err := FitForest(ctx, trainRows, train.Y, p)
	if err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	m := &Model{
		Features: append([]string(nil), FeatureNames...),
		Params:   p,
		Scaler:   scaler,
		Forest:   *forest,
	}
	m.Scores = Scores{TrainRows: len(trainIdx), TestRows: len(testIdx)}
	m.Scores.TrainR2, m.Scores.TrainRMSE = m.score(trainRows, train.Y)
	m.Scores.TestR2, m.Scores.TestRMSE = m.score(testRows, test.Y)
	return m, nil
}

// score returns R² and RMSE of the raw ensemble mean on scaled rows.
// Degenerate splits (empty, or a constant target) report R² 0.
func (m *Model) score(rows [][]float64, y []float64) (r2, rmse float64) {
	if len(rows) == 0 {
		return 0, 0
	}
	est := make([]float64, len(rows))
	for i, r := range rows {
		est[i], _ = m.Forest.Predict(r)
	}
	r2 = stat.RSquaredFrom(est, y, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}
	diff := make([]float64, len(y))
	floats.SubTo(diff, est, y)
	rmse = floats.Norm(diff, 2) / math.Sqrt(float64(len(y)))
	return r2, rmse
}

// Predict scores one unscaled feature vector.
func (m *Model) Predict(features []float64) (Estimate, error) {
	if len(features) != len(m.Scaler.Mean) {
		return Estimate{}, fmt.Errorf("forecast: got %d features, model expects %d", len(features), len(m.Scaler.Mean))
	}
	mean, spread := m.Forest.Predict(m.Scaler.Transform(features))
	return Estimate{SalesCount: math.Max(0, mean), Spread: spread}, nil
}

// Encode serializes the model artifact.
func (m *Model) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses an artifact produced by Encode.
func Decode(b []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if len(m.Forest.Trees) == 0 || len(m.Scaler.Mean) != NumFeatures {
		return nil, fmt.Errorf("decode model artifact: incomplete model")
	}
	return &m, nil
}
