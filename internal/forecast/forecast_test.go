package forecast

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/mat"

	"github.com/staffcast/staffcast/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixedCalendar map[string]float64

func (c fixedCalendar) Lookup(d time.Time) (bool, float64) {
	if v, ok := c[domain.FormatDate(d)]; ok {
		return true, v
	}
	return false, domain.DefaultImpact
}

// synthetic builds weeks of hourly rows with a lunch and dinner peak,
// busier weekends and a little noise.
func synthetic(t *testing.T, weeks int) Dataset {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 7))
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) // Monday
	var rows [][]float64
	var y []float64
	for d := 0; d < weeks*7; d++ {
		date := start.AddDate(0, 0, d)
		for h := 8; h <= 20; h++ {
			f, err := FeaturesForDate(date, h, NoHolidays{})
			require.NoError(t, err)
			base := 10.0
			if h >= 12 && h < 15 {
				base = 40
			}
			if h >= 19 {
				base = 30
			}
			if domain.DayOfWeek(date) >= 5 {
				base *= 1.5
			}
			rows = append(rows, f)
			y = append(y, base+rng.NormFloat64())
		}
	}
	ds, err := NewDataset(rows, y)
	require.NoError(t, err)
	return ds
}

// ─── Features ───────────────────────────────────────────────────────────────

func TestFeatures_Layout(t *testing.T) {
	require.Len(t, FeatureNames, NumFeatures)

	sat := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	f, err := FeaturesForDate(sat, 13, fixedCalendar{"2026-03-07": 1.4})
	require.NoError(t, err)
	require.Len(t, f, NumFeatures)

	assert.Equal(t, 13.0, f[0])
	assert.Equal(t, 5.0, f[1], "Saturday")
	assert.Equal(t, 1.0, f[2], "is_weekend")
	assert.Equal(t, []float64{0, 1, 0}, f[3:6], "afternoon only")
	assert.Equal(t, 1.0, f[6], "is_holiday")
	assert.Equal(t, 1.4, f[7])
}

func TestFeatures_DayBoundaries(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		hour      int
		morning   float64
		afternoon float64
		evening   float64
	}{
		{5, 0, 0, 0},
		{6, 1, 0, 0},
		{11, 1, 0, 0},
		{12, 0, 1, 0},
		{17, 0, 1, 0},
		{18, 0, 0, 1},
		{23, 0, 0, 1},
	}
	for _, tt := range tests {
		f, err := FeaturesForDate(date, tt.hour, nil)
		require.NoError(t, err)
		assert.Equal(t, []float64{tt.morning, tt.afternoon, tt.evening}, f[3:6], "hour %d", tt.hour)
		assert.Equal(t, 0.0, f[6])
		assert.Equal(t, domain.DefaultImpact, f[7])
	}
}

func TestFeatures_CyclicalHourDistance(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	at := func(h int) []float64 {
		f, err := FeaturesForDate(date, h, nil)
		require.NoError(t, err)
		return f[8:10]
	}
	dist := func(a, b []float64) float64 { return math.Hypot(a[0]-b[0], a[1]-b[1]) }

	late, midnight, noon := at(23), at(0), at(12)
	assert.Less(t, dist(late, midnight), dist(midnight, noon))
}

func TestFeatures_RejectsOutOfRange(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for _, tc := range []struct{ hour, dow int }{{24, 0}, {-1, 0}, {10, 7}, {10, -1}} {
		_, err := Features(date, tc.hour, tc.dow, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidFeatureSlot)
	}
}

// ─── Split & Scaler ─────────────────────────────────────────────────────────

func TestTrainTestSplit_Deterministic(t *testing.T) {
	tr1, te1 := TrainTestSplit(50, 0.2, 42)
	tr2, te2 := TrainTestSplit(50, 0.2, 42)
	assert.Equal(t, tr1, tr2)
	assert.Equal(t, te1, te2)
	assert.Len(t, tr1, 40)
	assert.Len(t, te1, 10)

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, tr1...), te1...) {
		assert.False(t, seen[i], "index %d repeated", i)
		seen[i] = true
	}
	assert.Len(t, seen, 50)
}

func TestFitScaler(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})
	s := FitScaler(x)
	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")

	rows := s.TransformRows(x)
	var sum, sq float64
	for _, r := range rows {
		sum += r[0]
		sq += r[0] * r[0]
		assert.Equal(t, 0.0, r[1])
	}
	assert.InDelta(t, 0, sum/4, 1e-12)
	assert.InDelta(t, 1, sq/4, 1e-12)
}

func TestFit_ScalerSeesTrainingRowsOnly(t *testing.T) {
	const n, testFraction, seed = 40, 0.25, 42
	trainIdx, testIdx := TrainTestSplit(n, testFraction, seed)
	held := make(map[int]bool, len(testIdx))
	for _, i := range testIdx {
		held[i] = true
	}

	rows := make([][]float64, n)
	y := make([]float64, n)
	var trainSum, allSum float64
	for i := range rows {
		v := float64(i % 7)
		if held[i] {
			v = 1e6
		}
		row := make([]float64, NumFeatures)
		for j := range row {
			row[j] = v + float64(j)
		}
		rows[i], y[i] = row, v
		allSum += v
		if !held[i] {
			trainSum += v
		}
	}
	ds, err := NewDataset(rows, y)
	require.NoError(t, err)

	m, err := Fit(context.Background(), ds, testFraction, Params{Estimators: 3, MaxDepth: 3, MinSamplesSplit: 2, Seed: seed})
	require.NoError(t, err)

	trainMean := trainSum / float64(len(trainIdx))
	for j := 0; j < NumFeatures; j++ {
		assert.InDelta(t, trainMean+float64(j), m.Scaler.Mean[j], 1e-9, "column %d", j)
	}
	assert.Less(t, m.Scaler.Mean[0], allSum/n, "held-out outliers must not shift the scaler")
	assert.Equal(t, len(trainIdx), m.Scores.TrainRows)
}

// ─── Trees & Forest ─────────────────────────────────────────────────────────

func TestGrowTree_StepFunction(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	y := []float64{10, 10, 10, 50, 50, 50}
	tree := growTree(x, y, []int{0, 1, 2, 3, 4, 5}, 10, 2)

	assert.Equal(t, 1, tree.Depth())
	assert.Equal(t, 10.0, tree.Predict([]float64{2.9}))
	assert.Equal(t, 50.0, tree.Predict([]float64{3.6}))
}

func TestGrowTree_RespectsLimits(t *testing.T) {
	x := make([][]float64, 64)
	y := make([]float64, 64)
	idx := make([]int, 64)
	for i := range x {
		x[i] = []float64{float64(i)}
		y[i] = float64(i * i)
		idx[i] = i
	}
	assert.LessOrEqual(t, growTree(x, y, idx, 3, 2).Depth(), 3)

	tree := growTree(x, y, idx[:4], 10, 5)
	assert.Len(t, tree.Nodes, 1, "fewer rows than min_samples_split stays a leaf")
}

func TestFitForest_Deterministic(t *testing.T) {
	ds := synthetic(t, 2)
	s := FitScaler(ds.X)
	rows := s.TransformRows(ds.X)
	p := Params{Estimators: 8, MaxDepth: 6, MinSamplesSplit: 5, Seed: 42}

	a, err := FitForest(context.Background(), rows, ds.Y, p)
	require.NoError(t, err)
	b, err := FitForest(context.Background(), rows, ds.Y, p)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFitForest_RejectsNoEstimators(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}}
	_, err := FitForest(context.Background(), x, []float64{1, 2, 3}, Params{Estimators: 0, MaxDepth: 3, MinSamplesSplit: 2})
	assert.ErrorContains(t, err, "n_estimators")
}

func TestFitForest_Cancelled(t *testing.T) {
	ds := synthetic(t, 1)
	rows := FitScaler(ds.X).TransformRows(ds.X)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FitForest(ctx, rows, ds.Y, DefaultParams())
	assert.ErrorIs(t, err, context.Canceled)
}

// ─── Model ──────────────────────────────────────────────────────────────────

func TestFit_LearnsPattern(t *testing.T) {
	ds := synthetic(t, 6)
	m, err := Fit(context.Background(), ds, 0.2, Params{Estimators: 20, MaxDepth: 10, MinSamplesSplit: 5, Seed: 42})
	require.NoError(t, err)

	assert.Greater(t, m.Scores.TestR2, 0.8)
	assert.Equal(t, ds.Len(), m.Scores.TrainRows+m.Scores.TestRows)

	monday := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	lunch, err := FeaturesForDate(monday, 13, nil)
	require.NoError(t, err)
	morning, err := FeaturesForDate(monday, 9, nil)
	require.NoError(t, err)

	eLunch, err := m.Predict(lunch)
	require.NoError(t, err)
	eMorning, err := m.Predict(morning)
	require.NoError(t, err)
	assert.Greater(t, eLunch.SalesCount, eMorning.SalesCount)
	assert.Greater(t, eLunch.Confidence(), 0.0)
	assert.LessOrEqual(t, eLunch.Confidence(), MaxConfidence)
}

func TestModel_EncodeDecodeScoresIdentically(t *testing.T) {
	ds := synthetic(t, 2)
	m, err := Fit(context.Background(), ds, 0.2, Params{Estimators: 5, MaxDepth: 5, MinSamplesSplit: 5, Seed: 1})
	require.NoError(t, err)

	b, err := m.Encode()
	require.NoError(t, err)
	back, err := Decode(b)
	require.NoError(t, err)

	row := ds.X.RawRowView(3)
	want, _ := m.Predict(row)
	got, _ := back.Predict(row)
	assert.Equal(t, want, got)
}

func TestDecode_RejectsIncomplete(t *testing.T) {
	_, err := Decode([]byte(`{"version":"v1"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestEstimate_Confidence(t *testing.T) {
	tests := []struct {
		name string
		e    Estimate
		want float64
	}{
		{"no spread", Estimate{SalesCount: 20, Spread: 0}, MaxConfidence},
		{"spread equals mean", Estimate{SalesCount: 20, Spread: 20}, MaxConfidence / 2},
		{"zero volume uses unit floor", Estimate{SalesCount: 0, Spread: 1}, MaxConfidence / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.e.Confidence(), 1e-12)
		})
	}
}
