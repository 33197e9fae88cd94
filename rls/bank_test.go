package rls

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig(dims int) Config {
	return Config{
		Dims:        dims,
		Layout:      LeaveOneOut,
		Mu:          0.99,
		Delta:       0.1,
		Epsilon:     1e-6,
		ClipOutput:  true,
		OutputMin:   -100,
		OutputMax:   100,
		ClipWeights: true,
		WeightMin:   -100,
		WeightMax:   100,
		MaxDeltaW:   50,
		Clamp:       ClampElementwise,
	}
}

func TestNewBank_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "zero dims", mutate: func(c *Config) { c.Dims = 0 }},
		{name: "leave-one-out with one dim", mutate: func(c *Config) { c.Dims = 1 }},
		{name: "unknown layout", mutate: func(c *Config) { c.Layout = Layout(5) }},
		{name: "zero mu", mutate: func(c *Config) { c.Mu = 0 }},
		{name: "mu above one", mutate: func(c *Config) { c.Mu = 1.01 }},
		{name: "nan mu", mutate: func(c *Config) { c.Mu = math.NaN() }},
		{name: "zero delta", mutate: func(c *Config) { c.Delta = 0 }},
		{name: "negative delta", mutate: func(c *Config) { c.Delta = -1 }},
		{name: "zero epsilon", mutate: func(c *Config) { c.Epsilon = 0 }},
		{name: "inverted output range", mutate: func(c *Config) { c.OutputMin, c.OutputMax = 1, -1 }},
		{name: "inverted weight range", mutate: func(c *Config) { c.WeightMin, c.WeightMax = 1, -1 }},
		{name: "negative max step", mutate: func(c *Config) { c.MaxDeltaW = -1 }},
		{name: "unknown clamp", mutate: func(c *Config) { c.Clamp = ClampStrategy(9) }},
		{name: "wrong row count", mutate: func(c *Config) { c.WeightRows = [][]float64{{1, 2}} }},
		{name: "wrong row width", mutate: func(c *Config) { c.WeightRows = [][]float64{{1}, {2}, {3}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(3)
			tt.mutate(&cfg)

			bank, err := NewBank(cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
			require.Nil(t, bank)
		})
	}
}

func TestNewBank_InitialState(t *testing.T) {
	cfg := testConfig(3)
	cfg.WeightInit = 0.25

	bank, err := NewBank(cfg)
	require.NoError(t, err)
	require.Equal(t, 3, bank.Dims())
	require.Equal(t, 2, bank.Features())
	require.Equal(t, LeaveOneOut, bank.Layout())

	for i := range 3 {
		require.Equal(t, []float64{0.25, 0.25}, bank.Weights()[i])
		require.Equal(t, []float64{10, 0, 0, 10}, bank.Covariance(i))
	}
}

func TestNewBank_WeightRowsAreCopied(t *testing.T) {
	rows := [][]float64{{2}, {3}}
	cfg := testConfig(2)
	cfg.WeightRows = rows

	bank, err := NewBank(cfg)
	require.NoError(t, err)

	rows[0][0] = 99
	require.Equal(t, [][]float64{{2}, {3}}, bank.Weights())
}

func TestBank_PredictAll(t *testing.T) {
	cfg := testConfig(3)
	cfg.WeightRows = [][]float64{{1, 2}, {3, 4}, {5, 6}}
	bank, err := NewBank(cfg)
	require.NoError(t, err)

	x := []float64{1, 2, 3}
	got := bank.PredictAll(x, nil)

	// y0 = 1*2 + 2*3, y1 = 3*1 + 4*3, y2 = 5*1 + 6*2
	require.Equal(t, []float64{8, 15, 17}, got)
	require.Equal(t, []float64{1, 2, 3}, x, "input is not modified")

	t.Run("reuses destination", func(t *testing.T) {
		dst := make([]float64, 3)
		out := bank.PredictAll(x, dst)
		require.Equal(t, []float64{8, 15, 17}, dst)
		require.Equal(t, &dst[0], &out[0])
	})

	t.Run("does not change the model", func(t *testing.T) {
		before := bank.Weights()
		bank.PredictAll([]float64{9, 9, 9}, nil)
		require.Equal(t, before, bank.Weights())
	})
}

func TestBank_PredictAllOutputClip(t *testing.T) {
	cfg := testConfig(2)
	cfg.OutputMin, cfg.OutputMax = -1, 1
	cfg.WeightRows = [][]float64{{10}, {-10}}
	bank, err := NewBank(cfg)
	require.NoError(t, err)

	require.Equal(t, []float64{1, -1}, bank.PredictAll([]float64{5, 5}, nil))

	cfg.ClipOutput = false
	bank, err = NewBank(cfg)
	require.NoError(t, err)
	require.Equal(t, []float64{50, -50}, bank.PredictAll([]float64{5, 5}, nil))
}

func TestBank_UpdateAllSingleStep(t *testing.T) {
	cfg := testConfig(2)
	cfg.Clamp = ClampNone
	bank, err := NewBank(cfg)
	require.NoError(t, err)

	bank.UpdateAll([]float64{1, 2}, []float64{1, 2})

	// predictor 0 sees f = [2]: Px = 20, denom = 0.99 + 40
	denom0 := 0.99 + 40.0
	g0 := 20.0 / denom0
	require.InDelta(t, g0*1.0, bank.Weights()[0][0], 1e-12)
	require.InDelta(t, (10.0-g0*20.0)/0.99, bank.Covariance(0)[0], 1e-12)

	// predictor 1 sees f = [1]: Px = 10, denom = 0.99 + 10
	denom1 := 0.99 + 10.0
	g1 := 10.0 / denom1
	require.InDelta(t, g1*2.0, bank.Weights()[1][0], 1e-12)
	require.InDelta(t, (10.0-g1*10.0)/0.99, bank.Covariance(1)[0], 1e-12)
}

func TestBank_UpdateAllZeroInputFloorsDenominator(t *testing.T) {
	cfg := testConfig(2)
	cfg.Mu = 1e-9
	bank, err := NewBank(cfg)
	require.NoError(t, err)

	bank.UpdateAll([]float64{1, 1}, []float64{0, 0})

	for _, row := range bank.Weights() {
		for _, v := range row {
			require.False(t, math.IsNaN(v))
			require.False(t, math.IsInf(v, 0))
		}
	}
}

func TestBank_ElementwiseStepBound(t *testing.T) {
	cfg := testConfig(4)
	cfg.MaxDeltaW = 0.01
	cfg.Clamp = ClampElementwise
	bank, err := NewBank(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		x := []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		target := []float64{50 * rng.NormFloat64(), 50 * rng.NormFloat64(), 50 * rng.NormFloat64(), 50 * rng.NormFloat64()}

		before := bank.Weights()
		bank.UpdateAll(target, x)
		after := bank.Weights()

		for i := range before {
			for j := range before[i] {
				require.LessOrEqual(t, math.Abs(after[i][j]-before[i][j]), 0.01+1e-15)
			}
		}
	}
}

func TestBank_NormStepBound(t *testing.T) {
	cfg := testConfig(3)
	cfg.MaxDeltaW = 0.5
	cfg.Clamp = ClampNorm
	cfg.ClipWeights = false
	bank, err := NewBank(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(3, 4))
	for range 200 {
		x := []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		target := []float64{100 * rng.NormFloat64(), 100 * rng.NormFloat64(), 100 * rng.NormFloat64()}

		before := bank.Weights()
		bank.UpdateAll(target, x)
		after := bank.Weights()

		for i := range before {
			sq := 0.0
			for j := range before[i] {
				d := after[i][j] - before[i][j]
				sq += d * d
			}
			require.LessOrEqual(t, math.Sqrt(sq), 0.5+1e-12)
		}
	}
}

func TestBank_WeightClip(t *testing.T) {
	cfg := testConfig(3)
	cfg.WeightMin, cfg.WeightMax = -0.2, 0.2
	cfg.Clamp = ClampNone
	bank, err := NewBank(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(5, 6))
	for range 100 {
		x := []float64{rng.Float64(), rng.Float64(), rng.Float64()}
		bank.UpdateAll([]float64{10, -10, 10}, x)

		for _, row := range bank.Weights() {
			for _, v := range row {
				require.GreaterOrEqual(t, v, -0.2)
				require.LessOrEqual(t, v, 0.2)
			}
		}
	}
}

func TestBank_LearnsLinearRelation(t *testing.T) {
	cfg := testConfig(2)
	bank, err := NewBank(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(7, 8))
	for range 500 {
		a := 0.5 + rng.Float64()
		x := []float64{a, 2 * a}
		bank.UpdateAll(x, x)
	}

	w := bank.Weights()
	require.InDelta(t, 0.5, w[0][0], 1e-3)
	require.InDelta(t, 2.0, w[1][0], 1e-3)

	pred := bank.PredictAll([]float64{1, 2}, nil)
	require.InDelta(t, 1.0, pred[0], 1e-2)
	require.InDelta(t, 2.0, pred[1], 1e-2)
}

func TestBank_InterceptTracksLevel(t *testing.T) {
	cfg := testConfig(1)
	cfg.Layout = Intercept
	bank, err := NewBank(cfg)
	require.NoError(t, err)
	require.Equal(t, 1, bank.Features())

	for range 200 {
		bank.UpdateAll([]float64{3}, []float64{3})
	}

	require.InDelta(t, 3.0, bank.PredictAll([]float64{42}, nil)[0], 1e-2)
}

func TestBank_InterceptMultiDimension(t *testing.T) {
	cfg := testConfig(3)
	cfg.Layout = Intercept
	bank, err := NewBank(cfg)
	require.NoError(t, err)

	for range 200 {
		bank.UpdateAll([]float64{1, -2, 5}, []float64{1, -2, 5})
	}

	pred := bank.PredictAll([]float64{0, 0, 0}, nil)
	require.InDelta(t, 1.0, pred[0], 1e-2)
	require.InDelta(t, -2.0, pred[1], 1e-2)
	require.InDelta(t, 5.0, pred[2], 1e-2)
}

func TestBank_ResetCovarianceKeepsWeights(t *testing.T) {
	bank, err := NewBank(testConfig(3))
	require.NoError(t, err)

	bank.UpdateAll([]float64{1, 2, 3}, []float64{1, 2, 3})
	weights := bank.Weights()
	require.NotEqual(t, []float64{10, 0, 0, 10}, bank.Covariance(0))

	bank.ResetCovariance()

	require.Equal(t, weights, bank.Weights())
	for i := range 3 {
		require.Equal(t, []float64{10, 0, 0, 10}, bank.Covariance(i))
	}
}

func TestBank_Restore(t *testing.T) {
	src, err := NewBank(testConfig(3))
	require.NoError(t, err)
	src.UpdateAll([]float64{1, 2, 3}, []float64{3, 2, 1})

	dst, err := NewBank(testConfig(3))
	require.NoError(t, err)

	covs := [][]float64{src.Covariance(0), src.Covariance(1), src.Covariance(2)}
	require.NoError(t, dst.Restore(src.Weights(), covs))
	require.Equal(t, src.Weights(), dst.Weights())
	require.Equal(t, src.Covariance(2), dst.Covariance(2))

	t.Run("rejects wrong shapes", func(t *testing.T) {
		before := dst.Weights()

		err := dst.Restore(src.Weights()[:2], covs)
		require.ErrorIs(t, err, ErrDimensionMismatch)

		err = dst.Restore([][]float64{{1}, {2}, {3}}, covs)
		require.ErrorIs(t, err, ErrDimensionMismatch)

		err = dst.Restore(src.Weights(), [][]float64{{1}, {2}, {3}})
		require.ErrorIs(t, err, ErrDimensionMismatch)

		require.Equal(t, before, dst.Weights())
	})
}

func TestParseLayoutAndClamp(t *testing.T) {
	layout, err := ParseLayout("Intercept")
	require.NoError(t, err)
	require.Equal(t, Intercept, layout)

	layout, err = ParseLayout("leave_one_out")
	require.NoError(t, err)
	require.Equal(t, LeaveOneOut, layout)

	_, err = ParseLayout("ridge")
	require.ErrorIs(t, err, ErrInvalidConfig)

	clamp, err := ParseClampStrategy("NORM")
	require.NoError(t, err)
	require.Equal(t, ClampNorm, clamp)

	clamp, err = ParseClampStrategy("elementwise")
	require.NoError(t, err)
	require.Equal(t, ClampElementwise, clamp)

	_, err = ParseClampStrategy("soft")
	require.ErrorIs(t, err, ErrInvalidConfig)

	require.Equal(t, "norm", ClampNorm.String())
	require.Equal(t, "intercept", Intercept.String())
	require.Equal(t, "unknown", Layout(9).String())
}

func TestTextMarshaling(t *testing.T) {
	for _, l := range []Layout{LeaveOneOut, Intercept} {
		text, err := l.MarshalText()
		require.NoError(t, err)

		var got Layout
		require.NoError(t, got.UnmarshalText(text))
		require.Equal(t, l, got)
	}
	for _, c := range []ClampStrategy{ClampElementwise, ClampNorm, ClampNone} {
		text, err := c.MarshalText()
		require.NoError(t, err)

		var got ClampStrategy
		require.NoError(t, got.UnmarshalText(text))
		require.Equal(t, c, got)
	}

	_, err := Layout(7).MarshalText()
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = ClampStrategy(7).MarshalText()
	require.ErrorIs(t, err, ErrInvalidConfig)

	var c ClampStrategy
	require.ErrorIs(t, c.UnmarshalText([]byte("wild")), ErrInvalidConfig)
}
