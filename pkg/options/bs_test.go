package options

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBS_Prices_ReferenceCase(t *testing.T) {
	// 经典参数：S=100,X=100,r=0.05,v=0.2,T=1
	// 期望值（用于回归）：Call≈10.4505835722, Put≈5.5735260223
	S, X, T, r, v := 100.0, 100.0, 1.0, 0.05, 0.2

	call, err := Price(Call, S, X, T, r, v)
	if err != nil {
		t.Fatalf("call err: %v", err)
	}
	put, err := Price(Put, S, X, T, r, v)
	if err != nil {
		t.Fatalf("put err: %v", err)
	}

	if !almostEqual(call, 10.450583572185565, 1e-9) {
		t.Fatalf("call price mismatch: got=%v", call)
	}
	if !almostEqual(put, 5.573526022256971, 1e-9) {
		t.Fatalf("put price mismatch: got=%v", put)
	}
}

func TestBS_Delta_ReferenceCase(t *testing.T) {
	S, X, T, r, v := 100.0, 100.0, 1.0, 0.05, 0.2

	callDelta, err := Delta(Call, S, X, T, r, v)
	require.NoError(t, err)
	putDelta, err := Delta(Put, S, X, T, r, v)
	require.NoError(t, err)

	if !almostEqual(callDelta, 0.6368306511756191, 1e-9) {
		t.Fatalf("call delta mismatch: got=%v", callDelta)
	}
	if !almostEqual(putDelta, 0.6368306511756191-1, 1e-9) {
		t.Fatalf("put delta mismatch: got=%v", putDelta)
	}
}

func TestBS_PutCallParity(t *testing.T) {
	// Put-Call Parity: C - P = S - X*e^{-rT}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		S, X, T, r, v := randomMarket(rng)

		call, err := Price(Call, S, X, T, r, v)
		require.NoError(t, err)
		put, err := Price(Put, S, X, T, r, v)
		require.NoError(t, err)

		left := call - put
		right := S - X*math.Exp(-r*T)
		if !almostEqual(left, right, 1e-8) {
			t.Fatalf("parity mismatch: S=%v X=%v T=%v r=%v v=%v left=%v right=%v", S, X, T, r, v, left, right)
		}
	}
}

func TestBS_DeltaBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		S, X, T, r, v := randomMarket(rng)

		callDelta, err := Delta(Call, S, X, T, r, v)
		require.NoError(t, err)
		putDelta, err := Delta(Put, S, X, T, r, v)
		require.NoError(t, err)

		require.GreaterOrEqual(t, callDelta, 0.0)
		require.LessOrEqual(t, callDelta, 1.0)
		require.GreaterOrEqual(t, putDelta, -1.0)
		require.LessOrEqual(t, putDelta, 0.0)
	}
}

func TestBS_DeltaMatchesCentralDifference(t *testing.T) {
	const eps = 1e-3
	rng := rand.New(rand.NewSource(13))

	for i := 0; i < 200; i++ {
		S, X, T, r, v := randomMarket(rng)
		for _, kind := range []Kind{Call, Put} {
			delta, err := Delta(kind, S, X, T, r, v)
			require.NoError(t, err)

			up, err := Price(kind, S+eps, X, T, r, v)
			require.NoError(t, err)
			down, err := Price(kind, S-eps, X, T, r, v)
			require.NoError(t, err)

			numeric := (up - down) / (2 * eps)
			if !almostEqual(delta, numeric, 1e-4) {
				t.Fatalf("%s delta mismatch: closed=%v numeric=%v (S=%v X=%v T=%v r=%v v=%v)",
					kind, delta, numeric, S, X, T, r, v)
			}
		}
	}
}

func TestBS_MonotonicInVolatility(t *testing.T) {
	S, T, r := 100.0, 1.0, 0.05

	for _, X := range []float64{80, 100, 120} {
		for _, kind := range []Kind{Call, Put} {
			prev, err := Price(kind, S, X, T, r, 0.1)
			require.NoError(t, err)

			for v := 0.2; v < 5; v += 0.1 {
				cur, err := Price(kind, S, X, T, r, v)
				require.NoError(t, err)
				if cur <= prev {
					t.Fatalf("%s X=%v price not increasing at v=%v: prev=%v cur=%v", kind, X, v, prev, cur)
				}
				prev = cur
			}
		}
	}
}

func TestBS_InvalidInputs(t *testing.T) {
	cases := []struct {
		name          string
		S, X, T, r, v float64
	}{
		{"negative spot", -1, 100, 1, 0.05, 0.2},
		{"zero spot", 0, 100, 1, 0.05, 0.2},
		{"zero strike", 100, 0, 1, 0.05, 0.2},
		{"zero expiry", 100, 100, 0, 0.05, 0.2},
		{"negative expiry", 100, 100, -1, 0.05, 0.2},
		{"zero vol", 100, 100, 1, 0.05, 0},
		{"negative vol", 100, 100, 1, 0.05, -0.1},
		{"nan vol", 100, 100, 1, 0.05, math.NaN()},
		{"inf spot", math.Inf(1), 100, 1, 0.05, 0.2},
		{"nan rate", 100, 100, 1, math.NaN(), 0.2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Price(Call, tc.S, tc.X, tc.T, tc.r, tc.v)
			require.ErrorIs(t, err, ErrInvalidInputs)
			_, err = Delta(Put, tc.S, tc.X, tc.T, tc.r, tc.v)
			require.ErrorIs(t, err, ErrInvalidInputs)
		})
	}
}

func TestBS_NegativeRateAllowed(t *testing.T) {
	call, err := Price(Call, 100, 100, 1, -0.01, 0.2)
	require.NoError(t, err)
	require.Greater(t, call, 0.0)
}

func TestBS_InvalidKind(t *testing.T) {
	var zero Kind
	_, err := Price(zero, 100, 100, 1, 0.05, 0.2)
	require.ErrorIs(t, err, ErrInvalidKind)

	_, err = Delta(Kind(9), 100, 100, 1, 0.05, 0.2)
	require.ErrorIs(t, err, ErrInvalidKind)
	require.False(t, errors.Is(err, ErrInvalidInputs))
}

func TestStandardNormalCDF(t *testing.T) {
	cases := []struct {
		x, want float64
	}{
		{0, 0.5},
		{1, 0.8413447460685429},
		{-1, 0.15865525393145707},
		{1.959963984540054, 0.975},
		{-8, 6.22096057427178e-16},
	}
	for _, tc := range cases {
		got := StandardNormalCDF(tc.x)
		if !almostEqual(got, tc.want, 1e-12) {
			t.Fatalf("Φ(%v) = %v, want %v", tc.x, got, tc.want)
		}
	}

	// 远尾：erfc 形式在 -30 处仍然是正数而不是被相消成 0
	require.Greater(t, StandardNormalCDF(-30), 0.0)
	require.Less(t, StandardNormalCDF(-30), 1e-190)

	require.Equal(t, 0.0, StandardNormalCDF(math.Inf(-1)))
	require.Equal(t, 1.0, StandardNormalCDF(math.Inf(1)))
}

// 基准测试：核心定价
func BenchmarkPrice(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = Price(Call, 100, 100, 1, 0.05, 0.2)
	}
}

// randomMarket 随机生成一组合法的市场参数
func randomMarket(rng *rand.Rand) (S, X, T, r, v float64) {
	S = 50 + rng.Float64()*100
	X = 50 + rng.Float64()*100
	T = 0.1 + rng.Float64()*1.9
	r = -0.01 + rng.Float64()*0.09
	v = 0.05 + rng.Float64()*1.95
	return
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
