package nn

import (
	"math"
	"math/rand"
	"testing"
)

// 数値勾配検証の共通設定
const (
	gradCheckEps = 1e-6
	gradCheckTol = 1e-5
)

// randomTensor は[-1, 1)の一様乱数で埋めたテンソルを返す
func randomTensor(rng *rand.Rand, n, c, h, w int) *Tensor {
	x := NewTensor(n, c, h, w)
	for i := range x.Data {
		x.Data[i] = rng.Float64()*2.0 - 1.0
	}
	return x
}

// weightedSum は出力テンソルと固定係数の内積をスカラー損失として返す
// 係数を逆伝播の入力勾配に使うと、任意の層の勾配を数値微分と比較できる
func weightedSum(out *Tensor, coef []float64) float64 {
	sum := 0.0
	for i, v := range out.Data {
		sum += v * coef[i]
	}
	return sum
}

// numericGrad は中心差分で d loss / d v を近似する
func numericGrad(t *testing.T, v *float64, loss func() float64) float64 {
	t.Helper()
	orig := *v
	*v = orig + gradCheckEps
	plus := loss()
	*v = orig - gradCheckEps
	minus := loss()
	*v = orig
	return (plus - minus) / (2.0 * gradCheckEps)
}

// checkGrad は解析勾配と数値勾配の一致を検証する
func checkGrad(t *testing.T, name string, i int, analytic, numeric float64) {
	t.Helper()
	scale := math.Max(1.0, math.Abs(analytic))
	if math.Abs(analytic-numeric) > gradCheckTol*scale {
		t.Errorf("%s[%d]: analytic %v, numeric %v", name, i, analytic, numeric)
	}
}
