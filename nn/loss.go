package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// SoftmaxCrossEntropy はソフトマックスと交差エントロピー損失の結合ヘッド
// 勾配が (確率 - 正解のone-hot) / バッチサイズ に簡約されるため、
// 逆伝播はこの形で直接計算する
type SoftmaxCrossEntropy struct {
	probs   *mat.Dense
	targets []int
}

// NewSoftmaxCrossEntropy は損失ヘッドを作成する
func NewSoftmaxCrossEntropy() *SoftmaxCrossEntropy {
	return &SoftmaxCrossEntropy{}
}

// Forward はロジット (N, classes, 1, 1) と正解クラスから平均損失を計算する
// 損失がNaNまたはInfになった場合はNumericalInstabilityErrorを返す
func (l *SoftmaxCrossEntropy) Forward(logits *Tensor, targets []int) (float64, error) {
	if logits.H != 1 || logits.W != 1 {
		return 0, errors.NewInputShapeError("training",
			[]int{logits.N, logits.C, 1, 1}, shapeOf(logits))
	}
	if len(targets) != logits.N {
		return 0, errors.NewDimensionError("SoftmaxCrossEntropy.Forward", logits.N, len(targets), 0)
	}
	classes := logits.C
	for i, t := range targets {
		if t < 0 || t >= classes {
			return 0, errors.NewValueError("SoftmaxCrossEntropy.Forward",
				fmt.Sprintf("target %d out of range [0, %d) at row %d", t, classes, i))
		}
	}

	l.targets = append([]int(nil), targets...)
	l.probs = mat.NewDense(logits.N, classes, nil)

	loss := 0.0
	for n := 0; n < logits.N; n++ {
		row := logits.sample(n)
		maxv := floats.Max(row)
		prow := l.probs.RawRowView(n)
		for k, v := range row {
			prow[k] = math.Exp(v - maxv)
		}
		floats.Scale(1/floats.Sum(prow), prow)
		loss -= errors.StabilizeLog(prow[targets[n]])
	}
	loss /= float64(logits.N)

	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, errors.NewNumericalInstabilityError("loss_calculation", []float64{loss}, 0)
	}
	return loss, nil
}

// Probs は直前のForwardで計算したソフトマックス確率を返す
func (l *SoftmaxCrossEntropy) Probs() *mat.Dense {
	return l.probs
}

// Backward はロジットに対する損失の勾配を返す
func (l *SoftmaxCrossEntropy) Backward() (*Tensor, error) {
	if l.probs == nil {
		return nil, errors.NewValueError("SoftmaxCrossEntropy.Backward", "Backward called before Forward")
	}
	n, classes := l.probs.Dims()
	grad := NewTensor(n, classes, 1, 1)
	inv := 1.0 / float64(n)
	for i := 0; i < n; i++ {
		prow := l.probs.RawRowView(i)
		grow := grad.sample(i)
		for k := 0; k < classes; k++ {
			grow[k] = prow[k] * inv
		}
		grow[l.targets[i]] -= inv
	}
	return grad, nil
}

// Softmax はロジット行列を行ごとにソフトマックス確率へ変換する
// 推論経路で損失を計算せずに確率だけが必要な場合に使う
func Softmax(logits *Tensor) *mat.Dense {
	probs := mat.NewDense(logits.N, logits.C, nil)
	for n := 0; n < logits.N; n++ {
		row := logits.sample(n)
		maxv := floats.Max(row)
		prow := probs.RawRowView(n)
		for k, v := range row {
			prow[k] = math.Exp(v - maxv)
		}
		floats.Scale(1/floats.Sum(prow), prow)
	}
	return probs
}

// Argmax は最大値の位置を返す。空のスライスには-1を返す
func Argmax(v []float64) int {
	if len(v) == 0 {
		return -1
	}
	return floats.MaxIdx(v)
}
