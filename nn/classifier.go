package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/soundscape-ml/ascgo/core/model"
	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// Fitの簡易学習ループの設定。本格的な学習はtrainingパッケージが担う
const (
	fitEpochs    = 10
	fitBatchSize = 32
)

// SceneClassifier は音響シーン分類器
//
// 入力行列の各行は (フレーム数 × メルビン数) を行優先で平坦化した
// ログメルスペクトログラムで、フレーム数は列数から復元される。
// 大域プーリングを使うネットワークなので、学習時のクロップ長と
// 評価時の全長が異なっていてもそのまま処理できる
type SceneClassifier struct {
	model.BaseEstimator

	net     *Sequential
	classes []string
	nmels   int
	width   float64
	seed    int64
}

var _ model.Classifier = (*SceneClassifier)(nil)

// NetworkState はSceneClassifierのgob保存用スナップショット
// パラメータと移動統計はネットワーク構築順に並ぶ
type NetworkState struct {
	Classes []string
	NMels   int
	Width   float64
	Seed    int64
	Params  [][]float64
	Buffers [][]float64
}

// NewSceneClassifier は未学習の分類器を作成する
// 重みの初期化はseedで決まる
func NewSceneClassifier(classes []string, nmels int, width float64, seed int64) (*SceneClassifier, error) {
	if len(classes) < 2 {
		return nil, errors.NewValidationError("classes", "need at least 2 classes", len(classes))
	}
	if nmels <= 0 {
		return nil, errors.NewValidationError("nmels", "must be positive", nmels)
	}

	net, err := NewSceneCNN(len(classes), width, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}
	return &SceneClassifier{
		net:     net,
		classes: append([]string(nil), classes...),
		nmels:   nmels,
		width:   width,
		seed:    seed,
	}, nil
}

// Classes はクラスラベルを予測列の順で返す
func (c *SceneClassifier) Classes() []string {
	return append([]string(nil), c.classes...)
}

// NumClasses はクラス数を返す
func (c *SceneClassifier) NumClasses() int {
	return len(c.classes)
}

// Network は内部のネットワークを返す
func (c *SceneClassifier) Network() *Sequential {
	return c.net
}

// TrainStep は1ミニバッチで順伝播、逆伝播、パラメータ更新を行い損失を返す
func (c *SceneClassifier) TrainStep(X mat.Matrix, targets []int, opt *Adam) (float64, error) {
	x, err := c.batchTensor(X, "training")
	if err != nil {
		return 0, err
	}

	logits, err := c.net.Forward(x, true)
	if err != nil {
		return 0, err
	}

	head := NewSoftmaxCrossEntropy()
	loss, err := head.Forward(logits, targets)
	if err != nil {
		return 0, err
	}

	grad, err := head.Backward()
	if err != nil {
		return 0, err
	}
	if _, err := c.net.Backward(grad); err != nil {
		return 0, err
	}
	if err := opt.Step(c.net.Params()); err != nil {
		return 0, err
	}

	c.SetFitted()
	return loss, nil
}

// Loss は評価モードの順伝播で損失と確率を計算する。パラメータは更新しない
func (c *SceneClassifier) Loss(X mat.Matrix, targets []int) (float64, *mat.Dense, error) {
	x, err := c.batchTensor(X, "prediction")
	if err != nil {
		return 0, nil, err
	}
	logits, err := c.net.Forward(x, false)
	if err != nil {
		return 0, nil, err
	}
	head := NewSoftmaxCrossEntropy()
	loss, err := head.Forward(logits, targets)
	if err != nil {
		return 0, nil, err
	}
	return loss, head.Probs(), nil
}

// Fit は与えられたデータだけで固定エポック数の簡易学習を行う
// yは各行のクラス番号を持つ列ベクトル。大規模データの学習には
// 評価やチェックポイントを備えたtrainingパッケージの学習ループを使う
func (c *SceneClassifier) Fit(X, y mat.Matrix) error {
	r, _ := X.Dims()
	ry, cy := y.Dims()
	if r == 0 {
		return errors.NewModelError("SceneClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("SceneClassifier.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("SceneClassifier.Fit", "y must be a column vector")
	}

	targets := make([]int, r)
	for i := 0; i < r; i++ {
		t := int(y.At(i, 0))
		if float64(t) != y.At(i, 0) || t < 0 || t >= len(c.classes) {
			return errors.NewValueError("SceneClassifier.Fit",
				fmt.Sprintf("label %v at row %d is not a class index", y.At(i, 0), i))
		}
		targets[i] = t
	}

	xd := mat.DenseCopyOf(X)
	_, cols := xd.Dims()
	opt := NewAdam(AdamConfig{})
	rng := rand.New(rand.NewSource(c.seed))
	order := make([]int, r)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < fitEpochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for start := 0; start < r; start += fitBatchSize {
			end := start + fitBatchSize
			if end > r {
				end = r
			}
			bx := mat.NewDense(end-start, cols, nil)
			bt := make([]int, end-start)
			for bi, idx := range order[start:end] {
				bx.SetRow(bi, xd.RawRowView(idx))
				bt[bi] = targets[idx]
			}
			if _, err := c.TrainStep(bx, bt, opt); err != nil {
				return errors.Wrapf(err, "fit epoch %d", epoch)
			}
		}
	}
	return nil
}

// PredictProba は各クラスの確率を返す。1行が1サンプルに対応する
func (c *SceneClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("SceneClassifier", "PredictProba")
	}
	x, err := c.batchTensor(X, "prediction")
	if err != nil {
		return nil, err
	}
	logits, err := c.net.Forward(x, false)
	if err != nil {
		return nil, err
	}
	return Softmax(logits), nil
}

// Predict は最も確率の高いクラス番号の列ベクトルを返す
func (c *SceneClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probs, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, k := probs.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if probs.At(i, j) > probs.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, float64(best))
	}
	return out, nil
}

// State はチェックポイント保存用のスナップショットを作成する
func (c *SceneClassifier) State() *NetworkState {
	st := &NetworkState{
		Classes: append([]string(nil), c.classes...),
		NMels:   c.nmels,
		Width:   c.width,
		Seed:    c.seed,
	}
	for _, p := range c.net.Params() {
		st.Params = append(st.Params, append([]float64(nil), p.Data...))
	}
	for _, b := range c.net.Buffers() {
		st.Buffers = append(st.Buffers, append([]float64(nil), b.Data...))
	}
	return st
}

// RestoreSceneClassifier はスナップショットから学習済み分類器を再構築する
func RestoreSceneClassifier(st *NetworkState) (*SceneClassifier, error) {
	c, err := NewSceneClassifier(st.Classes, st.NMels, st.Width, st.Seed)
	if err != nil {
		return nil, err
	}
	if err := copyVectors(c.net.Params(), st.Params, "params"); err != nil {
		return nil, err
	}
	if err := copyVectors(c.net.Buffers(), st.Buffers, "buffers"); err != nil {
		return nil, err
	}
	c.SetFitted()
	return c, nil
}

// copyVectors はスナップショットのベクトル列をネットワークへ位置合わせで書き戻す
func copyVectors(dst []*Param, src [][]float64, kind string) error {
	if len(dst) != len(src) {
		return errors.NewValueError("RestoreSceneClassifier",
			fmt.Sprintf("snapshot has %d %s vectors, network wants %d", len(src), kind, len(dst)))
	}
	for i, p := range dst {
		if len(p.Data) != len(src[i]) {
			return errors.NewValueError("RestoreSceneClassifier",
				fmt.Sprintf("%s vector %d (%s) has %d values, want %d",
					kind, i, p.Name, len(src[i]), len(p.Data)))
		}
		copy(p.Data, src[i])
	}
	return nil
}

// batchTensor は平坦化された特徴量行列を (N, 1, フレーム数, メルビン数) に変換する
func (c *SceneClassifier) batchTensor(X mat.Matrix, phase string) (*Tensor, error) {
	r, cols := X.Dims()
	if r == 0 || cols == 0 {
		return nil, errors.NewModelError("SceneClassifier", "empty data", errors.ErrEmptyData)
	}
	if cols%c.nmels != 0 {
		return nil, errors.NewInputShapeError(phase, []int{r, c.nmels}, []int{r, cols})
	}
	frames := cols / c.nmels

	x := NewTensor(r, 1, frames, c.nmels)
	if d, ok := X.(*mat.Dense); ok {
		raw := d.RawMatrix()
		if raw.Stride == cols {
			copy(x.Data, raw.Data[:r*cols])
			return x, nil
		}
	}
	for i := 0; i < r; i++ {
		for j := 0; j < cols; j++ {
			x.Data[i*cols+j] = X.At(i, j)
		}
	}
	return x, nil
}
