package nn

import (
	"math/rand"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// Sequential は層を直列につないだネットワーク
type Sequential struct {
	layers []Layer
}

// NewSequential は層の列からネットワークを作成する
func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{layers: layers}
}

// Forward は全層を順に適用する
func (s *Sequential) Forward(x *Tensor, train bool) (*Tensor, error) {
	var err error
	for _, l := range s.layers {
		x, err = l.Forward(x, train)
		if err != nil {
			return nil, err
		}
	}
	return x, nil
}

// Backward は全層を逆順に逆伝播する
func (s *Sequential) Backward(grad *Tensor) (*Tensor, error) {
	var err error
	for i := len(s.layers) - 1; i >= 0; i-- {
		grad, err = s.layers[i].Backward(grad)
		if err != nil {
			return nil, err
		}
	}
	return grad, nil
}

// Params は全層の学習対象パラメータを層の順で返す
func (s *Sequential) Params() []*Param {
	var params []*Param
	for _, l := range s.layers {
		params = append(params, l.Params()...)
	}
	return params
}

// Buffers は全層の非学習状態（BatchNormの移動統計）を層の順で返す
func (s *Sequential) Buffers() []*Param {
	var buffers []*Param
	for _, l := range s.layers {
		if b, ok := l.(interface{ Buffers() []*Param }); ok {
			buffers = append(buffers, b.Buffers()...)
		}
	}
	return buffers
}

// NumLayers は層数を返す
func (s *Sequential) NumLayers() int {
	return len(s.layers)
}

// sceneCNNWidths は各畳み込みブロックの基準チャネル数
var sceneCNNWidths = [4]int{64, 128, 256, 512}

// scaleWidth はブロックの基準チャネル数を幅係数で拡縮する。最低1チャネル
func scaleWidth(base int, width float64) int {
	w := int(float64(base) * width)
	if w < 1 {
		w = 1
	}
	return w
}

// NewSceneCNN はシーン分類用の畳み込みネットワークを構築する
//
// 構成は (Conv3x3 + BatchNorm + ReLU) を2回重ねて2x2平均プーリングする
// ブロックを4段（チャネル数 64/128/256/512 を幅係数で拡縮）、
// その後に大域平均プーリングと全結合層を置く。
// 大域プーリングのおかげで入力の時間長は学習時と評価時で異なってよいが、
// 4段のプーリングを通るため空間サイズは最低 16x16 必要
func NewSceneCNN(numClasses int, width float64, rng *rand.Rand) (*Sequential, error) {
	if numClasses < 2 {
		return nil, errors.NewValidationError("numClasses", "must be at least 2", numClasses)
	}
	if width <= 0 {
		return nil, errors.NewValidationError("width", "must be positive", width)
	}

	var layers []Layer
	in := 1
	for _, base := range sceneCNNWidths {
		out := scaleWidth(base, width)
		layers = append(layers,
			NewConv2D(in, out, 3, 1, 1, rng),
			NewBatchNorm2D(out),
			NewReLU(),
			NewConv2D(out, out, 3, 1, 1, rng),
			NewBatchNorm2D(out),
			NewReLU(),
			NewAvgPool2D(2),
		)
		in = out
	}
	layers = append(layers,
		NewGlobalAvgPool(),
		NewDense(in, numClasses, rng),
	)
	return NewSequential(layers...), nil
}
