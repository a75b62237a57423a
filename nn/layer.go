package nn

import (
	"math"
	"math/rand"
)

// Param は学習対象のパラメータとその勾配
type Param struct {
	// Name はログ出力用の識別名
	Name string

	// Data はパラメータ値
	Data []float64

	// Grad はDataと同じ長さの勾配。Backwardのたびに上書きされる
	Grad []float64
}

func newParam(name string, size int) *Param {
	return &Param{
		Name: name,
		Data: make([]float64, size),
		Grad: make([]float64, size),
	}
}

// buffer は学習対象ではないが保存対象の内部状態（BatchNormの移動統計など）
func newBuffer(name string, size int) *Param {
	return &Param{
		Name: name,
		Data: make([]float64, size),
	}
}

// Layer はネットワークを構成する層のインターフェース
//
// Forwardは入力を変換し、Backwardは直前のForwardの入力に対する勾配を返す。
// Backwardは各パラメータのGradを上書きするため、勾配の加算は行わない。
// 層は直前のForwardの中間結果を保持するので、goroutine安全ではない
type Layer interface {
	// Forward は入力テンソルを変換する。trainは学習モードかどうか
	Forward(x *Tensor, train bool) (*Tensor, error)

	// Backward は出力側の勾配から入力側の勾配を計算する
	Backward(grad *Tensor) (*Tensor, error)

	// Params は学習対象のパラメータを返す。持たない層はnilを返す
	Params() []*Param
}

// glorotUniform はGlorotの一様分布 U(-limit, limit) で重みを初期化する
// limit = sqrt(6 / (fanIn + fanOut))
func glorotUniform(rng *rand.Rand, data []float64, fanIn, fanOut int) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range data {
		data[i] = (rng.Float64()*2.0 - 1.0) * limit
	}
}
