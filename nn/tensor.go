// Package nn は音響シーン分類CNNの層、損失、最適化器を実装する
//
// 全ての層はgonumの行列演算の上に構築された純Go実装で、
// NCHW形式のTensorを入出力とするLayerインターフェースに従う。
// 学習はSoftmaxCrossEntropyの勾配をSequentialで逆伝播し、
// Adamでパラメータを更新する。
package nn

import (
	"fmt"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// Tensor はNCHW形式の4次元テンソル
// Dataは (バッチ, チャネル, 高さ, 幅) の順で行優先に平坦化されている
type Tensor struct {
	// Data は平坦化された要素
	Data []float64

	// N はバッチサイズ
	N int

	// C はチャネル数
	C int

	// H は高さ（時間フレーム方向）
	H int

	// W は幅（メルビン方向）
	W int
}

// NewTensor はゼロ初期化されたテンソルを作成する
func NewTensor(n, c, h, w int) *Tensor {
	return &Tensor{
		Data: make([]float64, n*c*h*w),
		N:    n,
		C:    c,
		H:    h,
		W:    w,
	}
}

// NewTensorFrom は既存のスライスを所有するテンソルを作成する
// スライス長が形状と一致しない場合はエラーを返す
func NewTensorFrom(data []float64, n, c, h, w int) (*Tensor, error) {
	if len(data) != n*c*h*w {
		return nil, errors.NewValueError("NewTensorFrom",
			fmt.Sprintf("%d elements for shape (%d, %d, %d, %d)", len(data), n, c, h, w))
	}
	return &Tensor{Data: data, N: n, C: c, H: h, W: w}, nil
}

// Len は要素数を返す
func (t *Tensor) Len() int {
	return len(t.Data)
}

// Dims は形状を返す
func (t *Tensor) Dims() (n, c, h, w int) {
	return t.N, t.C, t.H, t.W
}

// SameShape は形状が一致するかを返す
func (t *Tensor) SameShape(o *Tensor) bool {
	return t.N == o.N && t.C == o.C && t.H == o.H && t.W == o.W
}

// At は要素 (n, c, h, w) を返す
func (t *Tensor) At(n, c, h, w int) float64 {
	return t.Data[t.index(n, c, h, w)]
}

// Set は要素 (n, c, h, w) を設定する
func (t *Tensor) Set(n, c, h, w int, v float64) {
	t.Data[t.index(n, c, h, w)] = v
}

// Clone はデータを複製した新しいテンソルを返す
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Data: append([]float64(nil), t.Data...),
		N:    t.N,
		C:    t.C,
		H:    t.H,
		W:    t.W,
	}
}

func (t *Tensor) index(n, c, h, w int) int {
	return ((n*t.C+c)*t.H+h)*t.W + w
}

// sample はn番目のサンプルの (C, H, W) ブロックをDataの部分スライスとして返す
func (t *Tensor) sample(n int) []float64 {
	size := t.C * t.H * t.W
	return t.Data[n*size : (n+1)*size]
}

func shapeOf(t *Tensor) []int {
	return []int{t.N, t.C, t.H, t.W}
}
