package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// Dense は全結合層。入力テンソルをサンプルごとに平坦化して変換する
type Dense struct {
	in  int
	out int

	weight *Param
	bias   *Param

	// 直前のForwardの状態
	x *Tensor
}

// NewDense は全結合層を作成する
// 重みはGlorotの一様分布、バイアスは0で初期化される
func NewDense(in, out int, rng *rand.Rand) *Dense {
	d := &Dense{
		in:     in,
		out:    out,
		weight: newParam(fmt.Sprintf("dense_%d_%d.weight", in, out), out*in),
		bias:   newParam(fmt.Sprintf("dense_%d_%d.bias", in, out), out),
	}
	glorotUniform(rng, d.weight.Data, in, out)
	return d
}

// Forward は y = xW^T + b を計算し (N, out, 1, 1) を返す
func (d *Dense) Forward(x *Tensor, train bool) (*Tensor, error) {
	flat := x.C * x.H * x.W
	if flat != d.in {
		return nil, errors.NewDimensionError("Dense.Forward", d.in, flat, 1)
	}
	d.x = x

	xm := mat.NewDense(x.N, d.in, x.Data)
	wm := mat.NewDense(d.out, d.in, d.weight.Data)

	out := NewTensor(x.N, d.out, 1, 1)
	ym := mat.NewDense(x.N, d.out, out.Data)
	ym.Mul(xm, wm.T())
	for n := 0; n < x.N; n++ {
		row := ym.RawRowView(n)
		for o := 0; o < d.out; o++ {
			row[o] += d.bias.Data[o]
		}
	}
	return out, nil
}

// Backward は重み・バイアス・入力の勾配を計算する
func (d *Dense) Backward(grad *Tensor) (*Tensor, error) {
	if d.x == nil {
		return nil, errors.NewValueError("Dense.Backward", "Backward called before Forward")
	}
	if grad.N != d.x.N || grad.C != d.out || grad.H != 1 || grad.W != 1 {
		return nil, errors.NewInputShapeError("training",
			[]int{d.x.N, d.out, 1, 1}, shapeOf(grad))
	}

	xm := mat.NewDense(d.x.N, d.in, d.x.Data)
	wm := mat.NewDense(d.out, d.in, d.weight.Data)
	gm := mat.NewDense(grad.N, d.out, grad.Data)

	dwm := mat.NewDense(d.out, d.in, d.weight.Grad)
	dwm.Mul(gm.T(), xm)

	for o := 0; o < d.out; o++ {
		sum := 0.0
		for n := 0; n < grad.N; n++ {
			sum += gm.At(n, o)
		}
		d.bias.Grad[o] = sum
	}

	dx := NewTensor(d.x.N, d.x.C, d.x.H, d.x.W)
	dxm := mat.NewDense(d.x.N, d.in, dx.Data)
	dxm.Mul(gm, wm)
	return dx, nil
}

// Params は重みとバイアスを返す
func (d *Dense) Params() []*Param {
	return []*Param{d.weight, d.bias}
}
