package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// Conv2D は2次元畳み込み層
//
// im2colで各サンプルを (出力位置 × 受容野) の行列に展開し、
// 重み行列との積として畳み込みを計算する。バイアスは持たず、
// 平行移動は直後のBatchNorm2Dが担う
type Conv2D struct {
	inC    int
	outC   int
	kernel int
	stride int
	pad    int

	weight *Param

	// 直前のForwardの状態
	x    *Tensor
	cols *mat.Dense
	outH int
	outW int
}

// NewConv2D は畳み込み層を作成する
// 重みはGlorotの一様分布で初期化される
func NewConv2D(inC, outC, kernel, stride, pad int, rng *rand.Rand) *Conv2D {
	c := &Conv2D{
		inC:    inC,
		outC:   outC,
		kernel: kernel,
		stride: stride,
		pad:    pad,
		weight: newParam(fmt.Sprintf("conv%dx%d_%d_%d.weight", kernel, kernel, inC, outC), outC*inC*kernel*kernel),
	}
	fan := inC * kernel * kernel
	glorotUniform(rng, c.weight.Data, fan, outC*kernel*kernel)
	return c
}

// Forward は畳み込みを計算する
func (c *Conv2D) Forward(x *Tensor, train bool) (*Tensor, error) {
	if x.C != c.inC {
		return nil, errors.NewDimensionError("Conv2D.Forward", c.inC, x.C, 1)
	}
	outH := (x.H+2*c.pad-c.kernel)/c.stride + 1
	outW := (x.W+2*c.pad-c.kernel)/c.stride + 1
	if outH <= 0 || outW <= 0 {
		return nil, errors.NewValueError("Conv2D.Forward",
			fmt.Sprintf("input %dx%d too small for kernel %d", x.H, x.W, c.kernel))
	}

	c.x = x
	c.outH, c.outW = outH, outW
	patch := c.inC * c.kernel * c.kernel
	if c.cols == nil {
		c.cols = mat.NewDense(outH*outW, patch, nil)
	} else if r, cc := c.cols.Dims(); r != outH*outW || cc != patch {
		c.cols = mat.NewDense(outH*outW, patch, nil)
	}

	wm := mat.NewDense(c.outC, patch, c.weight.Data)
	out := NewTensor(x.N, c.outC, outH, outW)
	for n := 0; n < x.N; n++ {
		c.im2col(x, n)
		// サンプルnの出力ブロックを (outC × outH*outW) のビューとして直接埋める
		o := mat.NewDense(c.outC, outH*outW, out.sample(n))
		o.Mul(wm, c.cols.T())
	}
	return out, nil
}

// Backward は重み勾配と入力勾配を計算する
func (c *Conv2D) Backward(grad *Tensor) (*Tensor, error) {
	if c.x == nil {
		return nil, errors.NewValueError("Conv2D.Backward", "Backward called before Forward")
	}
	if grad.N != c.x.N || grad.C != c.outC || grad.H != c.outH || grad.W != c.outW {
		return nil, errors.NewInputShapeError("training",
			[]int{c.x.N, c.outC, c.outH, c.outW}, shapeOf(grad))
	}

	patch := c.inC * c.kernel * c.kernel
	wm := mat.NewDense(c.outC, patch, c.weight.Data)
	dwm := mat.NewDense(c.outC, patch, c.weight.Grad)
	dwm.Zero()

	dx := NewTensor(c.x.N, c.x.C, c.x.H, c.x.W)
	var dwTmp, dcols mat.Dense
	for n := 0; n < grad.N; n++ {
		c.im2col(c.x, n)
		g := mat.NewDense(c.outC, c.outH*c.outW, grad.sample(n))

		dwTmp.Mul(g, c.cols)
		dwm.Add(dwm, &dwTmp)

		dcols.Mul(g.T(), wm)
		c.col2im(&dcols, dx, n)
	}
	return dx, nil
}

// Params は重みを返す
func (c *Conv2D) Params() []*Param {
	return []*Param{c.weight}
}

// im2col はサンプルnの受容野をc.colsに展開する。パディング部分は0
func (c *Conv2D) im2col(x *Tensor, n int) {
	for oh := 0; oh < c.outH; oh++ {
		for ow := 0; ow < c.outW; ow++ {
			row := c.cols.RawRowView(oh*c.outW + ow)
			k := 0
			for ci := 0; ci < c.inC; ci++ {
				for kh := 0; kh < c.kernel; kh++ {
					ih := oh*c.stride - c.pad + kh
					for kw := 0; kw < c.kernel; kw++ {
						iw := ow*c.stride - c.pad + kw
						if ih >= 0 && ih < x.H && iw >= 0 && iw < x.W {
							row[k] = x.At(n, ci, ih, iw)
						} else {
							row[k] = 0
						}
						k++
					}
				}
			}
		}
	}
}

// col2im は展開された勾配をdxのサンプルnに足し込む
func (c *Conv2D) col2im(dcols *mat.Dense, dx *Tensor, n int) {
	for oh := 0; oh < c.outH; oh++ {
		for ow := 0; ow < c.outW; ow++ {
			row := dcols.RawRowView(oh*c.outW + ow)
			k := 0
			for ci := 0; ci < c.inC; ci++ {
				for kh := 0; kh < c.kernel; kh++ {
					ih := oh*c.stride - c.pad + kh
					for kw := 0; kw < c.kernel; kw++ {
						iw := ow*c.stride - c.pad + kw
						if ih >= 0 && ih < dx.H && iw >= 0 && iw < dx.W {
							dx.Data[dx.index(n, ci, ih, iw)] += row[k]
						}
						k++
					}
				}
			}
		}
	}
}
