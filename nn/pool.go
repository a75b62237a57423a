package nn

import (
	"fmt"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// AvgPool2D は重なりのない平均プーリング層
// 窓サイズとストライドは等しく、割り切れない端の行・列は捨てる
type AvgPool2D struct {
	size       int
	inH, inW   int
	outH, outW int
	n, c       int
}

// NewAvgPool2D は窓サイズsizeの平均プーリング層を作成する
func NewAvgPool2D(size int) *AvgPool2D {
	return &AvgPool2D{size: size}
}

// Forward は各窓の平均を計算する
func (p *AvgPool2D) Forward(x *Tensor, train bool) (*Tensor, error) {
	outH := x.H / p.size
	outW := x.W / p.size
	if outH == 0 || outW == 0 {
		return nil, errors.NewValueError("AvgPool2D.Forward",
			fmt.Sprintf("input %dx%d too small for pool size %d", x.H, x.W, p.size))
	}
	p.inH, p.inW = x.H, x.W
	p.outH, p.outW = outH, outW
	p.n, p.c = x.N, x.C

	inv := 1.0 / float64(p.size*p.size)
	out := NewTensor(x.N, x.C, outH, outW)
	for n := 0; n < x.N; n++ {
		for c := 0; c < x.C; c++ {
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					sum := 0.0
					for kh := 0; kh < p.size; kh++ {
						for kw := 0; kw < p.size; kw++ {
							sum += x.At(n, c, oh*p.size+kh, ow*p.size+kw)
						}
					}
					out.Set(n, c, oh, ow, sum*inv)
				}
			}
		}
	}
	return out, nil
}

// Backward は勾配を窓内に均等に分配する
func (p *AvgPool2D) Backward(grad *Tensor) (*Tensor, error) {
	if p.inH == 0 {
		return nil, errors.NewValueError("AvgPool2D.Backward", "Backward called before Forward")
	}
	if grad.N != p.n || grad.C != p.c || grad.H != p.outH || grad.W != p.outW {
		return nil, errors.NewInputShapeError("training",
			[]int{p.n, p.c, p.outH, p.outW}, shapeOf(grad))
	}

	inv := 1.0 / float64(p.size*p.size)
	dx := NewTensor(p.n, p.c, p.inH, p.inW)
	for n := 0; n < grad.N; n++ {
		for c := 0; c < grad.C; c++ {
			for oh := 0; oh < p.outH; oh++ {
				for ow := 0; ow < p.outW; ow++ {
					g := grad.At(n, c, oh, ow) * inv
					for kh := 0; kh < p.size; kh++ {
						for kw := 0; kw < p.size; kw++ {
							dx.Set(n, c, oh*p.size+kh, ow*p.size+kw, g)
						}
					}
				}
			}
		}
	}
	return dx, nil
}

// Params はnilを返す
func (p *AvgPool2D) Params() []*Param {
	return nil
}

// GlobalAvgPool は空間次元全体の平均を取り (N, C, 1, 1) に縮約する
// 入力の空間サイズに依存しないため、学習時のクロップと
// 評価時の全長クリップを同じネットワークで処理できる
type GlobalAvgPool struct {
	inH, inW int
	n, c     int
}

// NewGlobalAvgPool は大域平均プーリング層を作成する
func NewGlobalAvgPool() *GlobalAvgPool {
	return &GlobalAvgPool{}
}

// Forward はチャネルごとの空間平均を計算する
func (p *GlobalAvgPool) Forward(x *Tensor, train bool) (*Tensor, error) {
	p.inH, p.inW = x.H, x.W
	p.n, p.c = x.N, x.C

	inv := 1.0 / float64(x.H*x.W)
	out := NewTensor(x.N, x.C, 1, 1)
	for n := 0; n < x.N; n++ {
		for c := 0; c < x.C; c++ {
			base := x.index(n, c, 0, 0)
			sum := 0.0
			for i := 0; i < x.H*x.W; i++ {
				sum += x.Data[base+i]
			}
			out.Data[n*x.C+c] = sum * inv
		}
	}
	return out, nil
}

// Backward は勾配を全空間位置に均等に分配する
func (p *GlobalAvgPool) Backward(grad *Tensor) (*Tensor, error) {
	if p.n == 0 {
		return nil, errors.NewValueError("GlobalAvgPool.Backward", "Backward called before Forward")
	}
	if grad.N != p.n || grad.C != p.c || grad.H != 1 || grad.W != 1 {
		return nil, errors.NewInputShapeError("training",
			[]int{p.n, p.c, 1, 1}, shapeOf(grad))
	}

	inv := 1.0 / float64(p.inH*p.inW)
	dx := NewTensor(p.n, p.c, p.inH, p.inW)
	for n := 0; n < grad.N; n++ {
		for c := 0; c < grad.C; c++ {
			g := grad.Data[n*grad.C+c] * inv
			base := dx.index(n, c, 0, 0)
			for i := 0; i < p.inH*p.inW; i++ {
				dx.Data[base+i] = g
			}
		}
	}
	return dx, nil
}

// Params はnilを返す
func (p *GlobalAvgPool) Params() []*Param {
	return nil
}
