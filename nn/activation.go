package nn

import (
	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// ReLU は max(0, x) の活性化層
type ReLU struct {
	mask       []bool
	n, c, h, w int
}

// NewReLU はReLU層を作成する
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward は負の要素を0にする
func (r *ReLU) Forward(x *Tensor, train bool) (*Tensor, error) {
	out := NewTensor(x.N, x.C, x.H, x.W)
	r.mask = make([]bool, len(x.Data))
	r.n, r.c, r.h, r.w = x.N, x.C, x.H, x.W
	for i, v := range x.Data {
		if v > 0 {
			out.Data[i] = v
			r.mask[i] = true
		}
	}
	return out, nil
}

// Backward は負だった要素の勾配を遮断する
func (r *ReLU) Backward(grad *Tensor) (*Tensor, error) {
	if r.mask == nil {
		return nil, errors.NewValueError("ReLU.Backward", "Backward called before Forward")
	}
	if len(grad.Data) != len(r.mask) {
		return nil, errors.NewInputShapeError("training",
			[]int{r.n, r.c, r.h, r.w}, shapeOf(grad))
	}
	dx := NewTensor(grad.N, grad.C, grad.H, grad.W)
	for i, on := range r.mask {
		if on {
			dx.Data[i] = grad.Data[i]
		}
	}
	return dx, nil
}

// Params はnilを返す
func (r *ReLU) Params() []*Param {
	return nil
}
