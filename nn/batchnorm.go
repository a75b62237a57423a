package nn

import (
	"fmt"
	"math"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

const (
	batchNormMomentum = 0.1
	batchNormEps      = 1e-5
)

// BatchNorm2D はチャネルごとのバッチ正規化
//
// 学習時はバッチ統計で正規化しつつ移動平均統計を更新し、
// 評価時は移動平均統計で正規化する
type BatchNorm2D struct {
	channels int
	momentum float64
	eps      float64

	gamma *Param
	beta  *Param

	runningMean *Param
	runningVar  *Param

	// 直前の学習Forwardの状態
	x    *Tensor
	xhat []float64
	mean []float64
	std  []float64
}

// NewBatchNorm2D はバッチ正規化層を作成する
// gammaは1、betaは0、移動分散は1で初期化される
func NewBatchNorm2D(channels int) *BatchNorm2D {
	b := &BatchNorm2D{
		channels:    channels,
		momentum:    batchNormMomentum,
		eps:         batchNormEps,
		gamma:       newParam(fmt.Sprintf("bn_%d.gamma", channels), channels),
		beta:        newParam(fmt.Sprintf("bn_%d.beta", channels), channels),
		runningMean: newBuffer(fmt.Sprintf("bn_%d.running_mean", channels), channels),
		runningVar:  newBuffer(fmt.Sprintf("bn_%d.running_var", channels), channels),
	}
	for i := 0; i < channels; i++ {
		b.gamma.Data[i] = 1.0
		b.runningVar.Data[i] = 1.0
	}
	return b
}

// Forward は正規化を計算する
func (b *BatchNorm2D) Forward(x *Tensor, train bool) (*Tensor, error) {
	if x.C != b.channels {
		return nil, errors.NewDimensionError("BatchNorm2D.Forward", b.channels, x.C, 1)
	}

	out := NewTensor(x.N, x.C, x.H, x.W)
	if !train {
		b.x = nil
		for n := 0; n < x.N; n++ {
			for c := 0; c < x.C; c++ {
				scale := b.gamma.Data[c] / math.Sqrt(b.runningVar.Data[c]+b.eps)
				shift := b.beta.Data[c] - scale*b.runningMean.Data[c]
				base := x.index(n, c, 0, 0)
				for i := 0; i < x.H*x.W; i++ {
					out.Data[base+i] = scale*x.Data[base+i] + shift
				}
			}
		}
		return out, nil
	}

	m := x.N * x.H * x.W
	b.x = x
	b.xhat = make([]float64, len(x.Data))
	b.mean = make([]float64, b.channels)
	b.std = make([]float64, b.channels)

	for c := 0; c < b.channels; c++ {
		sum := 0.0
		for n := 0; n < x.N; n++ {
			base := x.index(n, c, 0, 0)
			for i := 0; i < x.H*x.W; i++ {
				sum += x.Data[base+i]
			}
		}
		mean := sum / float64(m)

		sqSum := 0.0
		for n := 0; n < x.N; n++ {
			base := x.index(n, c, 0, 0)
			for i := 0; i < x.H*x.W; i++ {
				d := x.Data[base+i] - mean
				sqSum += d * d
			}
		}
		variance := sqSum / float64(m)
		std := math.Sqrt(variance + b.eps)
		b.mean[c] = mean
		b.std[c] = std

		for n := 0; n < x.N; n++ {
			base := x.index(n, c, 0, 0)
			for i := 0; i < x.H*x.W; i++ {
				xhat := (x.Data[base+i] - mean) / std
				b.xhat[base+i] = xhat
				out.Data[base+i] = b.gamma.Data[c]*xhat + b.beta.Data[c]
			}
		}

		// 移動統計の分散は不偏推定で更新する
		unbiased := variance
		if m > 1 {
			unbiased = variance * float64(m) / float64(m-1)
		}
		b.runningMean.Data[c] = (1.0-b.momentum)*b.runningMean.Data[c] + b.momentum*mean
		b.runningVar.Data[c] = (1.0-b.momentum)*b.runningVar.Data[c] + b.momentum*unbiased
	}
	return out, nil
}

// Backward は入力勾配とgamma/betaの勾配を計算する
func (b *BatchNorm2D) Backward(grad *Tensor) (*Tensor, error) {
	if b.x == nil {
		return nil, errors.NewValueError("BatchNorm2D.Backward", "Backward called before training Forward")
	}
	if !grad.SameShape(b.x) {
		return nil, errors.NewInputShapeError("training", shapeOf(b.x), shapeOf(grad))
	}

	m := float64(grad.N * grad.H * grad.W)
	dx := NewTensor(grad.N, grad.C, grad.H, grad.W)

	for c := 0; c < b.channels; c++ {
		sumDy := 0.0
		sumDyXhat := 0.0
		for n := 0; n < grad.N; n++ {
			base := grad.index(n, c, 0, 0)
			for i := 0; i < grad.H*grad.W; i++ {
				dy := grad.Data[base+i]
				sumDy += dy
				sumDyXhat += dy * b.xhat[base+i]
			}
		}
		b.gamma.Grad[c] = sumDyXhat
		b.beta.Grad[c] = sumDy

		k := b.gamma.Data[c] / (m * b.std[c])
		for n := 0; n < grad.N; n++ {
			base := grad.index(n, c, 0, 0)
			for i := 0; i < grad.H*grad.W; i++ {
				dy := grad.Data[base+i]
				dx.Data[base+i] = k * (m*dy - sumDy - b.xhat[base+i]*sumDyXhat)
			}
		}
	}
	return dx, nil
}

// Params はgammaとbetaを返す
func (b *BatchNorm2D) Params() []*Param {
	return []*Param{b.gamma, b.beta}
}

// Buffers は移動平均統計を返す。チェックポイントに保存される
func (b *BatchNorm2D) Buffers() []*Param {
	return []*Param{b.runningMean, b.runningVar}
}
