package nn

import (
	"math"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// AdamConfig はAdam最適化器のハイパーパラメータ
// ゼロ値のフィールドにはデフォルト値が適用される
type AdamConfig struct {
	// LearningRate は学習率 (デフォルト: 1e-3)
	LearningRate float64 `json:"learning_rate"`

	// Beta1 は1次モーメントの減衰率 (デフォルト: 0.9)
	Beta1 float64 `json:"beta1"`

	// Beta2 は2次モーメントの減衰率 (デフォルト: 0.999)
	Beta2 float64 `json:"beta2"`

	// Epsilon はゼロ除算を防ぐ定数 (デフォルト: 1e-8)
	Epsilon float64 `json:"epsilon"`
}

// Adam はバイアス補正付きAdam最適化器
type Adam struct {
	cfg AdamConfig
	t   int
	m   [][]float64
	v   [][]float64
}

// NewAdam はAdam最適化器を作成する
func NewAdam(cfg AdamConfig) *Adam {
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 1e-3
	}
	if cfg.Beta1 == 0 {
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 1e-8
	}
	return &Adam{cfg: cfg}
}

// Config は適用中のハイパーパラメータを返す
func (a *Adam) Config() AdamConfig {
	return a.cfg
}

// SetLearningRate は学習率を変更する。学習率スケジュールからの利用を想定している
func (a *Adam) SetLearningRate(lr float64) error {
	if lr <= 0 {
		return errors.NewValidationError("lr", "must be positive", lr)
	}
	a.cfg.LearningRate = lr
	return nil
}

// Step はパラメータを勾配で1ステップ更新する
// モーメントは最初の呼び出しで確保され、以後paramsの構成は変わらない前提
func (a *Adam) Step(params []*Param) error {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, len(p.Data))
			a.v[i] = make([]float64, len(p.Data))
		}
	}
	if len(params) != len(a.m) {
		return errors.NewDimensionError("Adam.Step", len(a.m), len(params), 0)
	}

	a.t++
	c1 := 1.0 - math.Pow(a.cfg.Beta1, float64(a.t))
	c2 := 1.0 - math.Pow(a.cfg.Beta2, float64(a.t))

	for i, p := range params {
		if len(p.Data) != len(a.m[i]) {
			return errors.NewDimensionError("Adam.Step", len(a.m[i]), len(p.Data), i)
		}
		m, v := a.m[i], a.v[i]
		for j, g := range p.Grad {
			m[j] = a.cfg.Beta1*m[j] + (1.0-a.cfg.Beta1)*g
			v[j] = a.cfg.Beta2*v[j] + (1.0-a.cfg.Beta2)*g*g
			mhat := m[j] / c1
			vhat := v[j] / c2
			p.Data[j] -= a.cfg.LearningRate * mhat / (math.Sqrt(vhat) + a.cfg.Epsilon)
		}
	}
	return nil
}
