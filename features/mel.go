package features

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// HzToMel は周波数(Hz)をHTKメル尺度に変換する
func HzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

// MelToHz はHTKメル尺度を周波数(Hz)に変換する
func MelToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// MelBank はパワースペクトルをメル帯域に集約する三角フィルタバンク
type MelBank struct {
	weights *mat.Dense // nmels × nbins
	nmels   int
	nbins   int
}

// NewMelBank はメル尺度上で等間隔な三角フィルタバンクを構築する
// 各フィルタはSlaney流に帯域幅で正規化される
func NewMelBank(sampleRate, nfft, nmels int, fmin, fmax float64) (*MelBank, error) {
	if sampleRate <= 0 {
		return nil, errors.NewValidationError("SampleRate", "must be positive", sampleRate)
	}
	if nfft <= 0 {
		return nil, errors.NewValidationError("NFFT", "must be positive", nfft)
	}
	nbins := nfft/2 + 1
	if nmels <= 0 || nmels > nbins {
		return nil, errors.NewValidationError("NMels", "must be in (0, NFFT/2+1]", nmels)
	}
	if fmin < 0 || fmax <= fmin {
		return nil, errors.NewValidationError("FMax", "must be greater than FMin", fmax)
	}
	if nyquist := float64(sampleRate) / 2; fmax > nyquist {
		return nil, errors.NewValidationError("FMax", "must not exceed the Nyquist frequency", fmax)
	}

	// メル尺度上で等間隔なnmels+2個の境界点を周波数に戻す
	melMin, melMax := HzToMel(fmin), HzToMel(fmax)
	hzPts := make([]float64, nmels+2)
	for i := range hzPts {
		m := melMin + (melMax-melMin)*float64(i)/float64(nmels+1)
		hzPts[i] = MelToHz(m)
	}

	weights := mat.NewDense(nmels, nbins, nil)
	for m := 0; m < nmels; m++ {
		lower, center, upper := hzPts[m], hzPts[m+1], hzPts[m+2]
		norm := 2 / (upper - lower)
		for k := 0; k < nbins; k++ {
			f := float64(k) * float64(sampleRate) / float64(nfft)
			var w float64
			switch {
			case f <= lower || f >= upper:
				w = 0
			case f <= center:
				w = (f - lower) / (center - lower)
			default:
				w = (upper - f) / (upper - center)
			}
			weights.Set(m, k, w*norm)
		}
	}

	return &MelBank{weights: weights, nmels: nmels, nbins: nbins}, nil
}

// NumMels はメルビンの数を返す
func (b *MelBank) NumMels() int {
	return b.nmels
}

// Weights はフィルタバンクの係数行列 (nmels × nbins) を返す
func (b *MelBank) Weights() mat.Matrix {
	return b.weights
}

// Apply はパワースペクトログラム (フレーム数 × ビン数) をメル帯域へ射影する
func (b *MelBank) Apply(power mat.Matrix) (*mat.Dense, error) {
	r, c := power.Dims()
	if c != b.nbins {
		return nil, errors.NewDimensionError("MelBank.Apply", b.nbins, c, 1)
	}
	out := mat.NewDense(r, b.nmels, nil)
	out.Mul(power, b.weights.T())
	return out, nil
}
