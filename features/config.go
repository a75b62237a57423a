// Package features はログメルスペクトログラムの抽出とキャッシュを提供する
package features

import (
	"fmt"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// Config はログメルスペクトログラム抽出のパラメータ
// キャッシュにはConfigごと保存され、読み込み時に現在の設定と照合される
type Config struct {
	// SampleRate は波形のサンプリングレート (Hz)
	SampleRate int `json:"sample_rate"`

	// ClipSamples は1クリップあたりのサンプル数
	ClipSamples int `json:"clip_samples"`

	// NFFT はFFTの窓幅
	NFFT int `json:"n_fft"`

	// HopLength はフレーム間のホップ幅
	HopLength int `json:"hop_length"`

	// NMels はメルビンの数
	NMels int `json:"n_mels"`

	// FMin はメルフィルタバンクの下限周波数 (Hz)
	FMin float64 `json:"f_min"`

	// FMax はメルフィルタバンクの上限周波数 (Hz)
	FMax float64 `json:"f_max"`
}

// NewConfig はベンチマーク標準のパラメータでConfigを作成する
// 32kHz、10秒クリップ、64メルビン、毎秒64フレーム
func NewConfig() Config {
	return Config{
		SampleRate:  32000,
		ClipSamples: 320000,
		NFFT:        1024,
		HopLength:   500,
		NMels:       64,
		FMin:        50,
		FMax:        14000,
	}
}

// NumFrames は1クリップあたりのフレーム数を返す
func (c Config) NumFrames() int {
	return c.ClipSamples / c.HopLength
}

// NumBins はFFTの片側スペクトルのビン数を返す
func (c Config) NumBins() int {
	return c.NFFT/2 + 1
}

// Validate はパラメータの整合性を検証する
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return errors.NewValidationError("SampleRate", "must be positive", c.SampleRate)
	}
	if c.ClipSamples <= 0 {
		return errors.NewValidationError("ClipSamples", "must be positive", c.ClipSamples)
	}
	if c.NFFT <= 0 || c.NFFT > c.ClipSamples {
		return errors.NewValidationError("NFFT", "must be in (0, ClipSamples]", c.NFFT)
	}
	if c.HopLength <= 0 {
		return errors.NewValidationError("HopLength", "must be positive", c.HopLength)
	}
	if c.NMels <= 0 {
		return errors.NewValidationError("NMels", "must be positive", c.NMels)
	}
	if c.FMin < 0 {
		return errors.NewValidationError("FMin", "must be non-negative", c.FMin)
	}
	if c.FMax <= c.FMin {
		return errors.NewValidationError("FMax", "must be greater than FMin", c.FMax)
	}
	if nyquist := float64(c.SampleRate) / 2; c.FMax > nyquist {
		return errors.NewValidationError("FMax", fmt.Sprintf("must not exceed the Nyquist frequency %.0f", nyquist), c.FMax)
	}
	return nil
}

// diff は2つの設定を比較し、最初に異なるフィールドを返す
func (c Config) diff(other Config) (field, stored, active string, equal bool) {
	type entry struct {
		name           string
		stored, active string
	}
	fields := []entry{
		{"SampleRate", fmt.Sprint(c.SampleRate), fmt.Sprint(other.SampleRate)},
		{"ClipSamples", fmt.Sprint(c.ClipSamples), fmt.Sprint(other.ClipSamples)},
		{"NFFT", fmt.Sprint(c.NFFT), fmt.Sprint(other.NFFT)},
		{"HopLength", fmt.Sprint(c.HopLength), fmt.Sprint(other.HopLength)},
		{"NMels", fmt.Sprint(c.NMels), fmt.Sprint(other.NMels)},
		{"FMin", fmt.Sprint(c.FMin), fmt.Sprint(other.FMin)},
		{"FMax", fmt.Sprint(c.FMax), fmt.Sprint(other.FMax)},
	}
	for _, f := range fields {
		if f.stored != f.active {
			return f.name, f.stored, f.active, false
		}
	}
	return "", "", "", true
}
