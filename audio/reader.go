// Package audio はWAVファイルの読み書きとリサンプリングを提供する
package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// readBufferSize はPCMデコード1回あたりのフレーム数
const readBufferSize = 32768

// ReadWAV はWAVファイルをモノラルのfloat64波形として読み込む
// 振幅はビット深度に応じて[-1, 1]に正規化され、ステレオ音源は
// 左右チャンネルの平均でモノラル化される。ファイルのサンプリングレートが
// sampleRateと異なる場合は3次補間でリサンプリングする。
//
// パラメータ:
//   - path: WAVファイルのパス
//   - sampleRate: 出力波形のサンプリングレート (Hz)
//
// 戻り値:
//   - []float64: 正規化済みのモノラル波形
//   - error: ファイルが開けない、または形式が不正な場合
func ReadWAV(path string, sampleRate int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open wav %s", path)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, errors.NewValueError("ReadWAV", fmt.Sprintf("%s: not a valid WAV file", path))
	}

	divisor, ok := bitDepthDivisor(int(dec.BitDepth))
	if !ok {
		return nil, errors.NewValueError("ReadWAV", fmt.Sprintf("%s: unsupported bit depth %d", path, dec.BitDepth))
	}

	numChans := int(dec.NumChans)
	if numChans != 1 && numChans != 2 {
		return nil, errors.NewValueError("ReadWAV", fmt.Sprintf("%s: unsupported channel count %d", path, numChans))
	}

	srcRate := int(dec.SampleRate)
	buf := &gaudio.IntBuffer{
		Data:   make([]int, readBufferSize*numChans),
		Format: &gaudio.Format{SampleRate: srcRate, NumChannels: numChans},
	}

	var samples []float64
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return nil, errors.Wrapf(err, "decode wav %s", path)
		}
		if n == 0 {
			break
		}

		if numChans == 1 {
			for _, s := range buf.Data[:n] {
				samples = append(samples, float64(s)/divisor)
			}
		} else {
			// インターリーブされたステレオは左右の平均でモノラル化する
			for i := 0; i+1 < n; i += 2 {
				l := float64(buf.Data[i]) / divisor
				r := float64(buf.Data[i+1]) / divisor
				samples = append(samples, (l+r)/2)
			}
		}
	}

	if srcRate != sampleRate {
		samples = Resample(samples, srcRate, sampleRate)
	}
	return samples, nil
}

// LoadClip は1クリップ分の波形を読み込み、指定サンプル数に揃える
func LoadClip(path string, sampleRate, numSamples int) ([]float64, error) {
	x, err := ReadWAV(path, sampleRate)
	if err != nil {
		return nil, err
	}
	return FixLength(x, numSamples), nil
}

// FixLength は波形をちょうどnサンプルに揃える
// 長い場合は末尾を切り捨て、短い場合は末尾をゼロ詰めする
func FixLength(x []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, x)
	return out
}

// bitDepthDivisor は整数サンプルをfloatへ正規化する除数を返す
func bitDepthDivisor(bitDepth int) (float64, bool) {
	switch bitDepth {
	case 16:
		return 32768.0, true
	case 24:
		return 8388608.0, true
	case 32:
		return 2147483648.0, true
	default:
		return 0, false
	}
}
