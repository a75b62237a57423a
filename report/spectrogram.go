package report

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/soundscape-ml/ascgo/features"
	"github.com/soundscape-ml/ascgo/pkg/errors"
	"github.com/soundscape-ml/ascgo/pkg/log"
	"github.com/soundscape-ml/ascgo/preprocessing"
)

// RenderSpectrogram はキャッシュ内のクリップの対数メルスペクトログラムをPNGに描く
// 横軸がフレーム、縦軸がメルビンで、低いメルビンが画像の下になる
func RenderSpectrogram(pack *features.Pack, index int, path string) error {
	if pack == nil {
		return errors.NewValueError("RenderSpectrogram", "nil feature cache")
	}
	if index < 0 || index >= pack.NumClips() {
		return errors.NewValueError("RenderSpectrogram",
			fmt.Sprintf("clip index %d out of range (%d clips)", index, pack.NumClips()))
	}
	if err := renderMatrix(pack.Clip(index), path); err != nil {
		return err
	}
	log.GetLoggerWithName("report").Info("spectrogram written",
		"path", path,
		log.ClipKey, pack.Names[index],
	)
	return nil
}

// RenderRecording はWAVファイルから特徴量を抽出してスペクトログラムをPNGに描く
func RenderRecording(wavPath string, cfg features.Config, path string) error {
	ex, err := features.NewExtractor(cfg)
	if err != nil {
		return err
	}
	spec, err := ex.ExtractFile(wavPath)
	if err != nil {
		return err
	}
	if err := renderMatrix(spec, path); err != nil {
		return err
	}
	log.GetLoggerWithName("report").Info("spectrogram written",
		"path", path,
		log.ClipKey, wavPath,
	)
	return nil
}

// renderMatrix は (フレーム × メルビン) 行列を全体の最小・最大で
// [0,255] のグレースケール強度に写してPNGに書き出す
func renderMatrix(spec *mat.Dense, path string) error {
	frames, nmels := spec.Dims()
	flat := make([]float64, frames*nmels)
	for t := 0; t < frames; t++ {
		for m := 0; m < nmels; m++ {
			flat[t*nmels+m] = spec.At(t, m)
		}
	}

	scaler := preprocessing.NewMinMaxScaler([2]float64{0.0, 255.0})
	scaled, err := scaler.FitTransform(mat.NewDense(len(flat), 1, flat))
	if err != nil {
		return errors.Wrap(err, "scale spectrogram intensities")
	}

	img := image.NewGray(image.Rect(0, 0, frames, nmels))
	for t := 0; t < frames; t++ {
		for m := 0; m < nmels; m++ {
			v := scaled.At(t*nmels+m, 0)
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			img.SetGray(t, nmels-1-m, color.Gray{Y: uint8(v + 0.5)})
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create report directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create spectrogram file %s", path)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return errors.Wrapf(err, "encode spectrogram to %s", path)
	}
	return nil
}
