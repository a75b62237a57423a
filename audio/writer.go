package audio

import (
	"math"
	"os"
	"path/filepath"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// WriteWAV は波形を16ビットPCMのモノラルWAVとして書き出す
// 振幅は[-1, 1]にクリップしてから量子化する。親ディレクトリがなければ作成する
func WriteWAV(path string, samples []float64, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create wav %s", path)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(errors.ClipValue(s, -1.0, 1.0) * 32767.0))
	}

	buf := &gaudio.IntBuffer{
		Data:   data,
		Format: &gaudio.Format{SampleRate: sampleRate, NumChannels: 1},
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrapf(err, "write wav %s", path)
	}
	return errors.Wrapf(enc.Close(), "finalize wav %s", path)
}
