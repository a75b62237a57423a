package features

import (
	"gonum.org/v1/gonum/mat"

	"github.com/soundscape-ml/ascgo/audio"
	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// Extractor は固定長波形からログメルスペクトログラムを計算する
// STFTプランを内部に持つためゴルーチン間では共有できない。
// 並列抽出ではワーカーごとに1つ作成する
type Extractor struct {
	cfg  Config
	stft *STFT
	mel  *MelBank
}

// NewExtractor は設定を検証し、STFTプランとフィルタバンクを準備する
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mel, err := NewMelBank(cfg.SampleRate, cfg.NFFT, cfg.NMels, cfg.FMin, cfg.FMax)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:  cfg,
		stft: NewSTFT(cfg.NFFT, cfg.HopLength),
		mel:  mel,
	}, nil
}

// Config は抽出設定を返す
func (e *Extractor) Config() Config {
	return e.cfg
}

// Extract は波形からログメルスペクトログラムを計算する
// 入力はちょうどClipSamplesサンプルでなければならない。
// 戻り値は常に (NumFrames × NMels) の行列
func (e *Extractor) Extract(samples []float64) (*mat.Dense, error) {
	if len(samples) != e.cfg.ClipSamples {
		return nil, errors.NewInputShapeError("Extract",
			[]int{e.cfg.ClipSamples}, []int{len(samples)})
	}

	power := e.stft.PowerSpectrogram(samples)
	melSpec, err := e.mel.Apply(power)
	if err != nil {
		return nil, err
	}

	// 中心合わせのSTFTはNumFramesより1フレーム多いので末尾を切り捨てる。
	// 対数は無音で発散しないよう下限付きで取る
	frames := e.cfg.NumFrames()
	out := mat.NewDense(frames, e.cfg.NMels, nil)
	for i := 0; i < frames; i++ {
		src := melSpec.RawRowView(i)
		dst := out.RawRowView(i)
		for j, v := range src {
			dst[j] = errors.StabilizeLog(v)
		}
	}
	return out, nil
}

// ExtractFile はWAVファイルを読み込んでログメルスペクトログラムを返す
// ファイルはリサンプリングと長さ調整を経てから抽出される
func (e *Extractor) ExtractFile(path string) (*mat.Dense, error) {
	samples, err := audio.LoadClip(path, e.cfg.SampleRate, e.cfg.ClipSamples)
	if err != nil {
		return nil, err
	}
	return e.Extract(samples)
}
