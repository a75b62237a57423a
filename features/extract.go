package features

import (
	"time"

	"github.com/soundscape-ml/ascgo/core/parallel"
	"github.com/soundscape-ml/ascgo/pkg/errors"
	"github.com/soundscape-ml/ascgo/pkg/log"
)

// ClipRef は抽出対象の1クリップとそのメタデータ
type ClipRef struct {
	// Name はキャッシュに記録されるファイル名
	Name string

	// Path はWAVファイルの実パス
	Path string

	// Label はシーンラベル。評価用セットでは空
	Label string

	// Device は録音デバイス。サブタスクB以外では空
	Device string

	// City は収録地識別子。なければ空
	City string
}

// ExtractPack はクリップ群からログメルスペクトログラムを並列に抽出し、
// 1つのPackにまとめる
//
// クリップごとの書き込み先はあらかじめ決まっているため、ワーカー間で
// 共有状態を持たない。STFTプランはワーカーごとに作成する。
// 1クリップでも失敗した場合はそのパスを含むエラーで全体を中断する
//
// パラメータ:
//   - refs: 抽出対象のクリップ一覧
//   - cfg: 抽出設定
//   - workers: ワーカー数 (0以下でCPU数)
//
// 戻り値:
//   - *Pack: 抽出済み特徴量
//   - error: 設定が不正、またはいずれかのクリップの抽出に失敗した場合
func ExtractPack(refs []ClipRef, cfg Config, workers int) (*Pack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, errors.NewValueError("ExtractPack", "no recordings to extract")
	}

	logger := log.GetLoggerWithName("features.extract")
	logger.Info("feature extraction started",
		log.SamplesKey, len(refs),
		log.FramesKey, cfg.NumFrames(),
		log.FeaturesKey, cfg.NMels,
		log.WorkersKey, workers,
	)
	startTime := time.Now()

	pack := NewPack(cfg, len(refs))
	for i, ref := range refs {
		pack.Names[i] = ref.Name
		pack.Labels[i] = ref.Label
		pack.Devices[i] = ref.Device
		pack.Cities[i] = ref.City
	}

	errs := make([]error, len(refs))
	parallel.ParallelizeWithWorkers(len(refs), workers, func(start, end int) {
		ext, err := NewExtractor(cfg)
		if err != nil {
			for i := start; i < end; i++ {
				errs[i] = err
			}
			return
		}
		for i := start; i < end; i++ {
			ref := refs[i]
			dst := pack.ClipData(i)
			errs[i] = errors.SafeExecute("extract "+ref.Path, func() error {
				spec, err := ext.ExtractFile(ref.Path)
				if err != nil {
					return err
				}
				copy(dst, spec.RawMatrix().Data)
				return nil
			})
		}
	})

	for i, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "extract features for %s", refs[i].Name)
		}
	}

	logger.Info("feature extraction finished",
		log.SamplesKey, len(refs),
		log.DurationSecondsKey, time.Since(startTime).Seconds(),
	)
	return pack, nil
}
