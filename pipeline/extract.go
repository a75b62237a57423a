package pipeline

import (
	"github.com/soundscape-ml/ascgo/config"
	"github.com/soundscape-ml/ascgo/features"
	"github.com/soundscape-ml/ascgo/pkg/log"
)

// ExtractFeatures は開発セットと評価セットの特徴量キャッシュを作り直す
//
// 既存のキャッシュは設定が一致していても上書きする。評価セットの
// マニフェストが見つからない場合は開発セットのみを抽出する
func ExtractFeatures(settings *config.Settings) error {
	logger := log.GetLoggerWithName("pipeline")
	subtask, err := settings.Subtask()
	if err != nil {
		return err
	}
	cfg := settings.FeatureConfig()

	devEntries, err := developmentEntries(settings)
	if err != nil {
		return err
	}
	devRefs := clipRefs(settings.Dataset.Dir, devEntries)
	devPack, err := features.ExtractPack(devRefs, cfg, settings.Features.Workers)
	if err != nil {
		return err
	}
	devPath := features.CachePath(settings.Workspace, string(subtask), settings.Dataset.Fold, developmentSet)
	if err := devPack.Save(devPath); err != nil {
		return err
	}
	logger.Info("development features cached",
		"path", devPath,
		log.SamplesKey, devPack.NumClips(),
	)

	evalEntries, err := evaluationEntries(settings)
	if err != nil {
		logger.Warn("evaluation manifest unavailable, skipping", log.ErrAttr(err))
		return nil
	}
	evalRefs := clipRefs(settings.Dataset.Dir, evalEntries)
	evalPack, err := features.ExtractPack(evalRefs, cfg, settings.Features.Workers)
	if err != nil {
		return err
	}
	evalPath := features.CachePath(settings.Workspace, string(subtask), settings.Dataset.Fold, evaluationSet)
	if err := evalPack.Save(evalPath); err != nil {
		return err
	}
	logger.Info("evaluation features cached",
		"path", evalPath,
		log.SamplesKey, evalPack.NumClips(),
	)
	return nil
}
