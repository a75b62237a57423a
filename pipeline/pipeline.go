// Package pipeline は各コマンドが実行するエンドツーエンドの処理を実装する
//
// 特徴量キャッシュはワークスペース内にサブタスクとセットごとのgobとして
// 置かれ、設定が一致する限り再利用される。一致しない場合は作り直す
package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/soundscape-ml/ascgo/config"
	"github.com/soundscape-ml/ascgo/dataset"
	"github.com/soundscape-ml/ascgo/features"
	"github.com/soundscape-ml/ascgo/pkg/errors"
	"github.com/soundscape-ml/ascgo/pkg/log"
)

const (
	developmentSet = "development"
	evaluationSet  = "evaluation"
)

// foldManifestPath はフォールドのマニフェストファイルのパスを組み立てる
func foldManifestPath(dir string, fold int, set string) string {
	return filepath.Join(dir, "evaluation_setup", fmt.Sprintf("fold%d_%s.csv", fold, set))
}

// developmentEntries はフォールドの学習・検証マニフェストを重複なしで合わせる
func developmentEntries(settings *config.Settings) ([]dataset.Entry, error) {
	dir := settings.Dataset.Dir
	fold := settings.Dataset.Fold
	train, err := dataset.ReadManifest(foldManifestPath(dir, fold, "train"))
	if err != nil {
		return nil, err
	}
	validate, err := dataset.ReadManifest(foldManifestPath(dir, fold, "evaluate"))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(train)+len(validate))
	entries := make([]dataset.Entry, 0, len(train)+len(validate))
	for _, list := range [][]dataset.Entry{train, validate} {
		for _, e := range list {
			if seen[e.Filename] {
				continue
			}
			seen[e.Filename] = true
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// evaluationEntries は推論対象のマニフェストを読み込む
func evaluationEntries(settings *config.Settings) ([]dataset.Entry, error) {
	path := settings.Inference.Manifest
	if path == "" {
		path = foldManifestPath(settings.Dataset.Dir, settings.Dataset.Fold, "test")
	}
	return dataset.ReadManifest(path)
}

// clipRefs はマニフェストの各行を抽出対象の録音に対応付ける
// マニフェストのファイル名はデータセットルートからの相対パス
func clipRefs(dir string, entries []dataset.Entry) []features.ClipRef {
	refs := make([]features.ClipRef, len(entries))
	for i, e := range entries {
		refs[i] = features.ClipRef{
			Name:   e.Filename,
			Path:   filepath.Join(dir, e.Filename),
			Label:  e.SceneLabel,
			Device: e.SourceLabel,
			City:   e.Identifier,
		}
	}
	return refs
}

// loadOrExtract はキャッシュを読み込み、なければ(または設定が変わっていれば)
// マニフェストから抽出して保存し直す
func loadOrExtract(settings *config.Settings, set string, entries []dataset.Entry) (*features.Pack, error) {
	subtask, err := settings.Subtask()
	if err != nil {
		return nil, err
	}
	cfg := settings.FeatureConfig()
	path := features.CachePath(settings.Workspace, string(subtask), settings.Dataset.Fold, set)

	pack, err := features.LoadPack(path, cfg)
	if err == nil {
		return pack, nil
	}
	if settings.Train.NoAutoExtract {
		return nil, errors.Wrapf(err,
			"feature cache %s is unusable and automatic extraction is disabled; run extract-features first", path)
	}
	log.GetLoggerWithName("pipeline").Warn("feature cache unavailable, extracting",
		"path", path,
		log.ErrAttr(err),
	)

	refs := clipRefs(settings.Dataset.Dir, entries)
	pack, err = features.ExtractPack(refs, cfg, settings.Features.Workers)
	if err != nil {
		return nil, err
	}
	if err := pack.Save(path); err != nil {
		return nil, err
	}
	return pack, nil
}
