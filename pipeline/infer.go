package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/soundscape-ml/ascgo/config"
	"github.com/soundscape-ml/ascgo/dataset"
	"github.com/soundscape-ml/ascgo/inference"
	"github.com/soundscape-ml/ascgo/pkg/log"
	"github.com/soundscape-ml/ascgo/training"
)

// Infer はチェックポイントで評価セットを予測し、提出ファイルと
// 実行メタデータを書き出す。イテレーション0は最新のチェックポイントを指す
func Infer(settings *config.Settings) error {
	logger := log.GetLoggerWithName("pipeline")

	subtask, err := settings.Subtask()
	if err != nil {
		return err
	}

	dir := training.CheckpointDir(settings.Workspace)
	iteration := settings.Inference.Iteration
	if iteration <= 0 {
		iteration, err = training.LatestCheckpoint(dir)
		if err != nil {
			return err
		}
	}
	predictor, err := inference.LoadPredictor(training.CheckpointPath(dir, iteration))
	if err != nil {
		return err
	}

	entries, err := evaluationEntries(settings)
	if err != nil {
		return err
	}
	pack, err := loadOrExtract(settings, evaluationSet, entries)
	if err != nil {
		return err
	}
	ds, err := dataset.NewDataset(pack, subtask)
	if err != nil {
		return err
	}
	indexes := ds.IndexesFor(entries)

	batchSize := settings.Train.BatchSize
	if batchSize <= 0 {
		batchSize = training.NewParams().BatchSize
	}
	preds, err := predictor.Predict(ds, indexes, batchSize)
	if err != nil {
		return err
	}

	submissionPath := settings.Inference.Submission
	if submissionPath == "" {
		submissionPath = filepath.Join(settings.Workspace, "submissions", fmt.Sprintf("submission_iter%d.csv", iteration))
	}
	if err := inference.WriteSubmission(submissionPath, preds); err != nil {
		return err
	}

	metaPath := settings.Inference.Meta
	if metaPath == "" {
		metaPath = filepath.Join(settings.Workspace, "submissions", fmt.Sprintf("meta_iter%d.yaml", iteration))
	}
	meta := inference.NewMeta(predictor.Checkpoint(), string(subtask), len(preds))
	if err := inference.WriteMeta(metaPath, meta); err != nil {
		return err
	}

	logger.Info("submission written",
		"path", submissionPath,
		log.IterationKey, iteration,
		log.SamplesKey, len(preds),
	)
	return nil
}
