package pipeline

import (
	"context"

	"github.com/soundscape-ml/ascgo/config"
	"github.com/soundscape-ml/ascgo/dataset"
	"github.com/soundscape-ml/ascgo/pkg/log"
	"github.com/soundscape-ml/ascgo/training"
)

// Train は開発セットで分類器を学習し、チェックポイントと統計を
// ワークスペースへ書き出す
func Train(ctx context.Context, settings *config.Settings) error {
	logger := log.GetLoggerWithName("pipeline")

	subtask, err := settings.Subtask()
	if err != nil {
		return err
	}

	trainEntries, err := dataset.ReadManifest(foldManifestPath(settings.Dataset.Dir, settings.Dataset.Fold, "train"))
	if err != nil {
		return err
	}
	valEntries, err := dataset.ReadManifest(foldManifestPath(settings.Dataset.Dir, settings.Dataset.Fold, "evaluate"))
	if err != nil {
		return err
	}

	entries, err := developmentEntries(settings)
	if err != nil {
		return err
	}
	pack, err := loadOrExtract(settings, developmentSet, entries)
	if err != nil {
		return err
	}

	ds, err := dataset.NewDataset(pack, subtask)
	if err != nil {
		return err
	}
	trainIndexes := ds.IndexesFor(trainEntries)
	valIndexes := ds.IndexesFor(valEntries)
	logger.Info("development split resolved",
		log.SubtaskKey, string(subtask),
		"train_clips", len(trainIndexes),
		"validate_clips", len(valIndexes),
	)

	scaler, err := dataset.FitScaler(pack, trainIndexes)
	if err != nil {
		return err
	}

	trainer, err := training.NewTrainer(training.Config{
		Params:          settings.TrainingParams(),
		Dataset:         ds,
		TrainIndexes:    trainIndexes,
		ValidateIndexes: valIndexes,
		Scaler:          scaler,
		FeatureConfig:   settings.FeatureConfig(),
		Workspace:       settings.Workspace,
		ByDevice:        subtask == dataset.SubtaskB,
		Callbacks:       []training.Callback{training.PrintEvaluation(1)},
	})
	if err != nil {
		return err
	}

	if err := trainer.Run(ctx); err != nil {
		return err
	}
	logger.Info("training finished",
		log.RunIDKey, trainer.RunID(),
		log.IterationKey, trainer.LastIteration(),
	)
	return nil
}
