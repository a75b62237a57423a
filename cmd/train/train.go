// Package train は学習コマンドを実装する
package train

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundscape-ml/ascgo/config"
	"github.com/soundscape-ml/ascgo/pipeline"
)

// Command creates the training command
func Command(settings *config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the scene classifier on the development set",
		Long: `Train the CNN classifier on the fold's training split, evaluating
against the validation split at regular intervals. Checkpoints and
evaluation statistics are written to the workspace.

Training runs entirely in memory; if it exhausts RAM, reduce --batch-size
or shrink the network with --width.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pipeline.Train(cmd.Context(), settings)
		},
	}

	setupFlags(cmd, settings)

	return cmd
}

// setupFlags configures flags specific to the train command
func setupFlags(cmd *cobra.Command, settings *config.Settings) {
	cmd.Flags().IntVar(&settings.Train.Iterations, "iterations", viper.GetInt("train.iterations"), "Number of training iterations")
	cmd.Flags().IntVar(&settings.Train.BatchSize, "batch-size", viper.GetInt("train.batch_size"), "Mini-batch size")
	cmd.Flags().IntVar(&settings.Train.CropFrames, "crop-frames", viper.GetInt("train.crop_frames"), "Width of the random time crop in frames")
	cmd.Flags().Float64Var(&settings.Train.LearningRate, "learning-rate", viper.GetFloat64("train.learning_rate"), "Adam learning rate")
	cmd.Flags().Float64Var(&settings.Train.Width, "width", viper.GetFloat64("train.width"), "Channel width multiplier of the CNN")
	cmd.Flags().IntVar(&settings.Train.EvalInterval, "eval-interval", viper.GetInt("train.eval_interval"), "Iterations between evaluations")
	cmd.Flags().IntVar(&settings.Train.CheckpointInterval, "checkpoint-interval", viper.GetInt("train.checkpoint_interval"), "Iterations between checkpoints")
	cmd.Flags().IntVar(&settings.Train.EvalMaxBatches, "eval-max-batches", viper.GetInt("train.eval_max_batches"), "Cap on evaluation batches, 0 evaluates everything")
	cmd.Flags().IntVar(&settings.Train.EarlyStoppingRounds, "early-stopping-rounds", viper.GetInt("train.early_stopping_rounds"), "Stop after this many evaluations without improvement, 0 disables")
	cmd.Flags().Int64Var(&settings.Train.Seed, "seed", viper.GetInt64("train.seed"), "Random seed for weights and batch sampling")
	cmd.Flags().IntVar(&settings.Train.ResumeIteration, "resume-iteration", viper.GetInt("train.resume_iteration"), "Checkpoint iteration to resume from, 0 starts fresh")
	cmd.Flags().BoolVar(&settings.Train.NoAutoExtract, "no-auto-extract", viper.GetBool("train.no_auto_extract"), "Fail instead of re-extracting when the feature cache is missing or stale")

	config.BindFlags(cmd, map[string]string{
		"train.iterations":            "iterations",
		"train.batch_size":            "batch-size",
		"train.crop_frames":           "crop-frames",
		"train.learning_rate":         "learning-rate",
		"train.width":                 "width",
		"train.eval_interval":         "eval-interval",
		"train.checkpoint_interval":   "checkpoint-interval",
		"train.eval_max_batches":      "eval-max-batches",
		"train.early_stopping_rounds": "early-stopping-rounds",
		"train.seed":                  "seed",
		"train.resume_iteration":      "resume-iteration",
		"train.no_auto_extract":       "no-auto-extract",
	})
}
