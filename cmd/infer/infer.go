// Package infer は推論コマンドを実装する
package infer

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundscape-ml/ascgo/config"
	"github.com/soundscape-ml/ascgo/pipeline"
)

// Command creates the inference command
func Command(settings *config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inference",
		Short: "Predict scene labels and write a submission file",
		Long: `Load a trained checkpoint, predict scene labels for the evaluation
manifest, and write a tab-separated submission file together with a
metadata sidecar describing the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pipeline.Infer(settings)
		},
	}

	setupFlags(cmd, settings)

	return cmd
}

// setupFlags configures flags specific to the inference command
func setupFlags(cmd *cobra.Command, settings *config.Settings) {
	cmd.Flags().IntVar(&settings.Inference.Iteration, "iteration", viper.GetInt("inference.iteration"), "Checkpoint iteration to load, 0 picks the latest")
	cmd.Flags().StringVar(&settings.Inference.Manifest, "manifest", viper.GetString("inference.manifest"), "Evaluation manifest, defaults to the fold's test manifest")
	cmd.Flags().StringVarP(&settings.Inference.Submission, "submission", "o", viper.GetString("inference.submission"), "Submission file path, defaults to the workspace")
	cmd.Flags().StringVar(&settings.Inference.Meta, "meta", viper.GetString("inference.meta"), "Metadata sidecar path, defaults to the workspace")

	config.BindFlags(cmd, map[string]string{
		"inference.iteration":  "iteration",
		"inference.manifest":   "manifest",
		"inference.submission": "submission",
		"inference.meta":       "meta",
	})
}
