// Package extract は特徴量抽出コマンドを実装する
package extract

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundscape-ml/ascgo/config"
	"github.com/soundscape-ml/ascgo/pipeline"
)

// Command creates the feature extraction command
func Command(settings *config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract-features",
		Short: "Extract log-mel features into the workspace cache",
		Long: `Extract log-mel spectrograms for the development and evaluation
manifests and cache them as packed gob files in the workspace.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pipeline.ExtractFeatures(settings)
		},
	}

	setupFlags(cmd, settings)

	return cmd
}

// setupFlags configures flags specific to the extract-features command
func setupFlags(cmd *cobra.Command, settings *config.Settings) {
	cmd.Flags().IntVar(&settings.Features.SampleRate, "sample-rate", viper.GetInt("features.sample_rate"), "Target sample rate in Hz")
	cmd.Flags().IntVar(&settings.Features.ClipSamples, "clip-samples", viper.GetInt("features.clip_samples"), "Samples per clip after padding or truncation")
	cmd.Flags().IntVar(&settings.Features.NFFT, "nfft", viper.GetInt("features.nfft"), "FFT window size")
	cmd.Flags().IntVar(&settings.Features.HopLength, "hop-length", viper.GetInt("features.hop_length"), "Hop length between frames in samples")
	cmd.Flags().IntVar(&settings.Features.NMels, "nmels", viper.GetInt("features.nmels"), "Number of mel bins")
	cmd.Flags().Float64Var(&settings.Features.FMin, "fmin", viper.GetFloat64("features.fmin"), "Lowest mel filter frequency in Hz")
	cmd.Flags().Float64Var(&settings.Features.FMax, "fmax", viper.GetFloat64("features.fmax"), "Highest mel filter frequency in Hz")
	cmd.Flags().IntVar(&settings.Features.Workers, "workers", viper.GetInt("features.workers"), "Number of extraction workers, 0 uses all CPUs")

	config.BindFlags(cmd, map[string]string{
		"features.sample_rate":  "sample-rate",
		"features.clip_samples": "clip-samples",
		"features.nfft":         "nfft",
		"features.hop_length":   "hop-length",
		"features.nmels":        "nmels",
		"features.fmin":         "fmin",
		"features.fmax":         "fmax",
		"features.workers":      "workers",
	})
}
