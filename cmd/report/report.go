// Package report はレポート描画コマンドを実装する
package report

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundscape-ml/ascgo/config"
	"github.com/soundscape-ml/ascgo/pipeline"
)

// Command creates the report command
func Command(settings *config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render training curves from saved statistics",
		Long: `Render accuracy and loss curves from the statistics a training run
saved in the workspace. Per-device accuracy curves and a log-mel
spectrogram of a single recording can be rendered on request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pipeline.Report(settings)
		},
	}

	setupFlags(cmd, settings)

	return cmd
}

// setupFlags configures flags specific to the report command
func setupFlags(cmd *cobra.Command, settings *config.Settings) {
	cmd.Flags().StringVar(&settings.Report.StatsDir, "stats-dir", viper.GetString("report.stats_dir"), "Statistics directory, defaults to the workspace")
	cmd.Flags().StringVar(&settings.Report.AccuracyPNG, "accuracy-png", viper.GetString("report.accuracy_png"), "Accuracy curve output, defaults to the workspace")
	cmd.Flags().StringVar(&settings.Report.LossPNG, "loss-png", viper.GetString("report.loss_png"), "Loss curve output, defaults to the workspace")
	cmd.Flags().StringVar(&settings.Report.DevicePNG, "device-png", viper.GetString("report.device_png"), "Per-device accuracy curve output, empty skips it")
	cmd.Flags().StringVar(&settings.Report.Recording, "recording", viper.GetString("report.recording"), "WAV file to render as a log-mel spectrogram, empty skips it")
	cmd.Flags().StringVar(&settings.Report.Spectrogram, "spectrogram-png", viper.GetString("report.spectrogram_png"), "Spectrogram output, defaults to the workspace")

	config.BindFlags(cmd, map[string]string{
		"report.stats_dir":       "stats-dir",
		"report.accuracy_png":    "accuracy-png",
		"report.loss_png":        "loss-png",
		"report.device_png":      "device-png",
		"report.recording":       "recording",
		"report.spectrogram_png": "spectrogram-png",
	})
}
