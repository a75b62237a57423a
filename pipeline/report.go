package pipeline

import (
	"path/filepath"

	"github.com/soundscape-ml/ascgo/config"
	"github.com/soundscape-ml/ascgo/pkg/log"
	"github.com/soundscape-ml/ascgo/report"
	"github.com/soundscape-ml/ascgo/training"
)

// Report は保存済みの学習統計から学習曲線のPNGを描く
//
// デバイス別の内訳と録音のスペクトログラムは、それぞれの出力先が
// 指定されたときだけ描画する
func Report(settings *config.Settings) error {
	logger := log.GetLoggerWithName("pipeline")

	statsDir := settings.Report.StatsDir
	if statsDir == "" {
		statsDir = training.StatisticsDir(settings.Workspace)
	}
	splits := []string{"train", "validate"}

	accuracyPath := settings.Report.AccuracyPNG
	if accuracyPath == "" {
		accuracyPath = filepath.Join(settings.Workspace, "report", "accuracy.png")
	}
	if err := report.PlotAccuracy(statsDir, splits, accuracyPath); err != nil {
		return err
	}

	lossPath := settings.Report.LossPNG
	if lossPath == "" {
		lossPath = filepath.Join(settings.Workspace, "report", "loss.png")
	}
	if err := report.PlotLoss(statsDir, splits, lossPath); err != nil {
		return err
	}

	if settings.Report.DevicePNG != "" {
		if err := report.PlotDeviceAccuracy(statsDir, "validate", settings.Report.DevicePNG); err != nil {
			return err
		}
	}

	if settings.Report.Recording != "" {
		spectrogramPath := settings.Report.Spectrogram
		if spectrogramPath == "" {
			spectrogramPath = filepath.Join(settings.Workspace, "report", "spectrogram.png")
		}
		if err := report.RenderRecording(settings.Report.Recording, settings.FeatureConfig(), spectrogramPath); err != nil {
			return err
		}
	}

	logger.Info("report rendered",
		"stats_dir", statsDir,
		"accuracy_png", accuracyPath,
		"loss_png", lossPath,
	)
	return nil
}
