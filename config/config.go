// Package config はコマンドラインフラグと設定ファイルを束ねた実行時設定を提供する
//
// 設定はascgo.yaml(任意)から読み込まれ、viperに結びつけたフラグが
// 同じキーを上書きする。各コマンドはSettingsだけを見ればよい
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundscape-ml/ascgo/dataset"
	"github.com/soundscape-ml/ascgo/features"
	"github.com/soundscape-ml/ascgo/training"
)

// Settings は全コマンドで共有する実行時設定
type Settings struct {
	// Debug はデバッグログを有効にする
	Debug bool `mapstructure:"debug"`

	// Workspace は特徴量・チェックポイント・統計・提出物の出力先
	Workspace string `mapstructure:"workspace"`

	// Dataset はベンチマークデータの場所と区分
	Dataset struct {
		// Dir はaudio/とevaluation_setup/を含むデータセットのルート
		Dir string `mapstructure:"dir"`

		// Subtask はa(単一デバイス)、b(複数デバイス)、c(オープンセット)のいずれか
		Subtask string `mapstructure:"subtask"`

		// Fold は交差検証のフォールド番号
		Fold int `mapstructure:"fold"`
	} `mapstructure:"dataset"`

	// Features は対数メルスペクトログラム抽出のパラメータ
	Features struct {
		SampleRate  int     `mapstructure:"sample_rate"`
		ClipSamples int     `mapstructure:"clip_samples"`
		NFFT        int     `mapstructure:"nfft"`
		HopLength   int     `mapstructure:"hop_length"`
		NMels       int     `mapstructure:"nmels"`
		FMin        float64 `mapstructure:"fmin"`
		FMax        float64 `mapstructure:"fmax"`

		// Workers は抽出の並列数。0でCPU数
		Workers int `mapstructure:"workers"`
	} `mapstructure:"features"`

	// Train は学習ループのハイパーパラメータ
	Train struct {
		Iterations          int     `mapstructure:"iterations"`
		BatchSize           int     `mapstructure:"batch_size"`
		CropFrames          int     `mapstructure:"crop_frames"`
		LearningRate        float64 `mapstructure:"learning_rate"`
		Width               float64 `mapstructure:"width"`
		EvalInterval        int     `mapstructure:"eval_interval"`
		CheckpointInterval  int     `mapstructure:"checkpoint_interval"`
		EvalMaxBatches      int     `mapstructure:"eval_max_batches"`
		EarlyStoppingRounds int     `mapstructure:"early_stopping_rounds"`
		Seed                int64   `mapstructure:"seed"`
		ResumeIteration     int     `mapstructure:"resume_iteration"`

		// NoAutoExtract は特徴量キャッシュが使えないとき、
		// 再抽出せずにエラーで止める
		NoAutoExtract bool `mapstructure:"no_auto_extract"`
	} `mapstructure:"train"`

	// Inference は推論と提出ファイル生成の設定
	Inference struct {
		// Iteration は読み込むチェックポイントのイテレーション。0で最新
		Iteration int `mapstructure:"iteration"`

		// Manifest は評価マニフェストのパス。空ならフォールドのテストマニフェスト
		Manifest string `mapstructure:"manifest"`

		// Submission は提出ファイルの出力先。空ならworkspace配下
		Submission string `mapstructure:"submission"`

		// Meta はメタデータの出力先。空ならworkspace配下
		Meta string `mapstructure:"meta"`
	} `mapstructure:"inference"`

	// Report は学習曲線とスペクトログラムの描画設定
	Report struct {
		// StatsDir は統計ディレクトリ。空ならworkspace配下
		StatsDir string `mapstructure:"stats_dir"`

		AccuracyPNG string `mapstructure:"accuracy_png"`
		LossPNG     string `mapstructure:"loss_png"`
		DevicePNG   string `mapstructure:"device_png"`

		// Recording は追加でスペクトログラムを描くWAVファイル。任意
		Recording   string `mapstructure:"recording"`
		Spectrogram string `mapstructure:"spectrogram_png"`
	} `mapstructure:"report"`
}

// Load は設定ファイルと既定値からSettingsを構成する
// ascgo.yamlはカレントディレクトリとユーザー設定ディレクトリから探し、
// 見つからなければ既定値だけで動く
func Load() (*Settings, error) {
	setDefaults()

	viper.SetConfigName("ascgo")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(dir, "ascgo"))
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return settings, nil
}

// SyncViper はviperの現在値をSettingsへ反映する
// フラグ解析の後に呼ぶことで、明示されたフラグが設定ファイルより優先される
func SyncViper(settings *Settings) error {
	if err := viper.Unmarshal(settings); err != nil {
		return fmt.Errorf("sync settings: %w", err)
	}
	return nil
}

// BindFlags はコマンドのフラグをviperのキーに結びつける
// keysはviperのキーからフラグ名への対応
func BindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			return fmt.Errorf("bind flag %s: flag not defined", name)
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// FeatureConfig は抽出設定へ変換する
func (s *Settings) FeatureConfig() features.Config {
	return features.Config{
		SampleRate:  s.Features.SampleRate,
		ClipSamples: s.Features.ClipSamples,
		NFFT:        s.Features.NFFT,
		HopLength:   s.Features.HopLength,
		NMels:       s.Features.NMels,
		FMin:        s.Features.FMin,
		FMax:        s.Features.FMax,
	}
}

// TrainingParams は学習ハイパーパラメータへ変換する
func (s *Settings) TrainingParams() training.Params {
	return training.Params{
		NumIterations:       s.Train.Iterations,
		BatchSize:           s.Train.BatchSize,
		CropFrames:          s.Train.CropFrames,
		LearningRate:        s.Train.LearningRate,
		Width:               s.Train.Width,
		EvalInterval:        s.Train.EvalInterval,
		CheckpointInterval:  s.Train.CheckpointInterval,
		EvalMaxBatches:      s.Train.EvalMaxBatches,
		EarlyStoppingRounds: s.Train.EarlyStoppingRounds,
		Seed:                s.Train.Seed,
		ResumeIteration:     s.Train.ResumeIteration,
	}
}

// Subtask は設定されたサブタスクを検証して返す
func (s *Settings) Subtask() (dataset.Subtask, error) {
	return dataset.ParseSubtask(s.Dataset.Subtask)
}

func setDefaults() {
	viper.SetDefault("debug", false)
	viper.SetDefault("workspace", "workspace")

	viper.SetDefault("dataset.subtask", "a")
	viper.SetDefault("dataset.fold", 1)

	viper.SetDefault("features.sample_rate", 32000)
	viper.SetDefault("features.clip_samples", 320000)
	viper.SetDefault("features.nfft", 1024)
	viper.SetDefault("features.hop_length", 500)
	viper.SetDefault("features.nmels", 64)
	viper.SetDefault("features.fmin", 50.0)
	viper.SetDefault("features.fmax", 14000.0)
	viper.SetDefault("features.workers", 0)

	viper.SetDefault("train.iterations", 5000)
	viper.SetDefault("train.batch_size", 32)
	viper.SetDefault("train.crop_frames", 64)
	viper.SetDefault("train.learning_rate", 1e-3)
	viper.SetDefault("train.width", 1.0)
	viper.SetDefault("train.eval_interval", 100)
	viper.SetDefault("train.checkpoint_interval", 1000)
	viper.SetDefault("train.eval_max_batches", 0)
	viper.SetDefault("train.early_stopping_rounds", 0)
	viper.SetDefault("train.seed", 1234)
	viper.SetDefault("train.resume_iteration", 0)
	viper.SetDefault("train.no_auto_extract", false)

	viper.SetDefault("inference.iteration", 0)
}
