// Package cmd はascgoコマンドラインインターフェースを組み立てる
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundscape-ml/ascgo/cmd/extract"
	"github.com/soundscape-ml/ascgo/cmd/infer"
	"github.com/soundscape-ml/ascgo/cmd/report"
	"github.com/soundscape-ml/ascgo/cmd/train"
	"github.com/soundscape-ml/ascgo/config"
	"github.com/soundscape-ml/ascgo/pkg/log"
)

// RootCommand creates and returns the root command
func RootCommand(settings *config.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ascgo",
		Short: "Acoustic scene classification pipeline",
		Long: `ascgo trains and evaluates an acoustic scene classifier on the
TAU Urban Acoustic Scenes development datasets. It extracts log-mel
features, trains a CNN, and writes DCASE-style submission files.`,
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		extract.Command(settings),
		train.Command(settings),
		infer.Command(settings),
		report.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// フラグ解析後にviperの値を反映し、明示されたフラグを最優先にする
		if err := config.SyncViper(settings); err != nil {
			return err
		}

		level := "info"
		if settings.Debug {
			level = "debug"
		}
		log.SetupLogger(level)
		log.InstallWarningLogger(os.Stderr)
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *config.Settings) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	flags.StringVarP(&settings.Workspace, "workspace", "w", viper.GetString("workspace"), "Directory for feature caches, checkpoints, statistics and submissions")
	flags.StringVar(&settings.Dataset.Dir, "dataset-dir", viper.GetString("dataset.dir"), "Dataset root containing audio/ and evaluation_setup/")
	flags.StringVar(&settings.Dataset.Subtask, "subtask", viper.GetString("dataset.subtask"), "Subtask: a (single device), b (multiple devices) or c (open set)")
	flags.IntVar(&settings.Dataset.Fold, "fold", viper.GetInt("dataset.fold"), "Cross-validation fold number")

	keys := map[string]string{
		"debug":           "debug",
		"workspace":       "workspace",
		"dataset.dir":     "dataset-dir",
		"dataset.subtask": "subtask",
		"dataset.fold":    "fold",
	}
	for key, name := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flags: %v", err)
		}
	}
	return nil
}
