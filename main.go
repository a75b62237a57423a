// ascgo は都市音響シーン分類のコマンドラインツール
//
// TAU Urban Acoustic Scenes系列の開発データセットからログメル特徴量を
// 抽出し、CNN分類器を学習してDCASE形式の提出ファイルを生成する
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soundscape-ml/ascgo/cmd"
	"github.com/soundscape-ml/ascgo/config"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Ctrl+CとSIGTERMで学習ループを止め、最後のチェックポイントを残す
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
