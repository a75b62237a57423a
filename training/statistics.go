package training

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/soundscape-ml/ascgo/core/model"
	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// StatisticsDir は作業ディレクトリ内の統計スナップショット置き場を返す
func StatisticsDir(workspace string) string {
	return filepath.Join(workspace, "statistics")
}

// StatisticsPath は統計スナップショットのファイルパスを返す
func StatisticsPath(dir string, iteration int, split string) string {
	return filepath.Join(dir, fmt.Sprintf("stats_iter%d_%s.gob", iteration, split))
}

// SaveEvaluation は評価結果をgobで保存する。親ディレクトリがなければ作る
func SaveEvaluation(path string, ev *Evaluation) error {
	if ev == nil {
		return errors.NewValueError("SaveEvaluation", "nil evaluation")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create statistics directory")
	}
	if err := model.SaveModel(ev, path); err != nil {
		return errors.Wrapf(err, "save statistics to %s", path)
	}
	return nil
}

// LoadEvaluation は保存済みの評価結果を読み込む
func LoadEvaluation(path string) (*Evaluation, error) {
	var ev Evaluation
	if err := model.LoadModel(&ev, path); err != nil {
		return nil, errors.Wrapf(err, "load statistics from %s", path)
	}
	return &ev, nil
}

// LoadStatistics はディレクトリ内の指定分割の全評価結果を
// イテレーションの昇順で読み込む
func LoadStatistics(dir, split string) ([]*Evaluation, error) {
	pattern := filepath.Join(dir, fmt.Sprintf("stats_iter*_%s.gob", split))
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "list statistics in %s", dir)
	}
	if len(paths) == 0 {
		return nil, errors.NewValueError("LoadStatistics",
			fmt.Sprintf("no statistics for split %q in %s", split, dir))
	}

	evs := make([]*Evaluation, 0, len(paths))
	for _, p := range paths {
		ev, err := LoadEvaluation(p)
		if err != nil {
			return nil, err
		}
		if ev.Split != split {
			continue
		}
		evs = append(evs, ev)
	}
	sort.Slice(evs, func(i, j int) bool { return evs[i].Iteration < evs[j].Iteration })
	return evs, nil
}
