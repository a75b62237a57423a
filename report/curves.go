// Package report は学習統計と特徴量キャッシュの可視化を実装する
package report

import (
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/soundscape-ml/ascgo/pkg/errors"
	"github.com/soundscape-ml/ascgo/pkg/log"
	"github.com/soundscape-ml/ascgo/training"
)

// Curve は1本の折れ線として描くイテレーションごとの指標系列
type Curve struct {
	// Label は凡例に表示する名前
	Label string

	// Iterations は評価が走ったイテレーション番号
	Iterations []int

	// Values は各イテレーションの指標値
	Values []float64
}

// PlotAccuracy は統計ディレクトリから各分割の正解率の推移を読み出してPNGに描く
func PlotAccuracy(statsDir string, splits []string, path string) error {
	curves, err := metricCurves(statsDir, splits, "accuracy")
	if err != nil {
		return err
	}
	return plotCurves("Accuracy", "accuracy", curves, path)
}

// PlotLoss は統計ディレクトリから各分割の損失の推移を読み出してPNGに描く
func PlotLoss(statsDir string, splits []string, path string) error {
	curves, err := metricCurves(statsDir, splits, "loss")
	if err != nil {
		return err
	}
	return plotCurves("Loss", "loss", curves, path)
}

// PlotDeviceAccuracy は1つの分割について録音デバイス別の正解率の推移をPNGに描く
// デバイス別の内訳を集計していない統計に対してはエラーになる
func PlotDeviceAccuracy(statsDir, split, path string) error {
	evals, err := training.LoadStatistics(statsDir, split)
	if err != nil {
		return err
	}

	devices := make(map[string]bool)
	for _, ev := range evals {
		for dev := range ev.DeviceAccuracy {
			devices[dev] = true
		}
	}
	if len(devices) == 0 {
		return errors.NewValueError("PlotDeviceAccuracy",
			"statistics for split "+split+" carry no per-device breakdown")
	}
	names := make([]string, 0, len(devices))
	for dev := range devices {
		names = append(names, dev)
	}
	sort.Strings(names)

	curves := make([]Curve, 0, len(names)+1)
	overall := Curve{Label: split}
	for _, ev := range evals {
		overall.Iterations = append(overall.Iterations, ev.Iteration)
		overall.Values = append(overall.Values, ev.Accuracy)
	}
	curves = append(curves, overall)
	for _, dev := range names {
		c := Curve{Label: "device " + dev}
		for _, ev := range evals {
			if acc, ok := ev.DeviceAccuracy[dev]; ok {
				c.Iterations = append(c.Iterations, ev.Iteration)
				c.Values = append(c.Values, acc)
			}
		}
		curves = append(curves, c)
	}

	return plotCurves("Accuracy by device", "accuracy", curves, path)
}

// metricCurves は分割ごとの統計を読み込み、1指標の系列にまとめる
func metricCurves(statsDir string, splits []string, metric string) ([]Curve, error) {
	if len(splits) == 0 {
		return nil, errors.NewValueError("metricCurves", "no splits given")
	}
	curves := make([]Curve, 0, len(splits))
	for _, split := range splits {
		evals, err := training.LoadStatistics(statsDir, split)
		if err != nil {
			return nil, err
		}
		c := Curve{Label: split}
		for _, ev := range evals {
			c.Iterations = append(c.Iterations, ev.Iteration)
			switch metric {
			case "accuracy":
				c.Values = append(c.Values, ev.Accuracy)
			case "loss":
				c.Values = append(c.Values, ev.Loss)
			}
		}
		curves = append(curves, c)
	}
	return curves, nil
}

func plotCurves(title, yLabel string, curves []Curve, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	points := 0
	for i, c := range curves {
		if len(c.Iterations) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(c.Iterations))
		for j, it := range c.Iterations {
			xys[j].X = float64(it)
			xys[j].Y = c.Values[j]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "build line for %s", c.Label)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(c.Label, line)
		points += len(c.Iterations)
	}
	if points == 0 {
		return errors.NewValueError("plotCurves", "no evaluations to draw")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create report directory")
	}
	if err := p.Save(20*vg.Centimeter, 12*vg.Centimeter, path); err != nil {
		return errors.Wrapf(err, "save plot to %s", path)
	}
	log.GetLoggerWithName("report").Info("training curves written",
		"path", path,
		log.SamplesKey, points,
	)
	return nil
}
