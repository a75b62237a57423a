// Package inference は学習済みチェックポイントによる推論と提出ファイルの生成を実装する
package inference

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/soundscape-ml/ascgo/dataset"
	"github.com/soundscape-ml/ascgo/nn"
	"github.com/soundscape-ml/ascgo/pkg/errors"
	"github.com/soundscape-ml/ascgo/pkg/log"
	"github.com/soundscape-ml/ascgo/preprocessing"
	"github.com/soundscape-ml/ascgo/training"
)

// Prediction は1クリップの推論結果
type Prediction struct {
	// Name はクリップのファイル名
	Name string

	// Label は予測されたシーンラベル
	Label string

	// Index はLabelのクラス番号
	Index int

	// Probs はクラス確率
	Probs []float64
}

// Predictor はチェックポイントから復元した分類器で評価クリップを推論する
type Predictor struct {
	cp     *training.Checkpoint
	clf    *nn.SceneClassifier
	scaler *preprocessing.StandardScaler
	logger log.Logger
}

// NewPredictor は読み込み済みチェックポイントから推論器を構成する
func NewPredictor(cp *training.Checkpoint) (*Predictor, error) {
	if cp == nil {
		return nil, errors.NewValueError("NewPredictor", "nil checkpoint")
	}
	clf, err := cp.RestoreClassifier()
	if err != nil {
		return nil, err
	}
	scaler, err := cp.RestoreScaler()
	if err != nil {
		return nil, err
	}
	return &Predictor{
		cp:     cp,
		clf:    clf,
		scaler: scaler,
		logger: log.GetLoggerWithName("inference.predictor"),
	}, nil
}

// LoadPredictor はチェックポイントファイルから推論器を構成する
func LoadPredictor(path string) (*Predictor, error) {
	cp, err := training.LoadCheckpoint(path)
	if err != nil {
		return nil, err
	}
	return NewPredictor(cp)
}

// Classes はラベル語彙をクラス番号順に返す
func (p *Predictor) Classes() []string {
	return p.clf.Classes()
}

// Checkpoint は復元元のチェックポイントを返す
func (p *Predictor) Checkpoint() *training.Checkpoint {
	return p.cp
}

// Predict は評価クリップを決定的な順序で推論する
// クリップは全フレーム長のまま処理され、結果はindexesと同じ順序・同じ件数になる。
// 特徴量キャッシュの抽出設定はチェックポイントのものと一致していなければならない
func (p *Predictor) Predict(ds *dataset.Dataset, indexes []int, batchSize int) ([]Prediction, error) {
	if ds == nil {
		return nil, errors.NewValueError("Predict", "nil dataset")
	}
	if ds.Pack.Config != p.cp.FeatureConfig {
		return nil, errors.NewValueError("Predict",
			"feature cache config does not match the checkpoint")
	}
	gen, err := dataset.NewEvalGenerator(ds, indexes, p.scaler, batchSize, nil, 0)
	if err != nil {
		return nil, err
	}

	p.logger.Info("inference started",
		log.SamplesKey, len(indexes),
		log.IterationKey, p.cp.Iteration,
	)
	startTime := time.Now()

	classes := p.clf.Classes()
	preds := make([]Prediction, 0, len(indexes))
	for {
		b, err := gen.Next()
		if err != nil {
			return nil, err
		}
		if b == nil {
			break
		}

		probs, err := p.clf.PredictProba(b.X)
		if err != nil {
			return nil, errors.Wrap(err, "predict evaluation batch")
		}
		for i, name := range b.Names {
			row := mat.Row(nil, i, probs)
			idx := nn.Argmax(row)
			preds = append(preds, Prediction{
				Name:  name,
				Label: classes[idx],
				Index: idx,
				Probs: row,
			})
		}
	}

	if len(preds) != len(indexes) {
		return nil, errors.NewDimensionError("Predict", len(indexes), len(preds), 0)
	}

	p.logger.Info("inference finished",
		log.SamplesKey, len(preds),
		log.DurationSecondsKey, time.Since(startTime).Seconds(),
	)
	return preds, nil
}
