// Package training は音響シーン分類モデルのイテレーション学習を実装する
//
// 学習は固定回数のイテレーションで進み、一定間隔で学習・検証データを
// 評価して統計を保存し、チェックポイントから再開できる
package training

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/soundscape-ml/ascgo/dataset"
	"github.com/soundscape-ml/ascgo/features"
	"github.com/soundscape-ml/ascgo/nn"
	"github.com/soundscape-ml/ascgo/pkg/errors"
	"github.com/soundscape-ml/ascgo/pkg/log"
	"github.com/soundscape-ml/ascgo/preprocessing"
)

// Config は学習ループの構成
type Config struct {
	// Params はハイパーパラメータ。ゼロ値のフィールドはデフォルトで補完される
	Params Params

	// Dataset は特徴量キャッシュとラベル語彙
	Dataset *dataset.Dataset

	// TrainIndexes は学習に使うクリップ番号
	TrainIndexes []int

	// EvalTrainIndexes は学習曲線用に評価する学習クリップ番号。
	// 省略時はTrainIndexes全体を評価する
	EvalTrainIndexes []int

	// ValidateIndexes は検証に使うクリップ番号。空なら検証評価しない
	ValidateIndexes []int

	// Scaler は学習済みスケーラー。再開時はチェックポイントの統計が優先される
	Scaler *preprocessing.StandardScaler

	// FeatureConfig は特徴量抽出のパラメータ。チェックポイントに保存される
	FeatureConfig features.Config

	// Workspace はチェックポイントと統計の保存先ディレクトリ
	Workspace string

	// ByDevice は評価で録音デバイス別の内訳も集計するかどうか
	ByDevice bool

	// Callbacks は各イテレーションの前後に呼ばれる追加コールバック
	Callbacks []Callback
}

// Trainer はミニバッチ学習のイテレーションループを実行する
type Trainer struct {
	params    Params
	runID     string
	clf       *nn.SceneClassifier
	opt       *nn.Adam
	gen       *dataset.TrainGenerator
	trainEval *Evaluator
	valEval   *Evaluator
	scaler    *preprocessing.StandardScaler
	featCfg   features.Config
	workspace string
	numTrain  int
	callbacks *CallbackList
	history   map[string][]float64
	stats     []*Evaluation
	logger    log.Logger

	startIteration int
	lastIteration  int
	lastCheckpoint int
}

// NewTrainer は学習ループを構成する
// Params.ResumeIterationが正のときは対応するチェックポイントを読み込み、
// ネットワークとスケーラーをそこから復元する
func NewTrainer(cfg Config) (*Trainer, error) {
	p := cfg.Params.withDefaults()

	if cfg.Dataset == nil {
		return nil, errors.NewValueError("NewTrainer", "nil dataset")
	}
	if cfg.Workspace == "" {
		return nil, errors.NewValueError("NewTrainer", "empty workspace directory")
	}

	t := &Trainer{
		params:    p,
		runID:     uuid.NewString(),
		scaler:    cfg.Scaler,
		featCfg:   cfg.FeatureConfig,
		workspace: cfg.Workspace,
		history:   make(map[string][]float64),
		logger:    log.GetLoggerWithName("training.trainer"),
	}

	if p.ResumeIteration > 0 {
		cp, err := LoadCheckpoint(CheckpointPath(CheckpointDir(cfg.Workspace), p.ResumeIteration))
		if err != nil {
			return nil, err
		}
		if cp.FeatureConfig != cfg.FeatureConfig {
			return nil, errors.NewValueError("NewTrainer",
				"checkpoint feature config does not match the current feature config")
		}
		t.clf, err = cp.RestoreClassifier()
		if err != nil {
			return nil, err
		}
		t.scaler, err = cp.RestoreScaler()
		if err != nil {
			return nil, err
		}
		t.startIteration = cp.Iteration
		t.lastCheckpoint = cp.Iteration
	} else {
		clf, err := nn.NewSceneClassifier(cfg.Dataset.Classes(), cfg.FeatureConfig.NMels, p.Width, p.Seed)
		if err != nil {
			return nil, err
		}
		t.clf = clf
	}
	t.lastIteration = t.startIteration

	t.opt = nn.NewAdam(nn.AdamConfig{
		LearningRate: p.LearningRate,
		Beta1:        p.Beta1,
		Beta2:        p.Beta2,
		Epsilon:      p.Epsilon,
	})

	gen, err := dataset.NewTrainGenerator(cfg.Dataset, cfg.TrainIndexes, t.scaler, p.BatchSize, p.CropFrames, p.Seed)
	if err != nil {
		return nil, err
	}
	t.gen = gen
	t.numTrain = len(cfg.TrainIndexes)

	evalTrain := cfg.EvalTrainIndexes
	if len(evalTrain) == 0 {
		evalTrain = cfg.TrainIndexes
	}
	t.trainEval, err = NewEvaluator(cfg.Dataset, evalTrain, t.scaler, p.BatchSize, p.EvalMaxBatches, cfg.ByDevice)
	if err != nil {
		return nil, err
	}
	if len(cfg.ValidateIndexes) > 0 {
		t.valEval, err = NewEvaluator(cfg.Dataset, cfg.ValidateIndexes, t.scaler, p.BatchSize, p.EvalMaxBatches, cfg.ByDevice)
		if err != nil {
			return nil, err
		}
	}

	callbacks := append([]Callback(nil), cfg.Callbacks...)
	callbacks = append(callbacks, RecordEvaluation(&t.history))
	if p.CheckpointInterval > 0 {
		callbacks = append(callbacks, ModelCheckpoint(t.saveCheckpoint, p.CheckpointInterval))
	}
	if p.EarlyStoppingRounds > 0 && t.valEval != nil {
		callbacks = append(callbacks, EarlyStoppingCallback(p.EarlyStoppingRounds, "validate_accuracy", false))
	}
	t.callbacks = NewCallbackList(callbacks...)

	return t, nil
}

// RunID はこの学習ランの識別子を返す
func (t *Trainer) RunID() string {
	return t.runID
}

// Classifier は学習中または学習済みの分類器を返す
func (t *Trainer) Classifier() *nn.SceneClassifier {
	return t.clf
}

// History は評価指標の履歴を返す
func (t *Trainer) History() map[string][]float64 {
	return t.history
}

// Statistics はこれまでの評価結果を時系列順に返す
func (t *Trainer) Statistics() []*Evaluation {
	return t.stats
}

// LastIteration は最後に実行したイテレーションを返す
func (t *Trainer) LastIteration() int {
	return t.lastIteration
}

// Run は学習ループを最後のイテレーションまで実行する
// コールバックが停止を要求するかctxが取り消されるまで続き、
// 終了時には最終状態のチェックポイントが必ず保存されている
func (t *Trainer) Run(ctx context.Context) error {
	t.logger.Info("training started",
		log.RunIDKey, t.runID,
		log.IterationKey, t.startIteration,
		log.BatchSizeKey, t.params.BatchSize,
		log.FramesKey, t.params.CropFrames,
		log.LearningRateKey, t.params.LearningRate,
		log.RandomSeedKey, t.params.Seed,
		log.SamplesKey, t.numTrain,
	)
	startTime := time.Now()

	// 次のバッチは学習ステップの裏で構築する
	gen := dataset.NewPrefetcher(t.gen)
	defer gen.Close()

	for it := t.startIteration + 1; it <= t.params.NumIterations; it++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "training cancelled at iteration %d", it)
		}
		if err := t.callbacks.BeforeIteration(it, t.clf); err != nil {
			return err
		}
		if t.callbacks.ShouldStop() {
			break
		}

		b, err := gen.Next()
		if err != nil {
			return err
		}
		loss, err := t.clf.TrainStep(b.X, b.Targets, t.opt)
		if err != nil {
			return errors.Wrapf(err, "train step at iteration %d", it)
		}
		t.lastIteration = it

		results := map[string]float64{"loss": loss}
		if t.params.EvalInterval > 0 && it%t.params.EvalInterval == 0 {
			if err := t.evaluate(it, results); err != nil {
				return err
			}
		}

		if err := t.callbacks.AfterIteration(it, t.clf, results); err != nil {
			return err
		}
		if t.callbacks.ShouldStop() {
			t.logger.Info("training stopped by callback", log.IterationKey, it)
			break
		}
	}

	if t.lastIteration > t.lastCheckpoint {
		if err := t.saveCheckpoint(t.lastIteration); err != nil {
			return err
		}
	}

	t.logger.Info("training finished",
		log.RunIDKey, t.runID,
		log.IterationKey, t.lastIteration,
		log.DurationSecondsKey, time.Since(startTime).Seconds(),
	)
	return nil
}

// evaluate は学習・検証データを1パス評価し、統計を保存して
// resultsに指標を書き込む
func (t *Trainer) evaluate(iteration int, results map[string]float64) error {
	evals := []struct {
		split string
		eval  *Evaluator
	}{
		{"train", t.trainEval},
		{"validate", t.valEval},
	}

	for _, e := range evals {
		if e.eval == nil {
			continue
		}
		ev, err := e.eval.Evaluate(t.clf, iteration, e.split)
		if err != nil {
			return err
		}
		ev.RunID = t.runID

		t.stats = append(t.stats, ev)
		path := StatisticsPath(StatisticsDir(t.workspace), iteration, e.split)
		if err := SaveEvaluation(path, ev); err != nil {
			return err
		}

		results[e.split+"_loss"] = ev.Loss
		results[e.split+"_accuracy"] = ev.Accuracy
		for dev, acc := range ev.DeviceAccuracy {
			results[e.split+"_accuracy_"+dev] = acc
		}

		t.logger.Info("evaluation",
			log.IterationKey, iteration,
			log.SplitKey, e.split,
			log.LossKey, ev.Loss,
			log.AccuracyKey, ev.Accuracy,
			log.SamplesKey, ev.NumClips,
		)
	}
	return nil
}

// saveCheckpoint は現在の学習状態をチェックポイントとして保存する
func (t *Trainer) saveCheckpoint(iteration int) error {
	cp := &Checkpoint{
		Iteration:     iteration,
		Params:        t.params,
		FeatureConfig: t.featCfg,
		Network:       t.clf.State(),
		Scaler: ScalerState{
			Mean:  append([]float64(nil), t.scaler.Mean...),
			Scale: append([]float64(nil), t.scaler.Scale...),
		},
	}
	path := CheckpointPath(CheckpointDir(t.workspace), iteration)
	if err := SaveCheckpoint(path, cp); err != nil {
		return err
	}
	t.lastCheckpoint = iteration

	t.logger.Info("checkpoint saved",
		log.IterationKey, iteration,
		"path", path,
	)
	return nil
}
