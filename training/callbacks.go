package training

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/soundscape-ml/ascgo/nn"
)

// CallbackEnv はコールバックに渡される学習ループの状態
type CallbackEnv struct {
	Classifier   *nn.SceneClassifier
	Iteration    int
	BeginTime    time.Time
	EndTime      time.Time
	EvalResults  map[string]float64
	StopTraining bool
}

// Callback は各イテレーションの前後で呼ばれる関数
type Callback func(env *CallbackEnv) error

// PrintEvaluation は評価指標を一定間隔で標準出力に表示するコールバックを返す
func PrintEvaluation(period int) Callback {
	return func(env *CallbackEnv) error {
		if period <= 0 || env.Iteration%period != 0 || len(env.EvalResults) == 0 {
			return nil
		}
		names := make([]string, 0, len(env.EvalResults))
		for name := range env.EvalResults {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Printf("[%d] ", env.Iteration)
		for _, name := range names {
			fmt.Printf("%s: %.6f ", name, env.EvalResults[name])
		}
		fmt.Println()
		return nil
	}
}

// RecordEvaluation は評価指標の履歴をhistoryに蓄積するコールバックを返す
func RecordEvaluation(history *map[string][]float64) Callback {
	return func(env *CallbackEnv) error {
		if *history == nil {
			*history = make(map[string][]float64)
		}
		for name, value := range env.EvalResults {
			(*history)[name] = append((*history)[name], value)
		}
		return nil
	}
}

// EarlyStoppingCallback は指定の指標がrounds回の評価で改善しなければ
// 学習を停止するコールバックを返す。minimizeがfalseなら大きいほど良いとみなす
func EarlyStoppingCallback(rounds int, metric string, minimize bool) Callback {
	bestScore := math.Inf(1)
	if !minimize {
		bestScore = math.Inf(-1)
	}
	bestIteration := 0
	roundsNoImprove := 0

	return func(env *CallbackEnv) error {
		value, exists := env.EvalResults[metric]
		if !exists {
			return nil
		}

		improved := false
		if minimize {
			improved = value < bestScore
		} else {
			improved = value > bestScore
		}

		if improved {
			bestScore = value
			bestIteration = env.Iteration
			roundsNoImprove = 0
		} else {
			roundsNoImprove++
		}

		if roundsNoImprove >= rounds {
			fmt.Printf("Early stopping at iteration %d, best iteration was %d with %s = %.6f\n",
				env.Iteration, bestIteration, metric, bestScore)
			env.StopTraining = true
		}
		return nil
	}
}

// TimeLimit は指定時間を超えたら学習を停止するコールバックを返す
func TimeLimit(maxDuration time.Duration) Callback {
	startTime := time.Now()
	return func(env *CallbackEnv) error {
		if time.Since(startTime) > maxDuration {
			fmt.Printf("Time limit reached at iteration %d\n", env.Iteration)
			env.StopTraining = true
		}
		return nil
	}
}

// LearningRateSchedule はdecaySteps回のイテレーションごとに学習率を
// decayRate倍に減衰させるコールバックを返す
func LearningRateSchedule(opt *nn.Adam, decayRate float64, decaySteps int) Callback {
	return func(env *CallbackEnv) error {
		if decaySteps <= 0 || env.Iteration == 0 || env.Iteration%decaySteps != 0 {
			return nil
		}
		return opt.SetLearningRate(opt.Config().LearningRate * decayRate)
	}
}

// ModelCheckpoint はperiod回のイテレーションごとにsaveを呼ぶコールバックを返す
func ModelCheckpoint(save func(iteration int) error, period int) Callback {
	return func(env *CallbackEnv) error {
		if period <= 0 || env.Iteration == 0 || env.Iteration%period != 0 {
			return nil
		}
		if err := save(env.Iteration); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
		return nil
	}
}

// CallbackList は複数のコールバックをまとめて管理する
type CallbackList struct {
	callbacks []Callback
	env       *CallbackEnv
}

// NewCallbackList はコールバックリストを作成する
func NewCallbackList(callbacks ...Callback) *CallbackList {
	return &CallbackList{
		callbacks: callbacks,
		env: &CallbackEnv{
			EvalResults: make(map[string]float64),
		},
	}
}

// Append はコールバックを末尾に追加する
func (cl *CallbackList) Append(callbacks ...Callback) {
	cl.callbacks = append(cl.callbacks, callbacks...)
}

// BeforeIteration は各イテレーションの前に全コールバックを呼ぶ
func (cl *CallbackList) BeforeIteration(iteration int, clf *nn.SceneClassifier) error {
	cl.env.Iteration = iteration
	cl.env.Classifier = clf
	cl.env.BeginTime = time.Now()

	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
		if cl.env.StopTraining {
			break
		}
	}
	return nil
}

// AfterIteration は各イテレーションの後に全コールバックを呼ぶ
func (cl *CallbackList) AfterIteration(iteration int, clf *nn.SceneClassifier, evalResults map[string]float64) error {
	cl.env.Iteration = iteration
	cl.env.Classifier = clf
	cl.env.EndTime = time.Now()
	cl.env.EvalResults = evalResults

	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
	}
	return nil
}

// ShouldStop は学習を停止すべきかどうかを返す
func (cl *CallbackList) ShouldStop() bool {
	return cl.env.StopTraining
}
