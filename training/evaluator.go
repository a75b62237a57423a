package training

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/soundscape-ml/ascgo/dataset"
	"github.com/soundscape-ml/ascgo/metrics"
	"github.com/soundscape-ml/ascgo/nn"
	"github.com/soundscape-ml/ascgo/pkg/errors"
	"github.com/soundscape-ml/ascgo/preprocessing"
)

// Evaluation は1回の評価パスの結果
// クリップごとの予測を保持するため、精度の集計をオフラインでやり直せる
type Evaluation struct {
	// RunID は評価を実行した学習ランの識別子
	RunID string

	// Iteration は評価時点の学習イテレーション
	Iteration int

	// Split は評価対象の分割名 ("train" / "validate" など)
	Split string

	// NumClips は評価したクリップ数
	NumClips int

	// Loss はクリップ数で重み付けした平均損失
	Loss float64

	// Accuracy は全体の正解率
	Accuracy float64

	// BalancedAccuracy はクラス平均の正解率
	BalancedAccuracy float64

	// Correct は正解したクリップ数
	Correct int

	// Names / Targets / Predicted / Probs はクリップごとの
	// ファイル名、正解クラス、予測クラス、クラス確率
	Names     []string
	Targets   []int
	Predicted []int
	Probs     [][]float64

	// ClassAccuracy はシーンラベルごとの正解率。評価集合に
	// 現れなかったクラスは含まれない
	ClassAccuracy map[string]float64

	// DeviceCorrect / DeviceTotal / DeviceAccuracy はデバイス別の集計。
	// デバイス別集計が無効な場合はnil
	DeviceCorrect  map[string]int
	DeviceTotal    map[string]int
	DeviceAccuracy map[string]float64
}

// Evaluator は固定のクリップ集合に対して評価パスを繰り返し実行する
// 1パスの中で全体・クラス別・デバイス別の集計を同時に行うため、
// デバイス別の件数の合計は常に全体の件数と一致する
type Evaluator struct {
	ds         *dataset.Dataset
	scaler     *preprocessing.StandardScaler
	indexes    []int
	batchSize  int
	maxBatches int
	byDevice   bool
	deviceOf   map[string]string
}

// NewEvaluator は評価器を作成する
// indexesの全クリップはシーンラベルを持っていなければならない。
// byDeviceを有効にすると録音デバイス別の内訳も集計する
func NewEvaluator(ds *dataset.Dataset, indexes []int, scaler *preprocessing.StandardScaler, batchSize, maxBatches int, byDevice bool) (*Evaluator, error) {
	if ds == nil {
		return nil, errors.NewValueError("NewEvaluator", "nil dataset")
	}
	if len(indexes) == 0 {
		return nil, errors.NewValueError("NewEvaluator", "no clips to evaluate")
	}
	for _, i := range indexes {
		if i < 0 || i >= ds.Pack.NumClips() {
			return nil, errors.NewValidationError("indexes", "clip index out of range", i)
		}
		if ds.Targets[i] < 0 {
			return nil, errors.NewValueError("NewEvaluator",
				fmt.Sprintf("clip %s has no scene label", ds.Pack.Names[i]))
		}
	}

	e := &Evaluator{
		ds:         ds,
		scaler:     scaler,
		indexes:    append([]int(nil), indexes...),
		batchSize:  batchSize,
		maxBatches: maxBatches,
		byDevice:   byDevice,
	}
	if byDevice {
		e.deviceOf = make(map[string]string, len(indexes))
		for _, i := range indexes {
			dev := ds.Pack.Devices[i]
			if dev == "" {
				dev = dataset.DeviceFromName(ds.Pack.Names[i])
			}
			e.deviceOf[ds.Pack.Names[i]] = dev
		}
	}
	return e, nil
}

// NumClips は評価対象のクリップ数を返す
func (e *Evaluator) NumClips() int {
	return len(e.indexes)
}

// Evaluate はモデルを1パス評価する
// クリップは常に同じ順序で全フレーム長のまま処理され、モデルの状態は変化しない
func (e *Evaluator) Evaluate(clf *nn.SceneClassifier, iteration int, split string) (*Evaluation, error) {
	if clf == nil {
		return nil, errors.NewValueError("Evaluate", "nil classifier")
	}
	if clf.NumClasses() != e.ds.NumClasses() {
		return nil, errors.NewDimensionError("Evaluate", e.ds.NumClasses(), clf.NumClasses(), 0)
	}
	gen, err := dataset.NewEvalGenerator(e.ds, e.indexes, e.scaler, e.batchSize, nil, e.maxBatches)
	if err != nil {
		return nil, err
	}

	ev := &Evaluation{Iteration: iteration, Split: split}
	var lossSum float64
	for {
		b, err := gen.Next()
		if err != nil {
			return nil, err
		}
		if b == nil {
			break
		}

		loss, probs, err := clf.Loss(b.X, b.Targets)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluate %s at iteration %d", split, iteration)
		}
		lossSum += loss * float64(b.Size())

		for i, name := range b.Names {
			row := mat.Row(nil, i, probs)
			ev.Names = append(ev.Names, name)
			ev.Targets = append(ev.Targets, b.Targets[i])
			ev.Predicted = append(ev.Predicted, nn.Argmax(row))
			ev.Probs = append(ev.Probs, row)
		}
	}

	ev.NumClips = len(ev.Names)
	if ev.NumClips == 0 {
		return nil, errors.NewValueError("Evaluate", "no clips evaluated")
	}
	ev.Loss = lossSum / float64(ev.NumClips)

	ev.Accuracy, err = metrics.AccuracyLabels(ev.Targets, ev.Predicted)
	if err != nil {
		return nil, err
	}
	for i := range ev.Targets {
		if ev.Targets[i] == ev.Predicted[i] {
			ev.Correct++
		}
	}

	cm, err := metrics.ConfusionMatrix(ev.Targets, ev.Predicted, e.ds.NumClasses())
	if err != nil {
		return nil, err
	}
	ev.BalancedAccuracy = metrics.BalancedAccuracy(cm)
	classes := e.ds.Classes()
	ev.ClassAccuracy = make(map[string]float64)
	for c, label := range classes {
		var total float64
		for j := 0; j < len(classes); j++ {
			total += cm.At(c, j)
		}
		if total > 0 {
			ev.ClassAccuracy[label] = cm.At(c, c) / total
		}
	}

	if e.byDevice {
		ev.DeviceCorrect = make(map[string]int)
		ev.DeviceTotal = make(map[string]int)
		ev.DeviceAccuracy = make(map[string]float64)
		for i, name := range ev.Names {
			dev := e.deviceOf[name]
			ev.DeviceTotal[dev]++
			if ev.Targets[i] == ev.Predicted[i] {
				ev.DeviceCorrect[dev]++
			}
		}
		for dev, total := range ev.DeviceTotal {
			ev.DeviceAccuracy[dev] = float64(ev.DeviceCorrect[dev]) / float64(total)
		}
	}

	return ev, nil
}
