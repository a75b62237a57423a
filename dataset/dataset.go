package dataset

import (
	"fmt"

	"github.com/soundscape-ml/ascgo/features"
	"github.com/soundscape-ml/ascgo/pkg/errors"
	"github.com/soundscape-ml/ascgo/pkg/log"
	"github.com/soundscape-ml/ascgo/preprocessing"
)

// Dataset は特徴量キャッシュとサブタスクのラベル語彙を結び付ける
type Dataset struct {
	// Pack は抽出済み特徴量
	Pack *features.Pack

	// Subtask は適用中のサブタスク
	Subtask Subtask

	// Targets はクリップごとのクラス番号。ラベルのないクリップは-1
	Targets []int

	classes []string
	nameIdx map[string]int
}

// NewDataset はPackの全クリップにサブタスクのクラス番号を割り当てる
// 語彙にないシーンラベルが含まれているとエラーになる
func NewDataset(pack *features.Pack, subtask Subtask) (*Dataset, error) {
	lbToIdx := subtask.LabelToIndex()
	targets := make([]int, pack.NumClips())
	nameIdx := make(map[string]int, pack.NumClips())

	for i, name := range pack.Names {
		nameIdx[name] = i

		label := pack.Labels[i]
		if label == "" {
			targets[i] = -1
			continue
		}
		idx, ok := lbToIdx[label]
		if !ok {
			return nil, errors.NewValueError("NewDataset",
				fmt.Sprintf("unknown scene label %q for %s (subtask %s)", label, name, subtask))
		}
		targets[i] = idx
	}

	return &Dataset{
		Pack:    pack,
		Subtask: subtask,
		Targets: targets,
		classes: subtask.Classes(),
		nameIdx: nameIdx,
	}, nil
}

// Classes はラベル語彙をクラス番号順に返す
func (d *Dataset) Classes() []string {
	return d.classes
}

// NumClasses はクラス数を返す
func (d *Dataset) NumClasses() int {
	return len(d.classes)
}

// IndexesFor はマニフェストの各行をキャッシュ内のクリップ番号に対応付ける
// キャッシュに存在しない行は読み飛ばし、件数を警告ログに残す
func (d *Dataset) IndexesFor(entries []Entry) []int {
	indexes := make([]int, 0, len(entries))
	missing := 0
	for _, e := range entries {
		if i, ok := d.nameIdx[e.Filename]; ok {
			indexes = append(indexes, i)
		} else {
			missing++
		}
	}
	if missing > 0 {
		log.GetLoggerWithName("dataset").Warn("manifest entries missing from feature cache",
			log.SamplesKey, missing,
			log.SubtaskKey, string(d.Subtask),
		)
	}
	return indexes
}

// DeviceIndexes はindexesのうち指定デバイスで録音されたクリップだけを残す
// devicesが空の場合はそのまま返す
func (d *Dataset) DeviceIndexes(indexes []int, devices []string) []int {
	if len(devices) == 0 {
		return indexes
	}
	keep := make([]int, 0, len(indexes))
	for _, i := range indexes {
		dev := d.Pack.Devices[i]
		for _, want := range devices {
			if dev == want {
				keep = append(keep, i)
				break
			}
		}
	}
	return keep
}

// FitScaler は訓練クリップの全フレームからメルビンごとの統計を学習する
// クリップ単位の逐次学習なので、コーパス全体を積み上げた行列は作らない
func FitScaler(pack *features.Pack, indexes []int) (*preprocessing.StandardScaler, error) {
	if len(indexes) == 0 {
		return nil, errors.NewValueError("FitScaler", "no training clips")
	}

	scaler := preprocessing.NewStandardScalerDefault()
	for _, i := range indexes {
		if err := scaler.PartialFit(pack.Clip(i)); err != nil {
			return nil, errors.Wrapf(err, "fit scaler on clip %s", pack.Names[i])
		}
	}
	return scaler, nil
}
