// Package dataset はベンチマークのメタデータ読み込みとバッチ生成を提供する
package dataset

import (
	"fmt"
	"strings"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// Subtask はベンチマークの課題種別
type Subtask string

const (
	// SubtaskA は単一デバイスでのシーン分類
	SubtaskA Subtask = "a"

	// SubtaskB は録音デバイスの異なる音源を含むシーン分類
	SubtaskB Subtask = "b"

	// SubtaskC は未知シーンを含むオープンセット分類
	SubtaskC Subtask = "c"
)

// UnknownLabel はサブタスクCで未知シーンに割り当てるラベル
const UnknownLabel = "unknown"

// sceneLabels は10種類の音響シーンラベル
var sceneLabels = []string{
	"airport",
	"bus",
	"metro",
	"metro_station",
	"park",
	"public_square",
	"shopping_mall",
	"street_pedestrian",
	"street_traffic",
	"tram",
}

// SourceDevices はサブタスクBの録音デバイスラベル
var SourceDevices = []string{"a", "b", "c"}

// ParseSubtask は文字列をSubtaskに変換する
func ParseSubtask(s string) (Subtask, error) {
	switch Subtask(strings.ToLower(s)) {
	case SubtaskA:
		return SubtaskA, nil
	case SubtaskB:
		return SubtaskB, nil
	case SubtaskC:
		return SubtaskC, nil
	default:
		return "", errors.NewValueError("ParseSubtask",
			fmt.Sprintf("unknown subtask %q (want a, b or c)", s))
	}
}

// Classes はこのサブタスクのラベル語彙をクラス番号順に返す
// サブタスクCはunknownを加えた11クラスになる
func (s Subtask) Classes() []string {
	classes := append([]string(nil), sceneLabels...)
	if s == SubtaskC {
		classes = append(classes, UnknownLabel)
	}
	return classes
}

// NumClasses はクラス数を返す
func (s Subtask) NumClasses() int {
	if s == SubtaskC {
		return len(sceneLabels) + 1
	}
	return len(sceneLabels)
}

// LabelToIndex はシーンラベルからクラス番号への対応表を返す
func (s Subtask) LabelToIndex() map[string]int {
	classes := s.Classes()
	m := make(map[string]int, len(classes))
	for i, c := range classes {
		m[c] = i
	}
	return m
}
