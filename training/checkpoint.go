package training

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/soundscape-ml/ascgo/core/model"
	"github.com/soundscape-ml/ascgo/features"
	"github.com/soundscape-ml/ascgo/nn"
	"github.com/soundscape-ml/ascgo/pkg/errors"
	"github.com/soundscape-ml/ascgo/preprocessing"
)

// ScalerState は学習済みStandardScalerの統計情報
type ScalerState struct {
	Mean  []float64
	Scale []float64
}

// Checkpoint は学習を再開・推論するために必要な状態一式
// ネットワークの重みと移動統計、スケーラー、特徴量設定、ラベル語彙、
// ハイパーパラメータをまとめてgobで保存する
type Checkpoint struct {
	// Iteration は保存時点の学習イテレーション
	Iteration int

	// Params は学習に使われたハイパーパラメータ（乱数シードを含む）
	Params Params

	// FeatureConfig は特徴量抽出のパラメータ。推論時の抽出は
	// これと一致していなければならない
	FeatureConfig features.Config

	// Network はネットワークのパラメータと移動統計のスナップショット
	Network *nn.NetworkState

	// Scaler は学習済みスケーラーの統計情報
	Scaler ScalerState
}

// Classes はチェックポイントのラベル語彙をクラス番号順に返す
func (cp *Checkpoint) Classes() []string {
	if cp.Network == nil {
		return nil
	}
	return append([]string(nil), cp.Network.Classes...)
}

// RestoreClassifier はスナップショットから学習済み分類器を再構築する
func (cp *Checkpoint) RestoreClassifier() (*nn.SceneClassifier, error) {
	if cp.Network == nil {
		return nil, errors.NewValueError("RestoreClassifier", "checkpoint has no network state")
	}
	return nn.RestoreSceneClassifier(cp.Network)
}

// RestoreScaler はスナップショットから学習済みスケーラーを再構築する
func (cp *Checkpoint) RestoreScaler() (*preprocessing.StandardScaler, error) {
	s := preprocessing.NewStandardScalerDefault()
	if err := s.Restore(cp.Scaler.Mean, cp.Scaler.Scale); err != nil {
		return nil, errors.Wrap(err, "restore scaler from checkpoint")
	}
	return s, nil
}

// CheckpointDir は作業ディレクトリ内のチェックポイント置き場を返す
func CheckpointDir(workspace string) string {
	return filepath.Join(workspace, "checkpoints")
}

// CheckpointPath はチェックポイントのファイルパスを返す
func CheckpointPath(dir string, iteration int) string {
	return filepath.Join(dir, fmt.Sprintf("checkpoint_iter%d.gob", iteration))
}

// SaveCheckpoint はチェックポイントをgobで保存する。親ディレクトリがなければ作る
func SaveCheckpoint(path string, cp *Checkpoint) error {
	if cp == nil || cp.Network == nil {
		return errors.NewValueError("SaveCheckpoint", "nil checkpoint")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create checkpoint directory")
	}
	if err := model.SaveModel(cp, path); err != nil {
		return errors.Wrapf(err, "save checkpoint to %s", path)
	}
	return nil
}

// LoadCheckpoint は保存済みチェックポイントを読み込む
func LoadCheckpoint(path string) (*Checkpoint, error) {
	var cp Checkpoint
	if err := model.LoadModel(&cp, path); err != nil {
		return nil, errors.Wrapf(err, "load checkpoint from %s", path)
	}
	if cp.Network == nil {
		return nil, errors.NewValueError("LoadCheckpoint",
			fmt.Sprintf("checkpoint %s has no network state", path))
	}
	return &cp, nil
}

// LatestCheckpoint はディレクトリ内で最も進んだチェックポイントのイテレーションを返す
func LatestCheckpoint(dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "checkpoint_iter*.gob"))
	if err != nil {
		return 0, errors.Wrapf(err, "list checkpoints in %s", dir)
	}
	latest := 0
	for _, p := range paths {
		var it int
		if _, err := fmt.Sscanf(filepath.Base(p), "checkpoint_iter%d.gob", &it); err == nil && it > latest {
			latest = it
		}
	}
	if latest == 0 {
		return 0, errors.NewValueError("LatestCheckpoint", "no checkpoints in "+dir)
	}
	return latest, nil
}
