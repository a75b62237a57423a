package features

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/soundscape-ml/ascgo/core/model"
	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// Pack は1データセット分の抽出済みログメル特徴量のキャッシュ
// Names/Labels/Devices/Citiesは常にクリップ数と同じ長さを持ち、
// 評価用セットのように値がない列は空文字列で埋められる。
// Dataはクリップ順に (NumFrames × NMels) を行優先で連結した平坦な配列
type Pack struct {
	// Config はこのキャッシュを生成した抽出設定
	Config Config

	// Names は各クリップのファイル名
	Names []string

	// Labels は各クリップのシーンラベル
	Labels []string

	// Devices は各クリップの録音デバイス
	Devices []string

	// Cities は各クリップの収録地識別子
	Cities []string

	// Data は平坦化された特徴量テンソル
	Data []float64
}

// NewPack はnumClips分の領域を確保した空のPackを作成する
func NewPack(cfg Config, numClips int) *Pack {
	return &Pack{
		Config:  cfg,
		Names:   make([]string, numClips),
		Labels:  make([]string, numClips),
		Devices: make([]string, numClips),
		Cities:  make([]string, numClips),
		Data:    make([]float64, numClips*cfg.NumFrames()*cfg.NMels),
	}
}

// NumClips はキャッシュ内のクリップ数を返す
func (p *Pack) NumClips() int {
	return len(p.Names)
}

// ClipSize は1クリップあたりの特徴量の要素数を返す
func (p *Pack) ClipSize() int {
	return p.Config.NumFrames() * p.Config.NMels
}

// ClipData はi番目のクリップの平坦な特徴量スライスを返す
// 返されるスライスはDataを共有しており、書き込みも反映される
func (p *Pack) ClipData(i int) []float64 {
	size := p.ClipSize()
	return p.Data[i*size : (i+1)*size]
}

// Clip はi番目のクリップを (NumFrames × NMels) の行列ビューとして返す
func (p *Pack) Clip(i int) *mat.Dense {
	return mat.NewDense(p.Config.NumFrames(), p.Config.NMels, p.ClipData(i))
}

// Save はPackをgob形式で保存する。親ディレクトリがなければ作成する
func (p *Pack) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create cache directory for %s", path)
	}
	if err := model.SaveModel(p, path); err != nil {
		return errors.Wrapf(err, "save feature cache %s", path)
	}
	return nil
}

// LoadPack はキャッシュを読み込み、現在の抽出設定と照合する
// 設定が一致しない場合はCacheMismatchErrorを返す。呼び出し側は
// キャッシュを無効とみなして再抽出する
func LoadPack(path string, active Config) (*Pack, error) {
	var p Pack
	if err := model.LoadModel(&p, path); err != nil {
		return nil, errors.Wrapf(err, "load feature cache %s", path)
	}

	if field, stored, current, equal := p.Config.diff(active); !equal {
		return nil, errors.NewCacheMismatchError(path, field, stored, current)
	}

	if want := p.NumClips() * p.ClipSize(); len(p.Data) != want {
		return nil, errors.NewValueError("LoadPack",
			fmt.Sprintf("%s: corrupt cache: %d feature values for %d clips, want %d",
				path, len(p.Data), p.NumClips(), want))
	}
	return &p, nil
}

// CachePath はサブタスク、フォールド、セット名からキャッシュファイルのパスを組み立てる
func CachePath(workspace, subtask string, fold int, set string) string {
	return filepath.Join(workspace, "features", fmt.Sprintf("%s_fold%d_%s.gob", subtask, fold, set))
}
