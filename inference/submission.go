package inference

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/soundscape-ml/ascgo/pkg/errors"
	"github.com/soundscape-ml/ascgo/training"
)

// WriteSubmission は提出用のタブ区切りファイルを書き出す
// 各行は「ファイル名<TAB>シーンラベル」で、評価クリップ1つにつき1行になる
func WriteSubmission(path string, preds []Prediction) error {
	if len(preds) == 0 {
		return errors.NewValueError("WriteSubmission", "no predictions to write")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create submission directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create submission file %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	for _, p := range preds {
		if err := w.Write([]string{p.Name, p.Label}); err != nil {
			return errors.Wrapf(err, "write submission row for %s", p.Name)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrapf(err, "flush submission file %s", path)
	}
	return nil
}

// ReadSubmission は提出ファイルを読み込み、ファイル名とラベルの組を返す
func ReadSubmission(path string) ([][2]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open submission file %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = 2
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse submission file %s", path)
	}

	rows := make([][2]string, len(records))
	for i, rec := range records {
		rows[i] = [2]string{rec[0], rec[1]}
	}
	return rows, nil
}

// Meta は提出ファイルに添付するメタデータ
type Meta struct {
	RunID      string   `yaml:"run_id"`
	CreatedAt  string   `yaml:"created_at"`
	Subtask    string   `yaml:"subtask,omitempty"`
	Iteration  int      `yaml:"checkpoint_iteration"`
	Seed       int64    `yaml:"random_seed"`
	Recordings int      `yaml:"recordings"`
	Classes    []string `yaml:"classes"`
}

// NewMeta はチェックポイントと推論結果の件数からメタデータを作る
func NewMeta(cp *training.Checkpoint, subtask string, recordings int) Meta {
	return Meta{
		RunID:      uuid.NewString(),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		Subtask:    subtask,
		Iteration:  cp.Iteration,
		Seed:       cp.Params.Seed,
		Recordings: recordings,
		Classes:    cp.Classes(),
	}
}

// WriteMeta はメタデータをYAMLで書き出す
func WriteMeta(path string, meta Meta) error {
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return errors.Wrap(err, "marshal submission metadata")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create submission directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write submission metadata to %s", path)
	}
	return nil
}

// ReadMeta は保存済みメタデータを読み込む
func ReadMeta(path string) (Meta, error) {
	var meta Meta
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, errors.Wrapf(err, "read submission metadata from %s", path)
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, errors.Wrapf(err, "parse submission metadata %s", path)
	}
	return meta, nil
}
