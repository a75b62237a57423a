package dataset

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/soundscape-ml/ascgo/pkg/errors"
	"github.com/soundscape-ml/ascgo/preprocessing"
)

// Batch は1ミニバッチ分の特徴量とラベル
type Batch struct {
	// Names は各クリップのファイル名
	Names []string

	// X は標準化済みの特徴量。各行は (Frames × メルビン数) を
	// 行優先でフラット化したもの
	X *mat.Dense

	// Targets は各クリップのクラス番号。ラベルのないクリップは-1
	Targets []int

	// Frames は1クリップあたりのフレーム数
	Frames int
}

// Size はバッチ内のクリップ数を返す
func (b *Batch) Size() int {
	return len(b.Names)
}

// TrainGenerator は学習用の無限バッチ生成器
// エポックごとに再シャッフルし、各クリップから毎回ランダムな位置の
// 固定長クロップを切り出す
type TrainGenerator struct {
	ds      *Dataset
	scaler  *preprocessing.StandardScaler
	indexes []int
	batch   int
	crop    int
	rng     *rand.Rand
	pointer int
}

// NewTrainGenerator は学習用生成器を作成する
// indexesの全クリップはシーンラベルを持っていなければならない。
// シャッフルとクロップ位置はseedで決まるため、同じseedなら同じ列を生成する
func NewTrainGenerator(ds *Dataset, indexes []int, scaler *preprocessing.StandardScaler, batchSize, cropFrames int, seed int64) (*TrainGenerator, error) {
	if len(indexes) == 0 {
		return nil, errors.NewValueError("NewTrainGenerator", "no training clips")
	}
	if batchSize <= 0 {
		return nil, errors.NewValidationError("batchSize", "must be positive", batchSize)
	}
	frames := ds.Pack.Config.NumFrames()
	if cropFrames <= 0 || cropFrames > frames {
		return nil, errors.NewValidationError("cropFrames",
			fmt.Sprintf("must be in (0, %d]", frames), cropFrames)
	}
	if scaler == nil || !scaler.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "NewTrainGenerator")
	}
	for _, i := range indexes {
		if ds.Targets[i] < 0 {
			return nil, errors.NewValueError("NewTrainGenerator",
				fmt.Sprintf("clip %s has no scene label", ds.Pack.Names[i]))
		}
	}

	g := &TrainGenerator{
		ds:      ds,
		scaler:  scaler,
		indexes: append([]int(nil), indexes...),
		batch:   batchSize,
		crop:    cropFrames,
		rng:     rand.New(rand.NewSource(seed)),
	}
	g.shuffle()
	return g, nil
}

func (g *TrainGenerator) shuffle() {
	g.rng.Shuffle(len(g.indexes), func(i, j int) {
		g.indexes[i], g.indexes[j] = g.indexes[j], g.indexes[i]
	})
}

// Next は次のミニバッチを返す
// 1周し終えると先頭に戻って再シャッフルするため、生成は無限に続く。
// エポック境界ではバッチが指定サイズより小さくなることがある
func (g *TrainGenerator) Next() (*Batch, error) {
	if g.pointer >= len(g.indexes) {
		g.pointer = 0
		g.shuffle()
	}

	end := g.pointer + g.batch
	if end > len(g.indexes) {
		end = len(g.indexes)
	}
	picked := g.indexes[g.pointer:end]
	g.pointer = end

	nmels := g.ds.Pack.Config.NMels
	frames := g.ds.Pack.Config.NumFrames()
	X := mat.NewDense(len(picked), g.crop*nmels, nil)
	names := make([]string, len(picked))
	targets := make([]int, len(picked))

	for bi, idx := range picked {
		names[bi] = g.ds.Pack.Names[idx]
		targets[bi] = g.ds.Targets[idx]

		start := g.rng.Intn(frames - g.crop + 1)
		clip := g.ds.Pack.ClipData(idx)
		row := X.RawRowView(bi)
		copy(row, clip[start*nmels:(start+g.crop)*nmels])
		if err := g.scaler.TransformInPlace(row); err != nil {
			return nil, err
		}
	}

	return &Batch{Names: names, X: X, Targets: targets, Frames: g.crop}, nil
}

// EvalGenerator は評価用の有限バッチ生成器
// クリップを決まった順序で全フレームのまま流す
type EvalGenerator struct {
	ds         *Dataset
	scaler     *preprocessing.StandardScaler
	indexes    []int
	batch      int
	maxBatches int
	pointer    int
	emitted    int
}

// NewEvalGenerator は評価用生成器を作成する
// devicesを指定すると該当デバイスのクリップだけを流す。
// maxBatchesが正の場合、生成をその回数で打ち切る
func NewEvalGenerator(ds *Dataset, indexes []int, scaler *preprocessing.StandardScaler, batchSize int, devices []string, maxBatches int) (*EvalGenerator, error) {
	if batchSize <= 0 {
		return nil, errors.NewValidationError("batchSize", "must be positive", batchSize)
	}
	if scaler == nil || !scaler.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "NewEvalGenerator")
	}

	return &EvalGenerator{
		ds:         ds,
		scaler:     scaler,
		indexes:    ds.DeviceIndexes(indexes, devices),
		batch:      batchSize,
		maxBatches: maxBatches,
	}, nil
}

// NumClips は生成対象のクリップ数を返す
func (g *EvalGenerator) NumClips() int {
	return len(g.indexes)
}

// Next は次のバッチを返す。すべて流し終えるとnilを返す
func (g *EvalGenerator) Next() (*Batch, error) {
	if g.pointer >= len(g.indexes) {
		return nil, nil
	}
	if g.maxBatches > 0 && g.emitted >= g.maxBatches {
		return nil, nil
	}

	end := g.pointer + g.batch
	if end > len(g.indexes) {
		end = len(g.indexes)
	}
	picked := g.indexes[g.pointer:end]
	g.pointer = end
	g.emitted++

	nmels := g.ds.Pack.Config.NMels
	frames := g.ds.Pack.Config.NumFrames()
	X := mat.NewDense(len(picked), frames*nmels, nil)
	names := make([]string, len(picked))
	targets := make([]int, len(picked))

	for bi, idx := range picked {
		names[bi] = g.ds.Pack.Names[idx]
		targets[bi] = g.ds.Targets[idx]

		row := X.RawRowView(bi)
		copy(row, g.ds.Pack.ClipData(idx))
		if err := g.scaler.TransformInPlace(row); err != nil {
			return nil, err
		}
	}

	return &Batch{Names: names, X: X, Targets: targets, Frames: frames}, nil
}
