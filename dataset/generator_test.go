package dataset

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	ascErrors "github.com/soundscape-ml/ascgo/pkg/errors"
	"github.com/soundscape-ml/ascgo/preprocessing"
)

// identityScaler は平均0、スケール1の恒等変換スケーラーを返す
func identityScaler(t *testing.T, nFeatures int) *preprocessing.StandardScaler {
	t.Helper()
	mean := make([]float64, nFeatures)
	scale := make([]float64, nFeatures)
	for i := range scale {
		scale[i] = 1.0
	}
	scaler := preprocessing.NewStandardScalerDefault()
	if err := scaler.Restore(mean, scale); err != nil {
		t.Fatalf("restore scaler: %v", err)
	}
	return scaler
}

func mustDataset(t *testing.T, labels, devices []string) *Dataset {
	t.Helper()
	ds, err := NewDataset(makePack(t, labels, devices), SubtaskA)
	if err != nil {
		t.Fatalf("NewDataset() error = %v", err)
	}
	return ds
}

func TestTrainGeneratorBatch(t *testing.T) {
	labels := []string{"park", "park", "park", "park", "park"}
	devices := []string{"a", "a", "a", "a", "a"}
	ds := mustDataset(t, labels, devices)
	cfg := ds.Pack.Config
	frames := cfg.NumFrames()
	crop := 3

	base := make(map[string]float64, len(labels))
	for i, name := range ds.Pack.Names {
		base[name] = float64(i * 100)
	}

	g, err := NewTrainGenerator(ds, []int{0, 1, 2, 3, 4}, identityScaler(t, cfg.NMels), 2, crop, 7)
	if err != nil {
		t.Fatalf("NewTrainGenerator() error = %v", err)
	}

	b, err := g.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if b.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", b.Size())
	}
	if b.Frames != crop {
		t.Errorf("Frames = %d, want %d", b.Frames, crop)
	}
	if _, c := b.X.Dims(); c != crop*cfg.NMels {
		t.Errorf("X cols = %d, want %d", c, crop*cfg.NMels)
	}

	// 各行はクリップ内の連続したフレーム区間になっているはず
	for bi := 0; bi < b.Size(); bi++ {
		if b.Targets[bi] != 4 {
			t.Errorf("Targets[%d] = %d, want 4", bi, b.Targets[bi])
		}
		row := b.X.RawRowView(bi)
		start := row[0] - base[b.Names[bi]]
		if start < 0 || start > float64(frames-crop) {
			t.Fatalf("row %d: crop start %v out of range [0, %d]", bi, start, frames-crop)
		}
		for f := 0; f < crop; f++ {
			want := base[b.Names[bi]] + start + float64(f)
			for m := 0; m < cfg.NMels; m++ {
				if row[f*cfg.NMels+m] != want {
					t.Fatalf("row %d frame %d mel %d = %v, want %v", bi, f, m, row[f*cfg.NMels+m], want)
				}
			}
		}
	}
}

func TestTrainGeneratorDeterminism(t *testing.T) {
	labels := []string{"park", "metro", "tram", "bus"}
	devices := []string{"a", "a", "a", "a"}
	indexes := []int{0, 1, 2, 3}

	makeGen := func() *TrainGenerator {
		ds := mustDataset(t, labels, devices)
		g, err := NewTrainGenerator(ds, indexes, identityScaler(t, ds.Pack.Config.NMels), 3, 2, 42)
		if err != nil {
			t.Fatalf("NewTrainGenerator() error = %v", err)
		}
		return g
	}
	g1, g2 := makeGen(), makeGen()

	// 同じseedなら全く同じバッチ列になる
	for i := 0; i < 5; i++ {
		b1, err := g1.Next()
		if err != nil {
			t.Fatalf("batch %d: Next() error = %v", i, err)
		}
		b2, err := g2.Next()
		if err != nil {
			t.Fatalf("batch %d: Next() error = %v", i, err)
		}
		if b1.Size() != b2.Size() {
			t.Fatalf("batch %d: size %d vs %d", i, b1.Size(), b2.Size())
		}
		for j := range b1.Names {
			if b1.Names[j] != b2.Names[j] {
				t.Errorf("batch %d: Names[%d] = %s vs %s", i, j, b1.Names[j], b2.Names[j])
			}
			if b1.Targets[j] != b2.Targets[j] {
				t.Errorf("batch %d: Targets[%d] = %d vs %d", i, j, b1.Targets[j], b2.Targets[j])
			}
		}
		if !mat.Equal(b1.X, b2.X) {
			t.Errorf("batch %d: X differs between same-seed generators", i)
		}
	}
}

func TestTrainGeneratorEpochCoverage(t *testing.T) {
	labels := []string{"park", "metro", "tram"}
	devices := []string{"a", "a", "a"}
	ds := mustDataset(t, labels, devices)

	g, err := NewTrainGenerator(ds, []int{0, 1, 2}, identityScaler(t, ds.Pack.Config.NMels), 2, 3, 1)
	if err != nil {
		t.Fatalf("NewTrainGenerator() error = %v", err)
	}

	// 3クリップをバッチ2で回すと1エポックは2+1の2バッチ。
	// エポックごとに全クリップがちょうど1回ずつ現れる
	for epoch := 0; epoch < 3; epoch++ {
		seen := make(map[string]int)
		total := 0
		for total < 3 {
			b, err := g.Next()
			if err != nil {
				t.Fatalf("epoch %d: Next() error = %v", epoch, err)
			}
			for _, name := range b.Names {
				seen[name]++
			}
			total += b.Size()
		}
		if total != 3 {
			t.Fatalf("epoch %d: %d clips, want 3", epoch, total)
		}
		for _, name := range ds.Pack.Names {
			if seen[name] != 1 {
				t.Errorf("epoch %d: clip %s appeared %d times, want 1", epoch, name, seen[name])
			}
		}
	}
}

func TestNewTrainGeneratorErrors(t *testing.T) {
	ds := mustDataset(t, []string{"park", "metro", ""}, []string{"a", "b", "a"})
	frames := ds.Pack.Config.NumFrames()
	fitted := identityScaler(t, ds.Pack.Config.NMels)

	tests := []struct {
		name    string
		indexes []int
		batch   int
		crop    int
		scaler  *preprocessing.StandardScaler
	}{
		{name: "クリップが空", indexes: nil, batch: 2, crop: 3, scaler: fitted},
		{name: "バッチサイズが0", indexes: []int{0, 1}, batch: 0, crop: 3, scaler: fitted},
		{name: "クロップ幅が0", indexes: []int{0, 1}, batch: 2, crop: 0, scaler: fitted},
		{name: "クロップ幅が全フレーム超", indexes: []int{0, 1}, batch: 2, crop: frames + 1, scaler: fitted},
		{name: "未学習のスケーラー", indexes: []int{0, 1}, batch: 2, crop: 3, scaler: preprocessing.NewStandardScalerDefault()},
		{name: "nilのスケーラー", indexes: []int{0, 1}, batch: 2, crop: 3, scaler: nil},
		{name: "ラベルのないクリップ", indexes: []int{0, 2}, batch: 2, crop: 3, scaler: fitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTrainGenerator(ds, tt.indexes, tt.scaler, tt.batch, tt.crop, 1); err == nil {
				t.Error("NewTrainGenerator() error = nil, want error")
			}
		})
	}
}

func TestEvalGeneratorOrder(t *testing.T) {
	ds := mustDataset(t, []string{"park", "metro", ""}, []string{"a", "a", "a"})
	cfg := ds.Pack.Config
	frames := cfg.NumFrames()

	g, err := NewEvalGenerator(ds, []int{2, 0, 1}, identityScaler(t, cfg.NMels), 2, nil, 0)
	if err != nil {
		t.Fatalf("NewEvalGenerator() error = %v", err)
	}
	if g.NumClips() != 3 {
		t.Fatalf("NumClips() = %d, want 3", g.NumClips())
	}

	b1, err := g.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if b1.Size() != 2 || b1.Names[0] != "clip2.wav" || b1.Names[1] != "clip0.wav" {
		t.Fatalf("batch 1: names = %v, want [clip2.wav clip0.wav]", b1.Names)
	}
	// 全フレームをそのまま流す。ラベルのないクリップは-1
	if b1.Frames != frames {
		t.Errorf("Frames = %d, want %d", b1.Frames, frames)
	}
	if b1.Targets[0] != -1 || b1.Targets[1] != 4 {
		t.Errorf("targets = %v, want [-1 4]", b1.Targets)
	}
	if got := b1.X.At(0, 0); got != 200.0 {
		t.Errorf("X(0,0) = %v, want 200", got)
	}
	if got := b1.X.At(0, (frames-1)*cfg.NMels); got != float64(200+frames-1) {
		t.Errorf("last frame of clip2 = %v, want %d", got, 200+frames-1)
	}

	b2, err := g.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if b2.Size() != 1 || b2.Names[0] != "clip1.wav" {
		t.Fatalf("batch 2: names = %v, want [clip1.wav]", b2.Names)
	}

	// 流し終えたらnilを返し続ける
	for i := 0; i < 2; i++ {
		b, err := g.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if b != nil {
			t.Fatalf("Next() after exhaustion = %+v, want nil", b)
		}
	}
}

func TestEvalGeneratorDeviceFilter(t *testing.T) {
	ds := mustDataset(t,
		[]string{"park", "park", "park", "park", "park"},
		[]string{"a", "b", "a", "c", "a"},
	)

	g, err := NewEvalGenerator(ds, []int{0, 1, 2, 3, 4}, identityScaler(t, ds.Pack.Config.NMels), 10, []string{"a"}, 0)
	if err != nil {
		t.Fatalf("NewEvalGenerator() error = %v", err)
	}
	if g.NumClips() != 3 {
		t.Fatalf("NumClips() = %d, want 3", g.NumClips())
	}

	b, err := g.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	want := []string{"clip0.wav", "clip2.wav", "clip4.wav"}
	if b.Size() != len(want) {
		t.Fatalf("Size() = %d, want %d", b.Size(), len(want))
	}
	for i, name := range want {
		if b.Names[i] != name {
			t.Errorf("Names[%d] = %s, want %s", i, b.Names[i], name)
		}
	}
}

func TestEvalGeneratorMaxBatches(t *testing.T) {
	ds := mustDataset(t,
		[]string{"park", "park", "park", "park", "park"},
		[]string{"a", "a", "a", "a", "a"},
	)

	g, err := NewEvalGenerator(ds, []int{0, 1, 2, 3, 4}, identityScaler(t, ds.Pack.Config.NMels), 2, nil, 1)
	if err != nil {
		t.Fatalf("NewEvalGenerator() error = %v", err)
	}

	b, err := g.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if b == nil || b.Size() != 2 {
		t.Fatalf("first batch = %+v, want 2 clips", b)
	}

	b, err = g.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if b != nil {
		t.Errorf("second batch = %+v, want nil after max batches", b)
	}
}

func TestEvalGeneratorScaling(t *testing.T) {
	ds := mustDataset(t, []string{"park"}, []string{"a"})
	cfg := ds.Pack.Config
	for i := range ds.Pack.ClipData(0) {
		ds.Pack.ClipData(0)[i] = 3.0
	}

	mean := make([]float64, cfg.NMels)
	scale := make([]float64, cfg.NMels)
	for i := range mean {
		mean[i] = 1.0
		scale[i] = 2.0
	}
	scaler := preprocessing.NewStandardScalerDefault()
	if err := scaler.Restore(mean, scale); err != nil {
		t.Fatalf("restore scaler: %v", err)
	}

	g, err := NewEvalGenerator(ds, []int{0}, scaler, 1, nil, 0)
	if err != nil {
		t.Fatalf("NewEvalGenerator() error = %v", err)
	}
	b, err := g.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	// (3 - 1) / 2 = 1
	r, c := b.X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.Abs(b.X.At(i, j)-1.0) > 1e-12 {
				t.Fatalf("X(%d,%d) = %v, want 1.0", i, j, b.X.At(i, j))
			}
		}
	}
}

func TestNewEvalGeneratorUnfittedScaler(t *testing.T) {
	ds := mustDataset(t, []string{"park"}, []string{"a"})

	_, err := NewEvalGenerator(ds, []int{0}, preprocessing.NewStandardScalerDefault(), 1, nil, 0)
	if err == nil {
		t.Fatal("NewEvalGenerator() error = nil, want error")
	}
	var notFittedErr *ascErrors.NotFittedError
	if !ascErrors.As(err, &notFittedErr) {
		t.Errorf("error should be NotFittedError, got %v", err)
	}
}
