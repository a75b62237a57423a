package features

import (
	"path/filepath"
	"testing"

	ascErrors "github.com/soundscape-ml/ascgo/pkg/errors"
)

func TestPackSaveLoadRoundTrip(t *testing.T) {
	cfg := testConfig()
	pack := NewPack(cfg, 2)
	pack.Names[0], pack.Names[1] = "a.wav", "b.wav"
	pack.Labels[0], pack.Labels[1] = "park", "metro"
	pack.Devices[0], pack.Devices[1] = "a", "b"
	pack.Cities[0], pack.Cities[1] = "barcelona", "helsinki"
	for i := range pack.Data {
		pack.Data[i] = float64(i)
	}

	path := filepath.Join(t.TempDir(), "features", "a_train.gob")
	if err := pack.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := LoadPack(path, cfg)
	if err != nil {
		t.Fatalf("LoadPack() error = %v", err)
	}

	if got.NumClips() != 2 {
		t.Fatalf("NumClips() = %d, want 2", got.NumClips())
	}
	for i := range pack.Names {
		if got.Names[i] != pack.Names[i] {
			t.Errorf("Names[%d] = %s, want %s", i, got.Names[i], pack.Names[i])
		}
		if got.Labels[i] != pack.Labels[i] {
			t.Errorf("Labels[%d] = %s, want %s", i, got.Labels[i], pack.Labels[i])
		}
		if got.Devices[i] != pack.Devices[i] {
			t.Errorf("Devices[%d] = %s, want %s", i, got.Devices[i], pack.Devices[i])
		}
		if got.Cities[i] != pack.Cities[i] {
			t.Errorf("Cities[%d] = %s, want %s", i, got.Cities[i], pack.Cities[i])
		}
	}
	for i := range pack.Data {
		if got.Data[i] != pack.Data[i] {
			t.Fatalf("Data[%d] = %f, want %f", i, got.Data[i], pack.Data[i])
		}
	}

	// クリップビューは該当クリップの領域を参照する
	clip := got.Clip(1)
	if v := clip.At(0, 0); v != float64(got.ClipSize()) {
		t.Errorf("Clip(1).At(0, 0) = %f, want %f", v, float64(got.ClipSize()))
	}
}

func TestLoadPackConfigMismatch(t *testing.T) {
	cfg := testConfig()
	pack := NewPack(cfg, 1)
	pack.Names[0] = "a.wav"

	path := filepath.Join(t.TempDir(), "a_train.gob")
	if err := pack.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	active := cfg
	active.NMels = 32
	_, err := LoadPack(path, active)
	if err == nil {
		t.Fatal("LoadPack() expected error, got nil")
	}

	var mismatch *ascErrors.CacheMismatchError
	if !ascErrors.As(err, &mismatch) {
		t.Fatalf("LoadPack() error = %v, want CacheMismatchError", err)
	}
	if mismatch.Field != "NMels" {
		t.Errorf("Field = %s, want NMels", mismatch.Field)
	}
}

func TestLoadPackCorruptData(t *testing.T) {
	cfg := testConfig()
	pack := NewPack(cfg, 2)
	pack.Data = pack.Data[:10]

	path := filepath.Join(t.TempDir(), "broken.gob")
	if err := pack.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := LoadPack(path, cfg); err == nil {
		t.Error("LoadPack() expected error for corrupt cache, got nil")
	}
}

func TestLoadPackMissingFile(t *testing.T) {
	if _, err := LoadPack(filepath.Join(t.TempDir(), "missing.gob"), testConfig()); err == nil {
		t.Error("LoadPack() expected error, got nil")
	}
}

func TestCachePath(t *testing.T) {
	got := CachePath("/work", "b", 1, "validate")
	want := filepath.Join("/work", "features", "b_fold1_validate.gob")
	if got != want {
		t.Errorf("CachePath() = %s, want %s", got, want)
	}
}
