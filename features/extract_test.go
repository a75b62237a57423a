package features

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soundscape-ml/ascgo/audio"
)

func writeTestClips(t *testing.T, dir string, cfg Config, freqs []float64) []ClipRef {
	t.Helper()

	refs := make([]ClipRef, len(freqs))
	labels := []string{"park", "metro", "tram"}
	devices := []string{"a", "b", "a"}
	for i, freq := range freqs {
		name := fmt.Sprintf("clip%02d_%s.wav", i, labels[i%len(labels)])
		path := filepath.Join(dir, name)
		tone := testTone(freq, cfg.SampleRate, cfg.ClipSamples)
		if err := audio.WriteWAV(path, tone, cfg.SampleRate); err != nil {
			t.Fatalf("WriteWAV() error = %v", err)
		}
		refs[i] = ClipRef{
			Name:   name,
			Path:   path,
			Label:  labels[i%len(labels)],
			Device: devices[i%len(devices)],
			City:   "lisbon",
		}
	}
	return refs
}

func TestExtractPack(t *testing.T) {
	cfg := testConfig()
	dir := t.TempDir()
	refs := writeTestClips(t, dir, cfg, []float64{440, 880, 1760})

	pack, err := ExtractPack(refs, cfg, 2)
	if err != nil {
		t.Fatalf("ExtractPack() error = %v", err)
	}

	if pack.NumClips() != 3 {
		t.Fatalf("NumClips() = %d, want 3", pack.NumClips())
	}
	for i, ref := range refs {
		if pack.Names[i] != ref.Name {
			t.Errorf("Names[%d] = %s, want %s", i, pack.Names[i], ref.Name)
		}
		if pack.Labels[i] != ref.Label {
			t.Errorf("Labels[%d] = %s, want %s", i, pack.Labels[i], ref.Label)
		}
		if pack.Devices[i] != ref.Device {
			t.Errorf("Devices[%d] = %s, want %s", i, pack.Devices[i], ref.Device)
		}
	}

	for i := range refs {
		r, c := pack.Clip(i).Dims()
		if r != cfg.NumFrames() || c != cfg.NMels {
			t.Fatalf("Clip(%d) dims = (%d, %d), want (%d, %d)", i, r, c, cfg.NumFrames(), cfg.NMels)
		}
	}

	// 周波数の異なるクリップは異なる特徴量になる
	same := true
	a, b := pack.ClipData(0), pack.ClipData(1)
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("clips with different tones produced identical features")
	}
}

func TestExtractPackDeterministicAcrossWorkers(t *testing.T) {
	cfg := testConfig()
	dir := t.TempDir()
	refs := writeTestClips(t, dir, cfg, []float64{440, 880, 1320, 1760})

	packA, err := ExtractPack(refs, cfg, 1)
	if err != nil {
		t.Fatalf("ExtractPack(workers=1) error = %v", err)
	}
	packB, err := ExtractPack(refs, cfg, 3)
	if err != nil {
		t.Fatalf("ExtractPack(workers=3) error = %v", err)
	}

	for i := range packA.Data {
		if packA.Data[i] != packB.Data[i] {
			t.Fatalf("Data[%d] differs across worker counts: %f vs %f", i, packA.Data[i], packB.Data[i])
		}
	}
}

func TestExtractPackMissingFile(t *testing.T) {
	cfg := testConfig()
	dir := t.TempDir()
	refs := writeTestClips(t, dir, cfg, []float64{440})
	refs = append(refs, ClipRef{
		Name: "missing.wav",
		Path: filepath.Join(dir, "missing.wav"),
	})

	_, err := ExtractPack(refs, cfg, 2)
	if err == nil {
		t.Fatal("ExtractPack() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "missing.wav") {
		t.Errorf("error %q does not name the failing clip", err)
	}
}

func TestExtractPackEmpty(t *testing.T) {
	if _, err := ExtractPack(nil, testConfig(), 1); err == nil {
		t.Error("ExtractPack() expected error for empty input, got nil")
	}
}
