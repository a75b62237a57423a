package features

import (
	"math"
	"testing"
)

func TestSTFTShape(t *testing.T) {
	s := NewSTFT(256, 80)

	x := make([]float64, 800)
	spec := s.PowerSpectrogram(x)

	r, c := spec.Dims()
	if wantFrames := 1 + 800/80; r != wantFrames {
		t.Errorf("frames = %d, want %d", r, wantFrames)
	}
	if wantBins := 256/2 + 1; c != wantBins {
		t.Errorf("bins = %d, want %d", c, wantBins)
	}
}

func TestSTFTSinePeakBin(t *testing.T) {
	// FFTビンにちょうど乗る周波数の正弦波は、そのビンにピークを持つ
	const (
		nfft = 256
		hop  = 80
		bin  = 8
	)
	x := make([]float64, 1024)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * float64(bin) * float64(i) / float64(nfft))
	}

	s := NewSTFT(nfft, hop)
	spec := s.PowerSpectrogram(x)

	// 反射パディングの影響を受けない中央のフレームを調べる
	row := 4
	_, c := spec.Dims()
	peak := 0
	for k := 1; k < c; k++ {
		if spec.At(row, k) > spec.At(row, peak) {
			peak = k
		}
	}
	if peak != bin {
		t.Errorf("peak bin = %d, want %d", peak, bin)
	}
}

func TestSTFTConstantSignal(t *testing.T) {
	// 定常信号のエネルギーはDCビンに集中する
	x := make([]float64, 1024)
	for i := range x {
		x[i] = 1.0
	}

	s := NewSTFT(256, 80)
	spec := s.PowerSpectrogram(x)

	row := 4
	_, c := spec.Dims()
	for k := 1; k < c; k++ {
		if spec.At(row, k) >= spec.At(row, 0) {
			t.Fatalf("bin %d power %f >= DC power %f", k, spec.At(row, k), spec.At(row, 0))
		}
	}
}

func TestSampleAtReflection(t *testing.T) {
	x := []float64{1, 2, 3, 4}

	tests := []struct {
		name string
		i    int
		want float64
	}{
		{name: "範囲内", i: 2, want: 3},
		{name: "左に1つ外れる", i: -1, want: 2},
		{name: "左に2つ外れる", i: -2, want: 3},
		{name: "右に1つ外れる", i: 4, want: 3},
		{name: "右に2つ外れる", i: 5, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sampleAt(x, tt.i); got != tt.want {
				t.Errorf("sampleAt(%d) = %f, want %f", tt.i, got, tt.want)
			}
		})
	}

	// 1サンプルだけの波形はその値を返し続ける
	if got := sampleAt([]float64{7}, -3); got != 7 {
		t.Errorf("sampleAt(-3) = %f, want 7", got)
	}
}
