package features

import (
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/mat"
)

// STFT は短時間フーリエ変換のプラン
// Hann窓とFFTプランを作成時に用意し、フレームごとに使い回す。
// 内部バッファを共有するためゴルーチン間では共有できない
type STFT struct {
	nfft   int
	hop    int
	win    window.Values
	fft    *fourier.FFT
	buf    []float64
	coeffs []complex128
}

// NewSTFT は窓幅nfft、ホップ幅hopのSTFTプランを作成する
func NewSTFT(nfft, hop int) *STFT {
	return &STFT{
		nfft:   nfft,
		hop:    hop,
		win:    window.NewValues(window.Hann, nfft),
		fft:    fourier.NewFFT(nfft),
		buf:    make([]float64, nfft),
		coeffs: make([]complex128, nfft/2+1),
	}
}

// NumFrames は長さnの波形から得られるフレーム数を返す
func (s *STFT) NumFrames(n int) int {
	return 1 + n/s.hop
}

// PowerSpectrogram は波形のパワースペクトログラムを計算する
// 各フレームはフレーム中心がi*hopに合うよう配置され、端は反射で補われる。
// 戻り値は (フレーム数 × NFFT/2+1) の行列
func (s *STFT) PowerSpectrogram(x []float64) *mat.Dense {
	pad := s.nfft / 2
	frames := s.NumFrames(len(x))
	out := mat.NewDense(frames, len(s.coeffs), nil)

	for i := 0; i < frames; i++ {
		start := i*s.hop - pad
		for k := 0; k < s.nfft; k++ {
			s.buf[k] = sampleAt(x, start+k)
		}
		s.win.Transform(s.buf)

		coeffs := s.fft.Coefficients(s.coeffs, s.buf)
		row := out.RawRowView(i)
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			row[k] = re*re + im*im
		}
	}
	return out
}

// sampleAt は範囲外のインデックスを反射させて波形を参照する
func sampleAt(x []float64, i int) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return x[0]
	}
	period := 2 * (n - 1)
	i = ((i % period) + period) % period
	if i >= n {
		i = period - i
	}
	return x[i]
}
