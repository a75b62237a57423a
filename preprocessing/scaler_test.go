package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestStandardScaler_FitTransform(t *testing.T) {
	// 列ごとに平均0、標準偏差1になることを確認
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})

	scaler := NewStandardScalerDefault()
	transformed, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	r, c := transformed.Dims()
	if r != 4 || c != 2 {
		t.Fatalf("transformed dims = (%d, %d), want (4, 2)", r, c)
	}

	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < r; i++ {
			sum += transformed.At(i, j)
		}
		mean := sum / float64(r)
		if math.Abs(mean) > 1e-10 {
			t.Errorf("column %d mean = %v, want 0", j, mean)
		}

		sumSq := 0.0
		for i := 0; i < r; i++ {
			d := transformed.At(i, j) - mean
			sumSq += d * d
		}
		std := math.Sqrt(sumSq / float64(r))
		if math.Abs(std-1.0) > 1e-10 {
			t.Errorf("column %d std = %v, want 1", j, std)
		}
	}
}

func TestStandardScaler_KnownValues(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 2})

	scaler := NewStandardScalerDefault()
	if err := scaler.Fit(X); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if math.Abs(scaler.Mean[0]-1.0) > 1e-12 {
		t.Errorf("Mean = %v, want 1", scaler.Mean[0])
	}
	if math.Abs(scaler.Scale[0]-1.0) > 1e-12 {
		t.Errorf("Scale = %v, want 1", scaler.Scale[0])
	}
}

func TestStandardScaler_PartialFitMatchesFit(t *testing.T) {
	// バッチ分割して逐次学習しても一括学習と同じ統計になること
	data := []float64{
		1.0, -3.0,
		2.5, 0.0,
		-1.0, 4.2,
		0.5, 1.1,
		3.3, -2.2,
		-0.7, 0.9,
	}
	full := mat.NewDense(6, 2, data)

	batchScaler := NewStandardScalerDefault()
	if err := batchScaler.Fit(full); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	incScaler := NewStandardScalerDefault()
	if err := incScaler.PartialFit(mat.NewDense(2, 2, data[:4])); err != nil {
		t.Fatalf("PartialFit batch 1 failed: %v", err)
	}
	if err := incScaler.PartialFit(mat.NewDense(3, 2, data[4:10])); err != nil {
		t.Fatalf("PartialFit batch 2 failed: %v", err)
	}
	if err := incScaler.PartialFit(mat.NewDense(1, 2, data[10:])); err != nil {
		t.Fatalf("PartialFit batch 3 failed: %v", err)
	}

	if incScaler.NSamplesSeen != 6 {
		t.Errorf("NSamplesSeen = %d, want 6", incScaler.NSamplesSeen)
	}

	for j := 0; j < 2; j++ {
		if math.Abs(batchScaler.Mean[j]-incScaler.Mean[j]) > 1e-10 {
			t.Errorf("Mean[%d]: batch=%v incremental=%v", j, batchScaler.Mean[j], incScaler.Mean[j])
		}
		if math.Abs(batchScaler.Scale[j]-incScaler.Scale[j]) > 1e-10 {
			t.Errorf("Scale[%d]: batch=%v incremental=%v", j, batchScaler.Scale[j], incScaler.Scale[j])
		}
	}
}

func TestStandardScaler_NotFitted(t *testing.T) {
	scaler := NewStandardScalerDefault()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	if _, err := scaler.Transform(X); err == nil {
		t.Error("Transform before Fit should return error")
	}
	if err := scaler.TransformInPlace([]float64{1, 2}); err == nil {
		t.Error("TransformInPlace before Fit should return error")
	}
}

func TestStandardScaler_DimensionMismatch(t *testing.T) {
	scaler := NewStandardScalerDefault()
	if err := scaler.Fit(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// 特徴量数が違うデータの変換はエラー
	if _, err := scaler.Transform(mat.NewDense(2, 3, make([]float64, 6))); err == nil {
		t.Error("Transform with wrong feature count should return error")
	}
}

func TestStandardScaler_ZeroVariance(t *testing.T) {
	// 定数列はScale=1になりゼロ除算を起こさない
	X := mat.NewDense(3, 1, []float64{5, 5, 5})

	scaler := NewStandardScalerDefault()
	transformed, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	if scaler.Scale[0] != 1.0 {
		t.Errorf("Scale for constant column = %v, want 1", scaler.Scale[0])
	}
	for i := 0; i < 3; i++ {
		if v := transformed.At(i, 0); v != 0 {
			t.Errorf("transformed[%d] = %v, want 0", i, v)
		}
	}
}

func TestStandardScaler_TransformInPlace(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{
		0, 10,
		2, 30,
	})
	scaler := NewStandardScalerDefault()
	if err := scaler.Fit(X); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	flat := []float64{0, 10, 2, 30}
	if err := scaler.TransformInPlace(flat); err != nil {
		t.Fatalf("TransformInPlace failed: %v", err)
	}

	viaMatrix, err := scaler.Transform(X)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	want := []float64{
		viaMatrix.At(0, 0), viaMatrix.At(0, 1),
		viaMatrix.At(1, 0), viaMatrix.At(1, 1),
	}
	for i := range flat {
		if math.Abs(flat[i]-want[i]) > 1e-12 {
			t.Errorf("flat[%d] = %v, want %v", i, flat[i], want[i])
		}
	}
}

func TestStandardScaler_InverseTransformRoundTrip(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, -2, 4, 0.5, -3, 7})

	scaler := NewStandardScalerDefault()
	transformed, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	restored, err := scaler.InverseTransform(transformed)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			if math.Abs(restored.At(i, j)-X.At(i, j)) > 1e-10 {
				t.Errorf("restored[%d,%d] = %v, want %v", i, j, restored.At(i, j), X.At(i, j))
			}
		}
	}
}

func TestStandardScaler_Restore(t *testing.T) {
	scaler := NewStandardScalerDefault()
	if err := scaler.Restore([]float64{1, 2}, []float64{0.5, 2.0}); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !scaler.IsFitted() {
		t.Fatal("scaler should be fitted after Restore")
	}

	out, err := scaler.Transform(mat.NewDense(1, 2, []float64{2, 6}))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if got := out.At(0, 0); math.Abs(got-2.0) > 1e-12 {
		t.Errorf("out[0,0] = %v, want 2", got)
	}
	if got := out.At(0, 1); math.Abs(got-2.0) > 1e-12 {
		t.Errorf("out[0,1] = %v, want 2", got)
	}

	// 長さ不一致はエラー
	if err := scaler.Restore([]float64{1}, []float64{1, 2}); err == nil {
		t.Error("Restore with mismatched lengths should return error")
	}
}

func TestMinMaxScaler_FitTransform(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 5, 10})

	scaler := NewMinMaxScalerDefault()
	transformed, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	want := []float64{0, 0.5, 1}
	for i, w := range want {
		if got := transformed.At(i, 0); math.Abs(got-w) > 1e-12 {
			t.Errorf("transformed[%d] = %v, want %v", i, got, w)
		}
	}
}

func TestMinMaxScaler_CustomRange(t *testing.T) {
	// PNG強度用の[0, 255]レンジ
	X := mat.NewDense(2, 1, []float64{-80, 0})

	scaler := NewMinMaxScaler([2]float64{0, 255})
	transformed, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	if got := transformed.At(0, 0); math.Abs(got) > 1e-9 {
		t.Errorf("min maps to %v, want 0", got)
	}
	if got := transformed.At(1, 0); math.Abs(got-255) > 1e-9 {
		t.Errorf("max maps to %v, want 255", got)
	}
}

func TestMinMaxScaler_ConstantColumn(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{2, 2, 2})

	scaler := NewMinMaxScalerDefault()
	if _, err := scaler.FitTransform(X); err != nil {
		t.Fatalf("FitTransform on constant column failed: %v", err)
	}
	if scaler.Scale[0] != 1.0 {
		t.Errorf("Scale for constant column = %v, want 1", scaler.Scale[0])
	}
}
