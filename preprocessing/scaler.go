package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/soundscape-ml/ascgo/core/model"
	"github.com/soundscape-ml/ascgo/core/parallel"
	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する
//
// ログメルスペクトログラムの正規化では、全クリップのフレームを縦に連結した
// (総フレーム数 × メルビン数) 行列に対してメルビンごとの統計を学習する。
// コーパス全体を一度にメモリに載せられないため、PartialFitによる
// 逐次学習もサポートする。
type StandardScaler struct {
	model.BaseEstimator

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差
	Scale []float64

	// NFeatures は特徴量の数
	NFeatures int

	// NSamplesSeen は学習に使われた累計サンプル数（行数）
	NSamplesSeen int64

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool

	// 逐次学習用の累積統計。gobには保存されないが、
	// 復元後はMean/Scaleだけで変換できるため問題ない。
	meanAcc []float64
	m2Acc   []float64
}

var (
	_ model.Transformer     = (*StandardScaler)(nil)
	_ model.ParameterGetter = (*StandardScaler)(nil)
	_ model.Transformer     = (*MinMaxScaler)(nil)
)

// NewStandardScaler は新しいStandardScalerを作成する
//
// パラメータ:
//   - withMean: 平均を引くかどうか (デフォルト: true)
//   - withStd: 標準偏差で割るかどうか (デフォルト: true)
//
// 戻り値:
//   - *StandardScaler: 新しいStandardScalerインスタンス
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから統計情報（平均、標準偏差）を計算する
//
// パラメータ:
//   - X: 訓練データ (n_samples × n_features の行列)
//
// 戻り値:
//   - error: エラーが発生した場合
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.resetAccumulators()
	return s.PartialFit(X)
}

// PartialFit はミニバッチから統計情報を逐次的に更新する
// Chanらの並列分散アルゴリズムでバッチ統計を累積統計にマージする。
// 各呼び出し後にMean/Scaleが更新されるため、いつでもTransformを呼べる。
//
// パラメータ:
//   - X: ミニバッチ (n_samples × n_features の行列)
//
// 戻り値:
//   - error: エラーが発生した場合
func (s *StandardScaler) PartialFit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.PartialFit", "empty data", errors.ErrEmptyData)
	}

	if s.NSamplesSeen == 0 {
		s.NFeatures = c
		s.meanAcc = make([]float64, c)
		s.m2Acc = make([]float64, c)
	} else if c != s.NFeatures {
		return errors.NewDimensionError("StandardScaler.PartialFit", s.NFeatures, c, 1)
	}

	// バッチの平均とM2（平均からの偏差平方和）を計算
	batchMean := make([]float64, c)
	batchM2 := make([]float64, c)
	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < r; i++ {
			sum += X.At(i, j)
		}
		batchMean[j] = sum / float64(r)
	}
	for j := 0; j < c; j++ {
		sumSquares := 0.0
		for i := 0; i < r; i++ {
			diff := X.At(i, j) - batchMean[j]
			sumSquares += diff * diff
		}
		batchM2[j] = sumSquares
	}

	// 累積統計にマージ
	n := float64(s.NSamplesSeen)
	nb := float64(r)
	total := n + nb
	for j := 0; j < c; j++ {
		delta := batchMean[j] - s.meanAcc[j]
		s.meanAcc[j] += delta * nb / total
		s.m2Acc[j] += batchM2[j] + delta*delta*n*nb/total
	}
	s.NSamplesSeen += int64(r)

	s.finalize()
	s.SetFitted()
	return nil
}

// finalize は累積統計からMean/Scaleを導出する
func (s *StandardScaler) finalize() {
	c := s.NFeatures
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	if s.WithMean {
		copy(s.Mean, s.meanAcc)
	}

	if s.WithStd {
		for j := 0; j < c; j++ {
			variance := s.m2Acc[j] / float64(s.NSamplesSeen)
			s.Scale[j] = math.Sqrt(variance)

			// 標準偏差が0に近い場合は1に設定（ゼロ除算を避ける）
			if math.Abs(s.Scale[j]) < 1e-8 {
				s.Scale[j] = 1.0
			}
		}
	} else {
		for j := 0; j < c; j++ {
			s.Scale[j] = 1.0
		}
	}
}

// resetAccumulators は逐次学習の累積統計を初期化する
func (s *StandardScaler) resetAccumulators() {
	s.NSamplesSeen = 0
	s.meanAcc = nil
	s.m2Acc = nil
	s.Reset()
}

// Transform は学習済みの統計情報を使ってデータを標準化する
//
// パラメータ:
//   - X: 変換するデータ
//
// 戻り値:
//   - mat.Matrix: 標準化されたデータ
//   - error: エラーが発生した場合
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	// 結果を格納する行列を作成
	result := mat.NewDense(r, c, nil)

	// 各要素を標準化。コーパス全体の変換ではrが総フレーム数になるため、
	// 大きな入力は行方向に分割して並列化する
	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				value := X.At(i, j)
				standardized := (value - s.Mean[j]) / s.Scale[j]
				result.Set(i, j, standardized)
			}
		}
	})

	return result, nil
}

// TransformInPlace は学習済みの統計情報でスライスを直接標準化する
// 行優先でフラット化された (rows × NFeatures) のデータを想定する。
// バッチ生成のホットパスで行列の再確保を避けるために使う。
func (s *StandardScaler) TransformInPlace(data []float64) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError("StandardScaler", "TransformInPlace")
	}
	if len(data)%s.NFeatures != 0 {
		return errors.NewDimensionError("StandardScaler.TransformInPlace", s.NFeatures, len(data), 1)
	}

	for i := 0; i < len(data); i += s.NFeatures {
		for j := 0; j < s.NFeatures; j++ {
			data[i+j] = (data[i+j] - s.Mean[j]) / s.Scale[j]
		}
	}
	return nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
//
// パラメータ:
//   - X: 訓練・変換するデータ
//
// 戻り値:
//   - mat.Matrix: 標準化されたデータ
//   - error: エラーが発生した場合
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
//
// パラメータ:
//   - X: 標準化されたデータ
//
// 戻り値:
//   - mat.Matrix: 元のスケールに戻されたデータ
//   - error: エラーが発生した場合
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}

	// 結果を格納する行列を作成
	result := mat.NewDense(r, c, nil)

	// 各要素を逆変換
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			value := X.At(i, j)
			original := value*s.Scale[j] + s.Mean[j]
			result.Set(i, j, original)
		}
	}

	return result, nil
}

// Restore は保存済みの統計情報からスケーラーを復元する
// チェックポイントから読み込んだMean/Scaleで変換可能な状態に戻す。
func (s *StandardScaler) Restore(mean, scale []float64) error {
	if len(mean) == 0 || len(mean) != len(scale) {
		return errors.NewValidationError("mean/scale", "must be non-empty and equal length",
			fmt.Sprintf("%d/%d", len(mean), len(scale)))
	}
	s.NFeatures = len(mean)
	s.Mean = append([]float64(nil), mean...)
	s.Scale = append([]float64(nil), scale...)
	s.SetFitted()
	return nil
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// データを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	model.BaseEstimator

	// Min は各特徴量の最小値
	Min []float64

	// Max は各特徴量の最大値
	Max []float64

	// Scale は各特徴量のスケール (max - min)
	Scale []float64

	// DataMin は学習データの最小値
	DataMin []float64

	// DataMax は学習データの最大値
	DataMax []float64

	// NFeatures は特徴量の数
	NFeatures int

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
//
// パラメータ:
//   - featureRange: スケーリング後の範囲 [min, max] (デフォルト: [0, 1])
//
// 戻り値:
//   - *MinMaxScaler: 新しいMinMaxScalerインスタンス
//
// 使用例:
//
//	scaler := preprocessing.NewMinMaxScaler([2]float64{0.0, 255.0})
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit は訓練データから最小値・最大値を計算する
//
// パラメータ:
//   - X: 訓練データ (n_samples × n_features の行列)
//
// 戻り値:
//   - error: エラーが発生した場合
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Min = make([]float64, c)
	m.Max = make([]float64, c)
	m.Scale = make([]float64, c)

	// 各特徴量の最小値・最大値を計算
	for j := 0; j < c; j++ {
		minVal := X.At(0, j)
		maxVal := X.At(0, j)

		for i := 1; i < r; i++ {
			val := X.At(i, j)
			if val < minVal {
				minVal = val
			}
			if val > maxVal {
				maxVal = val
			}
		}

		m.DataMin[j] = minVal
		m.DataMax[j] = maxVal

		// スケールを計算 (max - min)
		dataRange := maxVal - minVal
		if math.Abs(dataRange) < 1e-8 {
			// 定数特徴量の場合、スケールを1に設定
			m.Scale[j] = 1.0
		} else {
			m.Scale[j] = dataRange
		}

		// 変換後の範囲を計算
		featureRange := m.FeatureRange[1] - m.FeatureRange[0]
		m.Min[j] = m.FeatureRange[0] - minVal*featureRange/m.Scale[j]
		m.Max[j] = m.FeatureRange[1] - maxVal*featureRange/m.Scale[j]
	}

	m.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータをスケーリングする
//
// パラメータ:
//   - X: 変換するデータ
//
// 戻り値:
//   - mat.Matrix: スケーリングされたデータ
//   - error: エラーが発生した場合
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "Transform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}

	// 結果を格納する行列を作成
	result := mat.NewDense(r, c, nil)

	// 各要素をスケーリング
	featureRange := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			val := X.At(i, j)
			// X_scaled = X_std * (max - min) + min
			// where X_std = (X - X.min) / (X.max - X.min)
			scaled := (val-m.DataMin[j])/m.Scale[j]*featureRange + m.FeatureRange[0]
			result.Set(i, j, scaled)
		}
	}

	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
//
// パラメータ:
//   - X: 訓練・変換するデータ
//
// 戻り値:
//   - mat.Matrix: スケーリングされたデータ
//   - error: エラーが発生した場合
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
//
// パラメータ:
//   - X: スケーリングされたデータ
//
// 戻り値:
//   - mat.Matrix: 元の範囲に戻されたデータ
//   - error: エラーが発生した場合
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.InverseTransform", m.NFeatures, c, 1)
	}

	// 結果を格納する行列を作成
	result := mat.NewDense(r, c, nil)

	// 各要素を逆変換
	featureRange := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			val := X.At(i, j)
			// 逆変換: X_orig = ((X_scaled - min) / (max - min)) * (data_max - data_min) + data_min
			original := ((val-m.FeatureRange[0])/featureRange)*m.Scale[j] + m.DataMin[j]
			result.Set(i, j, original)
		}
	}

	return result, nil
}

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": m.FeatureRange,
	}
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])",
			m.FeatureRange[0], m.FeatureRange[1])
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], m.NFeatures)
}
