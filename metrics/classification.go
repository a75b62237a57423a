package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/soundscape-ml/ascgo/pkg/errors"
)

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	// 入力検証
	if yTrue == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError("Accuracy", "empty vector")
	}
	n := yTrue.Len()
	if yPred == nil || yPred.Len() != n {
		got := 0
		if yPred != nil {
			got = yPred.Len()
		}
		return 0, errors.NewDimensionError("Accuracy", n, got, 0)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}

	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - 正解率）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// AccuracyLabels は整数ラベル列の正解率を計算する
func AccuracyLabels(yTrue, yPred []int) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("AccuracyLabels", "empty slice")
	}
	if len(yPred) != len(yTrue) {
		return 0, errors.NewDimensionError("AccuracyLabels", len(yTrue), len(yPred), 0)
	}

	correct := 0
	for i, y := range yTrue {
		if y == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// AUC はROC曲線下面積を計算する
// Mann-WhitneyのU統計量に基づき、同値には平均順位を割り当てる。
// 正例または負例しか存在しない場合は未定義となり、警告を発して0.5を返す。
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	// 入力検証
	if yTrue == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError("AUC", "empty vector")
	}
	n := yTrue.Len()
	if yPred == nil || yPred.Len() != n {
		got := 0
		if yPred != nil {
			got = yPred.Len()
		}
		return 0, errors.NewDimensionError("AUC", n, got, 0)
	}

	nPos := 0
	for i := 0; i < n; i++ {
		switch yTrue.AtVec(i) {
		case 1:
			nPos++
		case 0:
		default:
			return 0, errors.NewValueError("AUC", "labels must be binary (0 or 1)")
		}
	}
	nNeg := n - nPos

	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present", 0.5))
		return 0.5, nil
	}

	// 予測値で昇順に並べ、同値グループに平均順位を割り当てる
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b])
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && yPred.AtVec(idx[j]) == yPred.AtVec(idx[i]) {
			j++
		}
		// 順位は1始まり。[i, j)が同値グループ
		avgRank := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			ranks[idx[k]] = avgRank
		}
		i = j
	}

	var sumRanksPos float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == 1 {
			sumRanksPos += ranks[i]
		}
	}

	u := sumRanksPos - float64(nPos)*float64(nPos+1)/2.0
	return u / (float64(nPos) * float64(nNeg)), nil
}

// AUCMatrix は行列形式の入力に対してAUCを計算する
// 複数列の場合は先頭列のみを使用する。
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}

	rTrue, cTrue := yTrue.Dims()
	rPred, _ := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	if rTrue != rPred {
		return 0, errors.NewDimensionError("AUCMatrix", rTrue, rPred, 0)
	}

	yTrueVec := mat.NewVecDense(rTrue, nil)
	yPredVec := mat.NewVecDense(rPred, nil)
	for i := 0; i < rTrue; i++ {
		yTrueVec.SetVec(i, yTrue.At(i, 0))
		yPredVec.SetVec(i, yPred.At(i, 0))
	}

	return AUC(yTrueVec, yPredVec)
}

// BinaryLogLoss は二値分類の対数損失を計算する
// 予測確率は[eps, 1-eps]にクリップしてlog(0)を避ける。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	const eps = 1e-15

	// 入力検証
	if yTrue == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError("BinaryLogLoss", "empty vector")
	}
	n := yTrue.Len()
	if yPred == nil || yPred.Len() != n {
		got := 0
		if yPred != nil {
			got = yPred.Len()
		}
		return 0, errors.NewDimensionError("BinaryLogLoss", n, got, 0)
	}

	var sum float64
	for i := 0; i < n; i++ {
		y := yTrue.AtVec(i)
		if y != 0 && y != 1 {
			return 0, errors.NewValueError("BinaryLogLoss", "labels must be binary (0 or 1)")
		}

		p := errors.ClipValue(yPred.AtVec(i), eps, 1-eps)
		if y == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}

	return sum / float64(n), nil
}

// LogLoss は多クラス分類の対数損失を計算する
// probaは(サンプル数 × クラス数)の確率行列、yTrueは正解クラス番号。
func LogLoss(yTrue []int, proba mat.Matrix) (float64, error) {
	const eps = 1e-15

	if proba == nil {
		return 0, errors.NewValueError("LogLoss", "nil probability matrix")
	}
	r, c := proba.Dims()
	if r == 0 || c == 0 {
		return 0, errors.NewValueError("LogLoss", "empty probability matrix")
	}
	if len(yTrue) != r {
		return 0, errors.NewDimensionError("LogLoss", r, len(yTrue), 0)
	}

	var sum float64
	for i, y := range yTrue {
		if y < 0 || y >= c {
			return 0, errors.NewValidationError("yTrue", "class index out of range", y)
		}
		p := errors.ClipValue(proba.At(i, y), eps, 1-eps)
		sum -= math.Log(p)
	}

	return sum / float64(r), nil
}

// ConfusionMatrix は混同行列を計算する
// 行が正解クラス、列が予測クラスで、要素は件数。
func ConfusionMatrix(yTrue, yPred []int, numClasses int) (*mat.Dense, error) {
	if len(yTrue) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "empty slice")
	}
	if len(yPred) != len(yTrue) {
		return nil, errors.NewDimensionError("ConfusionMatrix", len(yTrue), len(yPred), 0)
	}
	if numClasses <= 0 {
		return nil, errors.NewValidationError("numClasses", "must be positive", numClasses)
	}

	cm := mat.NewDense(numClasses, numClasses, nil)
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= numClasses {
			return nil, errors.NewValidationError("yTrue", "class index out of range", t)
		}
		if p < 0 || p >= numClasses {
			return nil, errors.NewValidationError("yPred", "class index out of range", p)
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}

	return cm, nil
}

// PerClassAccuracy は混同行列からクラスごとの正解率（再現率）を計算する
// 該当クラスのサンプルが存在しない場合は警告を発して0を返す。
func PerClassAccuracy(cm mat.Matrix) []float64 {
	r, c := cm.Dims()
	acc := make([]float64, r)

	for i := 0; i < r; i++ {
		var rowSum float64
		for j := 0; j < c; j++ {
			rowSum += cm.At(i, j)
		}
		if rowSum == 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("PerClassAccuracy", "no samples for class", 0))
		}
		acc[i] = errors.SafeDivide(cm.At(i, i), rowSum)
	}

	return acc
}

// BalancedAccuracy は混同行列からクラス平均の正解率を計算する
// サンプルの存在するクラスの再現率を単純平均するため、
// クラス分布の偏りに左右されない。
func BalancedAccuracy(cm mat.Matrix) float64 {
	r, c := cm.Dims()
	recalls := make([]float64, 0, r)
	for i := 0; i < r; i++ {
		var rowSum float64
		for j := 0; j < c; j++ {
			rowSum += cm.At(i, j)
		}
		if rowSum > 0 {
			recalls = append(recalls, cm.At(i, i)/rowSum)
		}
	}
	if len(recalls) == 0 {
		return 0
	}
	return stat.Mean(recalls, nil)
}
