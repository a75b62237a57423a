package audio

// Resample は3次補間で波形のサンプリングレートを変換する
// fromRateとtoRateが等しい場合は入力をそのまま返す
func Resample(x []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate {
		return x
	}

	ratio := float64(toRate) / float64(fromRate)
	newLength := int(float64(len(x)) * ratio)
	out := make([]float64, newLength)
	if newLength == 0 {
		return out
	}

	// 3次補間は前後2サンプルずつ参照するため、短すぎる入力は最近傍で代用する
	if len(x) < 4 {
		for i := range out {
			j := int(float64(i) / ratio)
			if j >= len(x) {
				j = len(x) - 1
			}
			out[i] = x[j]
		}
		return out
	}

	lastIndex := len(x) - 3
	for i := 0; i < newLength; i++ {
		origPos := float64(i) / ratio
		index := int(origPos)

		// 範囲外参照を避けるためインデックスをクランプする
		if index < 1 {
			index = 1
		} else if index > lastIndex {
			index = lastIndex
		}

		frac := origPos - float64(index)

		y0, y1, y2, y3 := x[index-1], x[index], x[index+1], x[index+2]
		mu2 := frac * frac
		a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
		a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
		a2 := -0.5*y0 + 0.5*y2
		a3 := y1

		out[i] = a0*frac*mu2 + a1*mu2 + a2*frac + a3
	}

	return out
}
