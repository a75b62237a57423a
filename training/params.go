package training

// Params は学習ループのハイパーパラメータ
// ゼロ値のフィールドはwithDefaultsでベンチマーク標準の値に補完される
type Params struct {
	// NumIterations は学習の総イテレーション数
	NumIterations int `json:"num_iterations"`

	// BatchSize は1イテレーションあたりのクリップ数
	BatchSize int `json:"batch_size"`

	// CropFrames は学習バッチに切り出すフレーム数
	CropFrames int `json:"crop_frames"`

	// LearningRate はAdamの学習率
	LearningRate float64 `json:"learning_rate"`

	// Beta1 は1次モーメントの減衰率
	Beta1 float64 `json:"beta_1"`

	// Beta2 は2次モーメントの減衰率
	Beta2 float64 `json:"beta_2"`

	// Epsilon はゼロ除算を防ぐ安定化項
	Epsilon float64 `json:"epsilon"`

	// Width はCNNのチャネル幅の倍率
	Width float64 `json:"width"`

	// EvalInterval は評価を行うイテレーション間隔
	EvalInterval int `json:"eval_interval"`

	// CheckpointInterval はチェックポイントを保存するイテレーション間隔
	CheckpointInterval int `json:"checkpoint_interval"`

	// EvalMaxBatches は1回の評価パスで読むバッチ数の上限 (0 = 全クリップ)
	EvalMaxBatches int `json:"eval_max_batches"`

	// EarlyStoppingRounds は検証精度が改善しないまま許容する評価回数
	// (0 = 早期終了なし)
	EarlyStoppingRounds int `json:"early_stopping_rounds"`

	// ResumeIteration は学習を再開するチェックポイントのイテレーション
	// (0 = 最初から学習する)
	ResumeIteration int `json:"resume_iteration"`

	// Seed はシャッフル、クロップ位置、重み初期化の乱数シード
	Seed int64 `json:"seed"`
}

// NewParams はベンチマーク標準のハイパーパラメータを返す
func NewParams() Params {
	return Params{}.withDefaults()
}

// withDefaults はゼロ値のフィールドをデフォルトで埋めたコピーを返す
func (p Params) withDefaults() Params {
	if p.NumIterations == 0 {
		p.NumIterations = 5000
	}
	if p.BatchSize == 0 {
		p.BatchSize = 32
	}
	if p.CropFrames == 0 {
		p.CropFrames = 64
	}
	if p.LearningRate == 0 {
		p.LearningRate = 1e-3
	}
	if p.Beta1 == 0 {
		p.Beta1 = 0.9
	}
	if p.Beta2 == 0 {
		p.Beta2 = 0.999
	}
	if p.Epsilon == 0 {
		p.Epsilon = 1e-8
	}
	if p.Width == 0 {
		p.Width = 1.0
	}
	if p.EvalInterval == 0 {
		p.EvalInterval = 100
	}
	if p.CheckpointInterval == 0 {
		p.CheckpointInterval = 1000
	}
	if p.Seed == 0 {
		p.Seed = 1234
	}
	return p
}
