// Package log defines standard attribute keys for acoustic scene classification
// pipeline operations.
//
// This file contains predefined attribute keys that provide consistency across
// all logging operations in ascgo. Using these standard keys enables better
// log analysis, monitoring, and debugging of training and extraction workflows.
//
// The attributes are organized into categories:
//   - Model and Operation Context
//   - Dataset and Audio Characteristics
//   - Performance Metrics
//   - Error Context
//
// These keys follow a hierarchical naming convention (e.g., "model.name",
// "data.samples") to enable structured log analysis and filtering.

package log

// Model and Operation Context
// These attributes identify the model type, instance, and operation being performed.
const (
	// ModelNameKey identifies the type of model.
	// Examples: "SceneClassifier", "StandardScaler"
	ModelNameKey = "model.name"

	// RunIDKey provides a unique identifier for a specific training run.
	// Examples: UUID strings
	RunIDKey = "run.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "extract", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is performing the operation.
	// Examples: "features", "training", "inference"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the pipeline lifecycle.
	// Examples: "training", "inference", "validation", "extraction"
	PhaseKey = "ml.phase"
)

// Dataset and Audio Characteristics
// These attributes describe the corpus slice and audio being processed.
const (
	// SubtaskKey identifies the challenge subtask being run.
	// Values: "a" (matched device), "b" (mismatched devices), "c" (open set)
	SubtaskKey = "scene.subtask"

	// DeviceKey identifies the recording device of a clip or evaluation slice.
	// Values: "a", "b", "c"
	DeviceKey = "scene.device"

	// SceneLabelKey records a scene class label.
	// Examples: "airport", "metro_station", "unknown"
	SceneLabelKey = "scene.label"

	// FoldKey indicates the cross-validation fold in use.
	FoldKey = "data.fold"

	// SplitKey indicates the dataset split being processed.
	// Examples: "train", "validate", "test"
	SplitKey = "data.split"

	// SamplesKey indicates the number of samples (clips or rows) being processed.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the feature dimensionality (mel bins).
	FeaturesKey = "data.features"

	// FramesKey indicates the number of spectrogram frames per clip.
	FramesKey = "data.frames"

	// BatchSizeKey indicates the size of processing batches.
	BatchSizeKey = "data.batch_size"

	// ClipKey records the audio file name of the clip being processed.
	ClipKey = "audio.clip"

	// SampleRateKey records the audio sample rate in Hz.
	SampleRateKey = "audio.sample_rate"
)

// Performance Metrics
// These attributes capture timing, accuracy, and resource usage information.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// DurationSecondsKey records the execution time in seconds for longer operations.
	// Useful for training operations that take minutes or hours.
	DurationSecondsKey = "perf.duration_seconds"

	// AccuracyKey records classification accuracy for evaluation operations.
	// Range [0.0, 1.0].
	AccuracyKey = "metrics.accuracy"

	// LossKey records loss value during training or evaluation.
	LossKey = "metrics.loss"

	// IterationKey records the current iteration number during training.
	IterationKey = "training.iteration"

	// GradNormKey records the gradient L2 norm before clipping.
	GradNormKey = "training.grad_norm"
)

// Error and Warning Context
// These attributes provide additional context for error and warning messages.
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	// Examples: "DIMENSION_MISMATCH", "NOT_FITTED", "CACHE_STALE"
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	// Examples: "ValidationError", "CacheMismatchError", "DataError"
	ErrorTypeKey = "error.type"

	// SuggestionKey provides helpful suggestions for resolving issues.
	// Examples: "Re-run extract-features", "Check manifest path"
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and Configuration
// These attributes capture model configuration for reproducibility.
const (
	// LearningRateKey records the learning rate for gradient-based training.
	LearningRateKey = "hyperparams.learning_rate"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// WorkersKey records the number of parallel workers in use.
	WorkersKey = "config.workers"
)

// Standard attribute value constants for common operations.
// Using these constants ensures consistency across the codebase.
const (
	// Standard operations
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationExtract   = "extract"
	OperationScore     = "score"

	// Standard phases
	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"
	PhaseExtraction = "extraction"

	// Standard error codes
	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
	ErrorCacheStale        = "CACHE_STALE"
)
