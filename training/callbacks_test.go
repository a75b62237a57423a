package training

import (
	"strings"
	"testing"
	"time"

	"github.com/soundscape-ml/ascgo/nn"
	ascErrors "github.com/soundscape-ml/ascgo/pkg/errors"
)

func TestRecordEvaluation(t *testing.T) {
	var history map[string][]float64
	cb := RecordEvaluation(&history)

	env := &CallbackEnv{Iteration: 1, EvalResults: map[string]float64{"loss": 0.5}}
	if err := cb(env); err != nil {
		t.Fatalf("callback error = %v", err)
	}
	env.EvalResults = map[string]float64{"loss": 0.4, "validate_accuracy": 0.8}
	if err := cb(env); err != nil {
		t.Fatalf("callback error = %v", err)
	}

	if got := history["loss"]; len(got) != 2 || got[0] != 0.5 || got[1] != 0.4 {
		t.Errorf("history[loss] = %v, want [0.5 0.4]", got)
	}
	if got := history["validate_accuracy"]; len(got) != 1 || got[0] != 0.8 {
		t.Errorf("history[validate_accuracy] = %v, want [0.8]", got)
	}
}

func TestEarlyStoppingCallback(t *testing.T) {
	cb := EarlyStoppingCallback(2, "validate_accuracy", false)

	steps := []struct {
		value    float64
		wantStop bool
	}{
		{0.50, false}, // 初回は常に改善
		{0.60, false},
		{0.55, false}, // 改善なし1回目
		{0.58, true},  // 改善なし2回目で停止
	}
	env := &CallbackEnv{}
	for i, s := range steps {
		env.Iteration = i + 1
		env.EvalResults = map[string]float64{"validate_accuracy": s.value}
		if err := cb(env); err != nil {
			t.Fatalf("step %d: callback error = %v", i, err)
		}
		if env.StopTraining != s.wantStop {
			t.Fatalf("step %d: StopTraining = %v, want %v", i, env.StopTraining, s.wantStop)
		}
	}
}

func TestEarlyStoppingCallbackIgnoresMissingMetric(t *testing.T) {
	cb := EarlyStoppingCallback(1, "validate_accuracy", false)

	env := &CallbackEnv{Iteration: 1, EvalResults: map[string]float64{"loss": 1.0}}
	for i := 0; i < 5; i++ {
		if err := cb(env); err != nil {
			t.Fatalf("callback error = %v", err)
		}
	}
	if env.StopTraining {
		t.Error("StopTraining = true, want false when the metric is absent")
	}
}

func TestEarlyStoppingCallbackMinimize(t *testing.T) {
	cb := EarlyStoppingCallback(1, "validate_loss", true)

	env := &CallbackEnv{}
	values := []float64{1.0, 0.5, 0.7}
	for i, v := range values {
		env.Iteration = i + 1
		env.EvalResults = map[string]float64{"validate_loss": v}
		if err := cb(env); err != nil {
			t.Fatalf("callback error = %v", err)
		}
	}
	if !env.StopTraining {
		t.Error("StopTraining = false, want true after loss stopped decreasing")
	}
}

func TestModelCheckpoint(t *testing.T) {
	var saved []int
	cb := ModelCheckpoint(func(iteration int) error {
		saved = append(saved, iteration)
		return nil
	}, 3)

	env := &CallbackEnv{}
	for it := 1; it <= 7; it++ {
		env.Iteration = it
		if err := cb(env); err != nil {
			t.Fatalf("iteration %d: callback error = %v", it, err)
		}
	}

	if len(saved) != 2 || saved[0] != 3 || saved[1] != 6 {
		t.Errorf("saved iterations = %v, want [3 6]", saved)
	}
}

func TestModelCheckpointError(t *testing.T) {
	cb := ModelCheckpoint(func(iteration int) error {
		return ascErrors.Newf("disk full")
	}, 1)

	env := &CallbackEnv{Iteration: 1}
	err := cb(env)
	if err == nil {
		t.Fatal("expected error from failing save")
	}
	if !strings.Contains(err.Error(), "failed to save checkpoint") {
		t.Errorf("error = %v, want checkpoint failure message", err)
	}
}

func TestLearningRateSchedule(t *testing.T) {
	opt := nn.NewAdam(nn.AdamConfig{LearningRate: 1.0})
	cb := LearningRateSchedule(opt, 0.5, 2)

	want := []float64{1.0, 0.5, 0.5, 0.25}
	env := &CallbackEnv{}
	for it := 1; it <= 4; it++ {
		env.Iteration = it
		if err := cb(env); err != nil {
			t.Fatalf("iteration %d: callback error = %v", it, err)
		}
		if got := opt.Config().LearningRate; got != want[it-1] {
			t.Errorf("iteration %d: lr = %g, want %g", it, got, want[it-1])
		}
	}
}

func TestTimeLimit(t *testing.T) {
	cb := TimeLimit(time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	env := &CallbackEnv{Iteration: 1}
	if err := cb(env); err != nil {
		t.Fatalf("callback error = %v", err)
	}
	if !env.StopTraining {
		t.Error("StopTraining = false, want true after the limit passed")
	}
}

func TestCallbackList(t *testing.T) {
	var calls []string
	cl := NewCallbackList(
		func(env *CallbackEnv) error {
			calls = append(calls, "first")
			return nil
		},
		func(env *CallbackEnv) error {
			calls = append(calls, "second")
			return nil
		},
	)

	if err := cl.BeforeIteration(1, nil); err != nil {
		t.Fatalf("BeforeIteration error = %v", err)
	}
	if err := cl.AfterIteration(1, nil, map[string]float64{"loss": 1.0}); err != nil {
		t.Fatalf("AfterIteration error = %v", err)
	}

	want := []string{"first", "second", "first", "second"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, calls[i], want[i])
		}
	}
	if cl.ShouldStop() {
		t.Error("ShouldStop() = true, want false")
	}
}

func TestCallbackListStopSkipsRemaining(t *testing.T) {
	var calls int
	cl := NewCallbackList(
		func(env *CallbackEnv) error {
			env.StopTraining = true
			return nil
		},
		func(env *CallbackEnv) error {
			calls++
			return nil
		},
	)

	if err := cl.BeforeIteration(1, nil); err != nil {
		t.Fatalf("BeforeIteration error = %v", err)
	}
	if calls != 0 {
		t.Errorf("second callback ran %d times, want 0 after stop", calls)
	}
	if !cl.ShouldStop() {
		t.Error("ShouldStop() = false, want true")
	}
}

func TestCallbackListAppend(t *testing.T) {
	var calls int
	cl := NewCallbackList()
	cl.Append(func(env *CallbackEnv) error {
		calls++
		return nil
	})

	if err := cl.AfterIteration(1, nil, nil); err != nil {
		t.Fatalf("AfterIteration error = %v", err)
	}
	if calls != 1 {
		t.Errorf("appended callback ran %d times, want 1", calls)
	}
}
