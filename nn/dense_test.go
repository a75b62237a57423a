package nn

import (
	"math"
	"math/rand"
	"testing"
)

func TestDenseForwardKnown(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := NewDense(3, 2, rng)
	copy(d.weight.Data, []float64{
		1.0, 0.0, 0.0,
		0.0, 1.0, 0.0,
	})
	copy(d.bias.Data, []float64{0.5, -0.5})

	x := NewTensor(1, 3, 1, 1)
	x.Data = []float64{1.0, 2.0, 3.0}
	out, err := d.Forward(x, true)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if out.C != 2 {
		t.Fatalf("out.C = %d, want 2", out.C)
	}
	if math.Abs(out.Data[0]-1.5) > 1e-12 || math.Abs(out.Data[1]-1.5) > 1e-12 {
		t.Errorf("out = %v, want [1.5 1.5]", out.Data)
	}
}

func TestDenseFlattensInput(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	// (C,H,W) = (2,2,2) の入力を平坦化して受け取る
	d := NewDense(8, 4, rng)
	x := randomTensor(rng, 3, 2, 2, 2)

	out, err := d.Forward(x, true)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if out.N != 3 || out.C != 4 || out.H != 1 || out.W != 1 {
		t.Fatalf("output shape = %v, want [3 4 1 1]", shapeOf(out))
	}

	grad := randomTensor(rng, 3, 4, 1, 1)
	dx, err := d.Backward(grad)
	if err != nil {
		t.Fatalf("Backward() error = %v", err)
	}
	if !dx.SameShape(x) {
		t.Fatalf("dx shape = %v, want %v", shapeOf(dx), shapeOf(x))
	}
}

func TestDenseGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	d := NewDense(6, 4, rng)
	x := randomTensor(rng, 3, 6, 1, 1)

	out, err := d.Forward(x, true)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	coef := make([]float64, out.Len())
	for i := range coef {
		coef[i] = rng.Float64()*2.0 - 1.0
	}

	gradIn, err := NewTensorFrom(append([]float64(nil), coef...), out.N, out.C, out.H, out.W)
	if err != nil {
		t.Fatalf("NewTensorFrom() error = %v", err)
	}
	dx, err := d.Backward(gradIn)
	if err != nil {
		t.Fatalf("Backward() error = %v", err)
	}

	loss := func() float64 {
		o, ferr := d.Forward(x, true)
		if ferr != nil {
			t.Fatalf("Forward() error = %v", ferr)
		}
		return weightedSum(o, coef)
	}

	for i := range d.weight.Data {
		num := numericGrad(t, &d.weight.Data[i], loss)
		checkGrad(t, "weight", i, d.weight.Grad[i], num)
	}
	for i := range d.bias.Data {
		num := numericGrad(t, &d.bias.Data[i], loss)
		checkGrad(t, "bias", i, d.bias.Grad[i], num)
	}
	for i := range x.Data {
		num := numericGrad(t, &x.Data[i], loss)
		checkGrad(t, "x", i, dx.Data[i], num)
	}
}

func TestDenseDimensionMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	d := NewDense(8, 2, rng)
	if _, err := d.Forward(NewTensor(1, 3, 1, 1), true); err == nil {
		t.Error("Forward() error = nil, want error")
	}
}
