package nn

import (
	"math"
	"testing"

	"github.com/lattice-ml/lattice/internal/mat"
)

func TestParseActivation(t *testing.T) {
	cases := []struct {
		name string
		want Activation
	}{
		{"none", ActNone},
		{"sigmoid", ActSigmoid},
		{"RELU", ActReLU},
		{"Softmax", ActSoftmax},
	}
	for _, c := range cases {
		got, err := ParseActivation(c.name)
		if err != nil {
			t.Errorf("ParseActivation(%q): %v", c.name, err)
		}
		if got != c.want {
			t.Errorf("ParseActivation(%q) = %v, want %v", c.name, got, c.want)
		}
	}
	if _, err := ParseActivation("tanh"); err == nil {
		t.Error("ParseActivation accepted unknown name")
	}
}

func TestActivationCodeRoundTrip(t *testing.T) {
	for _, a := range []Activation{ActNone, ActSigmoid, ActReLU, ActSoftmax} {
		got, err := ActivationFromCode(a.Code())
		if err != nil {
			t.Fatalf("code %q: %v", a.Code(), err)
		}
		if got != a {
			t.Errorf("round trip of %v through code %q gave %v", a, a.Code(), got)
		}
	}
	if _, err := ActivationFromCode('x'); err == nil {
		t.Error("ActivationFromCode accepted unknown code")
	}
}

func TestSigmoid(t *testing.T) {
	v := []float32{0, 2, -2}
	ActSigmoid.ApplyVec(v)
	want := []float32{0.5, 0.880797, 0.119203}
	for i := range want {
		if math.Abs(float64(v[i]-want[i])) > 1e-5 {
			t.Errorf("sigmoid[%d] = %v, want %v", i, v[i], want[i])
		}
	}
}

func TestReLU(t *testing.T) {
	v := []float32{-1, 0, 2.5}
	ActReLU.ApplyVec(v)
	want := []float32{0, 0, 2.5}
	for i := range want {
		if v[i] != want[i] {
			t.Errorf("relu[%d] = %v, want %v", i, v[i], want[i])
		}
	}
}

func TestSoftmax(t *testing.T) {
	v := []float32{1, 2, 3}
	ActSoftmax.ApplyVec(v)
	var sum float32
	for _, x := range v {
		sum += x
	}
	if math.Abs(float64(sum-1)) > 1e-6 {
		t.Errorf("softmax sums to %v", sum)
	}
	if !(v[2] > v[1] && v[1] > v[0]) {
		t.Errorf("softmax not monotone: %v", v)
	}

	// Large inputs must not overflow thanks to the max shift.
	w := []float32{1000, 1001}
	ActSoftmax.ApplyVec(w)
	if math.IsNaN(float64(w[0])) || math.IsNaN(float64(w[1])) {
		t.Errorf("softmax overflowed: %v", w)
	}
}

func TestMulDerivative(t *testing.T) {
	z := &mat.Matrix{Data: []float32{0.5, 0.8}, Rows: 1, Cols: 2}
	dx := &mat.Matrix{Data: []float32{1, 1}, Rows: 1, Cols: 2}
	ActSigmoid.MulDerivative(dx, z)
	want := []float32{0.25, 0.16}
	for i := range want {
		if math.Abs(float64(dx.Data[i]-want[i])) > 1e-5 {
			t.Errorf("sigmoid derivative[%d] = %v, want %v", i, dx.Data[i], want[i])
		}
	}

	// none and softmax leave the gradient untouched
	for _, a := range []Activation{ActNone, ActSoftmax} {
		dx := &mat.Matrix{Data: []float32{0.3, -0.7}, Rows: 1, Cols: 2}
		a.MulDerivative(dx, z)
		if dx.Data[0] != 0.3 || dx.Data[1] != -0.7 {
			t.Errorf("%v modified the gradient: %v", a, dx.Data)
		}
	}

	zr := &mat.Matrix{Data: []float32{-1, 2}, Rows: 1, Cols: 2}
	dxr := &mat.Matrix{Data: []float32{5, 5}, Rows: 1, Cols: 2}
	ActReLU.MulDerivative(dxr, zr)
	if dxr.Data[0] != 0 || dxr.Data[1] != 5 {
		t.Errorf("relu derivative = %v, want [0 5]", dxr.Data)
	}
}

func TestGateDerivative(t *testing.T) {
	if got := ActSigmoid.GateDerivative(0.5); math.Abs(float64(got-0.25)) > 1e-6 {
		t.Errorf("sigmoid gate derivative = %v, want 0.25", got)
	}
	if got := ActReLU.GateDerivative(2); got != 1 {
		t.Errorf("relu gate derivative of positive = %v, want 1", got)
	}
	if got := ActReLU.GateDerivative(-2); got != 0 {
		t.Errorf("relu gate derivative of negative = %v, want 0", got)
	}
	// none and softmax gates pass the activated value through
	if got := ActNone.GateDerivative(0.7); got != 0.7 {
		t.Errorf("none gate derivative = %v, want 0.7", got)
	}
	if got := ActSoftmax.GateDerivative(0.7); got != 0.7 {
		t.Errorf("softmax gate derivative = %v, want 0.7", got)
	}
}
