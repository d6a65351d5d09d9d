package nn

import (
	"fmt"
	"math"
	"strings"

	"github.com/lattice-ml/lattice/internal/mat"
)

// Activation identifies the nonlinearity applied to a layer's output, or to
// an LSTM layer's gates.
type Activation int

// Supported activations.
const (
	ActNone Activation = iota
	ActSigmoid
	ActReLU
	ActSoftmax
)

// ParseActivation maps a case-insensitive activation name to its Activation.
func ParseActivation(name string) (Activation, error) {
	switch strings.ToLower(name) {
	case "none":
		return ActNone, nil
	case "sigmoid":
		return ActSigmoid, nil
	case "relu":
		return ActReLU, nil
	case "softmax":
		return ActSoftmax, nil
	}
	return 0, fmt.Errorf("invalid activation %q", name)
}

// ActivationFromCode maps a serialized one-character code to its Activation.
func ActivationFromCode(c byte) (Activation, error) {
	switch c {
	case 'n':
		return ActNone, nil
	case 's':
		return ActSigmoid, nil
	case 'r':
		return ActReLU, nil
	case 'S':
		return ActSoftmax, nil
	}
	return 0, fmt.Errorf("invalid activation code %q", string(c))
}

// Code returns the one-character code used in serialized models.
func (a Activation) Code() byte {
	switch a {
	case ActSigmoid:
		return 's'
	case ActReLU:
		return 'r'
	case ActSoftmax:
		return 'S'
	default:
		return 'n'
	}
}

// String returns the activation name accepted by ParseActivation.
func (a Activation) String() string {
	switch a {
	case ActSigmoid:
		return "sigmoid"
	case ActReLU:
		return "relu"
	case ActSoftmax:
		return "softmax"
	default:
		return "none"
	}
}

// Apply applies the activation in place to every row of m.
func (a Activation) Apply(m *mat.Matrix) {
	for i := 0; i < m.Rows; i++ {
		a.ApplyVec(m.Row(i))
	}
}

// ApplyVec applies the activation in place to a single vector.
func (a Activation) ApplyVec(v []float32) {
	switch a {
	case ActSigmoid:
		for i, x := range v {
			v[i] = float32(1.0 / (1.0 + math.Exp(-float64(x))))
		}
	case ActReLU:
		for i, x := range v {
			if x < 0 {
				v[i] = 0
			}
		}
	case ActSoftmax:
		// Shift by the row maximum for numerical stability.
		var m float32
		for _, x := range v {
			if m < x {
				m = x
			}
		}
		var s float32
		for i, x := range v {
			e := float32(math.Exp(float64(x - m)))
			v[i] = e
			s += e
		}
		for i := range v {
			v[i] /= s
		}
	}
}

// MulDerivative multiplies dx element-wise by the activation derivative
// evaluated from the activated output z (dx *= a'(z)).
//
// For ActNone nothing is done. For ActSoftmax nothing is done either:
// applying the softmax Jacobian here degrades convergence in practice, and
// the output layer's gradient is expected to arrive already fused with the
// loss (softmax/cross-entropy).
func (a Activation) MulDerivative(dx, z *mat.Matrix) {
	switch a {
	case ActSigmoid:
		for i, x := range dx.Data {
			v := z.Data[i]
			dx.Data[i] = x * v * (1 - v)
		}
	case ActReLU:
		for i := range dx.Data {
			if z.Data[i] <= 0 {
				dx.Data[i] = 0
			}
		}
	}
}

// GateDerivative returns the derivative factor for a recurrent gate whose
// activated value is z.
//
// For ActNone and ActSoftmax this returns z itself, mirroring how gate
// gradients have always been computed for those (unbounded) gate choices;
// changing it would alter the training trajectory of existing models.
func (a Activation) GateDerivative(z float32) float32 {
	switch a {
	case ActSigmoid:
		return z * (1 - z)
	case ActReLU:
		if z > 0 {
			return 1
		}
		return 0
	}
	return z
}

// dTanh returns the derivative of tanh evaluated at input x.
func dTanh(x float32) float32 {
	t := math.Tanh(float64(x))
	return float32(1 - t*t)
}

// dTanhZ returns the derivative of tanh given its output z = tanh(x).
func dTanhZ(z float32) float32 {
	return 1 - z*z
}

func tanh32(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}
