package model

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/lattice-ml/lattice/internal/ctc"
	"github.com/lattice-ml/lattice/internal/mat"
	"github.com/lattice-ml/lattice/internal/nn"
	"github.com/lattice-ml/lattice/internal/rng"
)

// Models serialize to a whitespace-separated text format: a MODEL header,
// optional normalization statistics and CTC parameters, then one block per
// layer holding its header, weights and, for a non-final model, its
// gradient and optimizer state. Weight values are written with six
// significant digits, which round-trips the training state to within
// normal float32 noise.

// Write serializes m to w.
func Write(m *Model, w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "MODEL num_layers %d batch_size %d input_dim %d "+
		"add_bias %d output_dim %d loss_func '%c' optimizer '%c' "+
		"update_cnt %d normalize %d final %d\n",
		len(m.layers), m.batchSize, m.inputDim,
		btoi(m.addBias), m.outputDim, m.lossFunc, m.optimizer,
		m.updateCnt, btoi(m.normalize), btoi(m.final))
	if m.normalize {
		writeValues(bw, m.mean)
		writeValues(bw, m.sdev)
	}
	if m.ctc != nil {
		fmt.Fprintf(bw, "CTC T %d L %d blank %d\n",
			m.ctc.MaxSteps(), m.ctc.NumLabels(), m.ctc.Blank())
	}
	for i, l := range m.layers {
		var grads []*mat.Matrix
		if m.grads != nil {
			grads = m.grads[i]
		}
		fmt.Fprintf(bw, "LAYER type '%c' num_grads %d\n",
			layerCode(l), len(grads))
		switch t := l.(type) {
		case *nn.Dense:
			fmt.Fprintf(bw, "DENSE D %d S %d B %d activation '%c'\n",
				t.InputDim(), t.Units(), t.BatchSize(), t.Activation().Code())
			writeMatrix(bw, t.Weights()[0])
		case *nn.LSTM:
			fmt.Fprintf(bw, "LSTM D %d S %d B %d activation '%c' stateful %d\n",
				t.InputDim(), t.Units(), t.BatchSize(),
				t.Activation().Code(), btoi(t.Stateful()))
			for _, wm := range t.Weights() {
				writeMatrix(bw, wm)
			}
			ph, pc := t.CarriedState()
			writeValues(bw, ph)
			writeValues(bw, pc)
		}
		for _, g := range grads {
			writeMatrix(bw, g)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing model: %w", err)
	}
	return nil
}

// Read deserializes a model from r. The returned model is compiled: it can
// predict immediately and, unless it was stored as final, train further.
func Read(r io.Reader) (*Model, error) {
	s := newScanner(r)

	var numLayers, addBias, updateCnt, normalize, final int
	m := &Model{g: rng.New(0)}
	var lossFunc, optimizer byte
	if err := s.header("MODEL",
		field{"num_layers", &numLayers},
		field{"batch_size", &m.batchSize},
		field{"input_dim", &m.inputDim},
		field{"add_bias", &addBias},
		field{"output_dim", &m.outputDim},
	); err != nil {
		return nil, fmt.Errorf("reading model header: %w", err)
	}
	if err := s.charField("loss_func", &lossFunc); err != nil {
		return nil, fmt.Errorf("reading model header: %w", err)
	}
	if err := s.charField("optimizer", &optimizer); err != nil {
		return nil, fmt.Errorf("reading model header: %w", err)
	}
	if err := s.intFields(
		field{"update_cnt", &updateCnt},
		field{"normalize", &normalize},
		field{"final", &final},
	); err != nil {
		return nil, fmt.Errorf("reading model header: %w", err)
	}
	m.addBias = addBias != 0
	m.normalize = normalize != 0
	m.final = final != 0
	m.updateCnt = updateCnt
	m.lossFunc = lossFunc
	m.optimizer = optimizer

	if m.normalize {
		dx := m.inputDim - btoi(!m.addBias)
		m.mean = make([]float32, dx)
		m.sdev = make([]float32, dx)
		if err := s.values(m.mean); err != nil {
			return nil, fmt.Errorf("reading normalization mean: %w", err)
		}
		if err := s.values(m.sdev); err != nil {
			return nil, fmt.Errorf("reading normalization sdev: %w", err)
		}
	}
	if m.lossFunc == LossCTC {
		var t, l, blank int
		if err := s.header("CTC",
			field{"T", &t}, field{"L", &l}, field{"blank", &blank},
		); err != nil {
			return nil, fmt.Errorf("reading ctc header: %w", err)
		}
		m.ctc = ctc.New(t, l, blank)
	}

	m.grads = make([][]*mat.Matrix, numLayers)
	for i := 0; i < numLayers; i++ {
		var numGrads int
		var typ byte
		if err := s.expect("LAYER"); err != nil {
			return nil, fmt.Errorf("reading layer %d header: %w", i, err)
		}
		if err := s.charField("type", &typ); err != nil {
			return nil, fmt.Errorf("reading layer %d header: %w", i, err)
		}
		if err := s.intFields(field{"num_grads", &numGrads}); err != nil {
			return nil, fmt.Errorf("reading layer %d header: %w", i, err)
		}

		var l nn.Layer
		var err error
		switch typ {
		case 'd':
			l, err = readDense(s)
		case 'l':
			l, err = readLSTM(s)
		default:
			err = fmt.Errorf("invalid layer type %q", string(typ))
		}
		if err != nil {
			return nil, fmt.Errorf("reading layer %d: %w", i, err)
		}
		m.layers = append(m.layers, l)

		if numGrads > 0 {
			shapes := l.GradShapes()
			g := make([]*mat.Matrix, numGrads)
			for j := 0; j < numGrads; j++ {
				sh := shapes[j%len(shapes)]
				g[j] = mat.New(sh[0], sh[1])
				if err := s.matrix(g[j]); err != nil {
					return nil, fmt.Errorf("reading layer %d gradients: %w", i, err)
				}
			}
			m.grads[i] = g
		}
	}
	m.compiled = true
	return m, nil
}

// Load reads a model from the named file.
func Load(filename string) (*Model, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loading model: %w", err)
	}
	defer f.Close()
	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("loading model from %s: %w", filename, err)
	}
	return m, nil
}

// Store writes m to the named file, replacing it if it exists.
func Store(m *Model, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("storing model: %w", err)
	}
	if err := Write(m, f); err != nil {
		f.Close()
		return fmt.Errorf("storing model to %s: %w", filename, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("storing model to %s: %w", filename, err)
	}
	return nil
}

func readDense(s *scanner) (*nn.Dense, error) {
	var d, units, b int
	var actCode byte
	if err := s.header("DENSE",
		field{"D", &d}, field{"S", &units}, field{"B", &b},
	); err != nil {
		return nil, err
	}
	if err := s.charField("activation", &actCode); err != nil {
		return nil, err
	}
	act, err := nn.ActivationFromCode(actCode)
	if err != nil {
		return nil, err
	}
	l := nn.RestoreDense(d, units, b, act)
	if err := s.matrix(l.Weights()[0]); err != nil {
		return nil, fmt.Errorf("reading weights: %w", err)
	}
	return l, nil
}

func readLSTM(s *scanner) (*nn.LSTM, error) {
	var d, units, b, stateful int
	var actCode byte
	if err := s.header("LSTM",
		field{"D", &d}, field{"S", &units}, field{"B", &b},
	); err != nil {
		return nil, err
	}
	if err := s.charField("activation", &actCode); err != nil {
		return nil, err
	}
	if err := s.intFields(field{"stateful", &stateful}); err != nil {
		return nil, err
	}
	act, err := nn.ActivationFromCode(actCode)
	if err != nil {
		return nil, err
	}
	l := nn.RestoreLSTM(d, units, b, act, stateful != 0)
	for i, w := range l.Weights() {
		if err := s.matrix(w); err != nil {
			return nil, fmt.Errorf("reading weight matrix %d: %w", i, err)
		}
	}
	ph, pc := l.CarriedState()
	if err := s.values(ph); err != nil {
		return nil, fmt.Errorf("reading hidden state: %w", err)
	}
	if err := s.values(pc); err != nil {
		return nil, fmt.Errorf("reading cell state: %w", err)
	}
	return l, nil
}

func layerCode(l nn.Layer) byte {
	switch l.(type) {
	case *nn.Dense:
		return 'd'
	case *nn.LSTM:
		return 'l'
	}
	panic(fmt.Sprintf("model: unknown layer type %T", l))
}

func writeMatrix(w io.Writer, m *mat.Matrix) {
	for i := 0; i < m.Rows; i++ {
		writeValues(w, m.Row(i))
	}
}

func writeValues(w io.Writer, v []float32) {
	for _, x := range v {
		fmt.Fprintf(w, "%.6g ", x)
	}
	fmt.Fprintln(w)
}

// scanner reads the whitespace-separated tokens of the model format.
// Newlines carry no meaning, so headers and value rows are both consumed
// token by token.
type scanner struct {
	s *bufio.Scanner
}

type field struct {
	name string
	val  *int
}

func newScanner(r io.Reader) *scanner {
	s := bufio.NewScanner(r)
	s.Split(bufio.ScanWords)
	return &scanner{s: s}
}

func (s *scanner) next() (string, error) {
	if !s.s.Scan() {
		if err := s.s.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return s.s.Text(), nil
}

// expect consumes the next token and fails unless it equals tok.
func (s *scanner) expect(tok string) error {
	got, err := s.next()
	if err != nil {
		return err
	}
	if got != tok {
		return fmt.Errorf("expected %q, got %q", tok, got)
	}
	return nil
}

// header consumes a keyword followed by name/integer pairs.
func (s *scanner) header(keyword string, fields ...field) error {
	if err := s.expect(keyword); err != nil {
		return err
	}
	return s.intFields(fields...)
}

func (s *scanner) intFields(fields ...field) error {
	for _, f := range fields {
		if err := s.expect(f.name); err != nil {
			return err
		}
		tok, err := s.next()
		if err != nil {
			return err
		}
		v, err := strconv.Atoi(tok)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
		*f.val = v
	}
	return nil
}

// charField consumes a name followed by a single-quoted character.
func (s *scanner) charField(name string, val *byte) error {
	if err := s.expect(name); err != nil {
		return err
	}
	tok, err := s.next()
	if err != nil {
		return err
	}
	if len(tok) != 3 || tok[0] != '\'' || tok[2] != '\'' {
		return fmt.Errorf("field %s: expected quoted character, got %q", name, tok)
	}
	*val = tok[1]
	return nil
}

// values fills v with the next len(v) numeric tokens.
func (s *scanner) values(v []float32) error {
	for i := range v {
		tok, err := s.next()
		if err != nil {
			return err
		}
		x, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
		v[i] = float32(x)
	}
	return nil
}

func (s *scanner) matrix(m *mat.Matrix) error {
	return s.values(m.Data)
}
