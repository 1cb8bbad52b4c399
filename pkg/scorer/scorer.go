// Package scorer evaluates trained classifiers against row inputs.
//
// Training happens elsewhere; this package only applies a model whose
// parameters were exported to a JSON file:
//
//	{
//	  "name": "classifier",
//	  "inputs": ["B_PT", "log(B_IPCHI2_OWNPV)", "K_PT"],
//	  "weights": [0.0004, -0.8, 0.0002],
//	  "bias": -1.5,
//	  "logistic": true
//	}
//
// Inputs are formulas evaluated by the caller, in order.
package scorer

import (
	"math"
	"os"

	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/json"
)

// Scorer turns a vector of input values into a single score.
type Scorer interface {
	// Name identifies the model in logs and output columns.
	Name() string
	// Inputs returns the formulas whose values Score expects, in order.
	Inputs() []string
	Score(inputs []float64) (float64, error)
}

// Linear is a weighted sum of inputs plus a bias, optionally passed through
// the logistic function.
type Linear struct {
	ModelName string    `json:"name"`
	Features  []string  `json:"inputs"`
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	Logistic  bool      `json:"logistic"`
}

var _ Scorer = (*Linear)(nil)

// LoadLinear reads a Linear model from a JSON file.
func LoadLinear(path string) (*Linear, error) {
	f, err := os.Open(path) //nolint:gosec // G304: model path comes from the command line
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot open model").WithDetail("path", path)
	}
	defer f.Close()

	var m Linear
	if err := json.Decode(f, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "cannot parse model").WithDetail("path", path)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that there is one weight per input.
func (m *Linear) Validate() error {
	if len(m.Features) == 0 {
		return errors.New(errors.ErrorTypeConfig, "model has no inputs")
	}
	if len(m.Weights) != len(m.Features) {
		return errors.Newf(errors.ErrorTypeConfig, "model has %d inputs but %d weights",
			len(m.Features), len(m.Weights))
	}
	return nil
}

func (m *Linear) Name() string {
	if m.ModelName == "" {
		return "score"
	}
	return m.ModelName
}

func (m *Linear) Inputs() []string { return append([]string(nil), m.Features...) }

func (m *Linear) Score(inputs []float64) (float64, error) {
	if len(inputs) != len(m.Weights) {
		return 0, errors.Newf(errors.ErrorTypeOutOfRange, "model %s takes %d inputs, got %d",
			m.Name(), len(m.Weights), len(inputs))
	}
	s := m.Bias
	for i, x := range inputs {
		s += m.Weights[i] * x
	}
	if m.Logistic {
		s = 1 / (1 + math.Exp(-s))
	}
	return s, nil
}
