package classifier

import (
	"fmt"

	"github.com/Veraticus/ledger-sieve/internal/common"
)

// ClassifierSpec is the serialized form of a fitted classifier.
type ClassifierSpec struct {
	Kind           string      `json:"kind"`
	Classes        []int       `json:"classes"`
	Coef           [][]float64 `json:"coef"`
	Intercept      []float64   `json:"intercept"`
	FeatureLogProb [][]float64 `json:"feature_log_prob"`
	ClassLogPrior  []float64   `json:"class_log_prior"`
}

// LinearClassifier scores each row as w·x + b. With a single weight row the
// second class wins when the score is positive; with one row per class the
// highest score wins.
type LinearClassifier struct {
	classes   []int
	coef      [][]float64
	intercept []float64
	width     int
}

// NewLinearClassifier builds a linear model from its serialized form.
func NewLinearClassifier(spec ClassifierSpec) (*LinearClassifier, error) {
	if len(spec.Classes) < 2 {
		return nil, fmt.Errorf("%w: need at least two classes, got %d", common.ErrArtifact, len(spec.Classes))
	}
	if len(spec.Coef) == 0 {
		return nil, fmt.Errorf("%w: no coefficients", common.ErrArtifact)
	}

	binary := len(spec.Coef) == 1
	if !binary && len(spec.Coef) != len(spec.Classes) {
		return nil, fmt.Errorf("%w: %d coefficient rows for %d classes", common.ErrArtifact, len(spec.Coef), len(spec.Classes))
	}
	if binary && len(spec.Classes) != 2 {
		return nil, fmt.Errorf("%w: single coefficient row needs exactly two classes", common.ErrArtifact)
	}
	if len(spec.Intercept) != len(spec.Coef) {
		return nil, fmt.Errorf("%w: %d intercepts for %d coefficient rows", common.ErrArtifact, len(spec.Intercept), len(spec.Coef))
	}

	width := len(spec.Coef[0])
	for i, row := range spec.Coef {
		if len(row) != width {
			return nil, fmt.Errorf("%w: coefficient row %d has %d weights, want %d", common.ErrArtifact, i, len(row), width)
		}
	}

	return &LinearClassifier{
		classes:   spec.Classes,
		coef:      spec.Coef,
		intercept: spec.Intercept,
		width:     width,
	}, nil
}

// Width returns the number of features the model expects.
func (c *LinearClassifier) Width() int {
	return c.width
}

// Predict labels each feature vector.
func (c *LinearClassifier) Predict(features []FeatureVector) ([]int, error) {
	labels := make([]int, len(features))
	for i, fv := range features {
		if fv.Width != c.width {
			return nil, fmt.Errorf("%w: row %d has %d features, model expects %d", common.ErrClassificationFailed, i, fv.Width, c.width)
		}

		if len(c.coef) == 1 {
			if fv.Dot(c.coef[0])+c.intercept[0] > 0 {
				labels[i] = c.classes[1]
			} else {
				labels[i] = c.classes[0]
			}
			continue
		}

		scores := make([]float64, len(c.coef))
		for k, row := range c.coef {
			scores[k] = fv.Dot(row) + c.intercept[k]
		}
		labels[i] = c.classes[argmax(scores)]
	}
	return labels, nil
}

// argmax returns the first index holding the largest value.
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
