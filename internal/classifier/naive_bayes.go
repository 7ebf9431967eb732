package classifier

import (
	"fmt"

	"github.com/Veraticus/ledger-sieve/internal/common"
)

// NaiveBayes is a multinomial naive Bayes model. The joint log likelihood of
// a class is its log prior plus the count-weighted log probabilities of the
// row's features.
type NaiveBayes struct {
	classes        []int
	featureLogProb [][]float64
	classLogPrior  []float64
	width          int
}

// NewNaiveBayes builds a multinomial naive Bayes model from its serialized form.
func NewNaiveBayes(spec ClassifierSpec) (*NaiveBayes, error) {
	if len(spec.Classes) < 2 {
		return nil, fmt.Errorf("%w: need at least two classes, got %d", common.ErrArtifact, len(spec.Classes))
	}
	if len(spec.FeatureLogProb) != len(spec.Classes) {
		return nil, fmt.Errorf("%w: %d feature_log_prob rows for %d classes", common.ErrArtifact, len(spec.FeatureLogProb), len(spec.Classes))
	}
	if len(spec.ClassLogPrior) != len(spec.Classes) {
		return nil, fmt.Errorf("%w: %d class priors for %d classes", common.ErrArtifact, len(spec.ClassLogPrior), len(spec.Classes))
	}

	width := len(spec.FeatureLogProb[0])
	for i, row := range spec.FeatureLogProb {
		if len(row) != width {
			return nil, fmt.Errorf("%w: feature_log_prob row %d has %d entries, want %d", common.ErrArtifact, i, len(row), width)
		}
	}

	return &NaiveBayes{
		classes:        spec.Classes,
		featureLogProb: spec.FeatureLogProb,
		classLogPrior:  spec.ClassLogPrior,
		width:          width,
	}, nil
}

// Width returns the number of features the model expects.
func (nb *NaiveBayes) Width() int {
	return nb.width
}

// Predict labels each feature vector with its most likely class.
func (nb *NaiveBayes) Predict(features []FeatureVector) ([]int, error) {
	labels := make([]int, len(features))
	scores := make([]float64, len(nb.classes))
	for i, fv := range features {
		if fv.Width != nb.width {
			return nil, fmt.Errorf("%w: row %d has %d features, model expects %d", common.ErrClassificationFailed, i, fv.Width, nb.width)
		}
		for k := range nb.classes {
			scores[k] = nb.classLogPrior[k] + fv.Dot(nb.featureLogProb[k])
		}
		labels[i] = nb.classes[argmax(scores)]
	}
	return labels, nil
}
