package classifier

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/Veraticus/ledger-sieve/internal/common"
)

// Artifacts holds the loaded vectorizer and classifier. It is built once at
// startup and only read afterwards.
type Artifacts struct {
	Vectorizer Vectorizer
	Classifier Classifier
}

// NewArtifacts pairs a vectorizer with a classifier, checking that the
// classifier consumes exactly the features the vectorizer produces.
func NewArtifacts(v Vectorizer, c Classifier) (*Artifacts, error) {
	if v == nil || c == nil {
		return nil, fmt.Errorf("%w: vectorizer and classifier are both required", common.ErrArtifact)
	}
	if v.Width() != c.Width() {
		return nil, fmt.Errorf("%w: vectorizer produces %d features but classifier expects %d", common.ErrArtifact, v.Width(), c.Width())
	}
	return &Artifacts{Vectorizer: v, Classifier: c}, nil
}

// LoadArtifacts reads both artifact files from disk.
func LoadArtifacts(vectorizerPath, classifierPath string) (*Artifacts, error) {
	var vspec VectorizerSpec
	if err := readJSON(vectorizerPath, &vspec); err != nil {
		return nil, fmt.Errorf("failed to read vectorizer: %w", err)
	}
	vectorizer, err := NewCountVectorizer(vspec)
	if err != nil {
		return nil, fmt.Errorf("failed to build vectorizer from %s: %w", vectorizerPath, err)
	}

	var cspec ClassifierSpec
	if err := readJSON(classifierPath, &cspec); err != nil {
		return nil, fmt.Errorf("failed to read classifier: %w", err)
	}
	clf, err := NewClassifier(cspec)
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier from %s: %w", classifierPath, err)
	}

	artifacts, err := NewArtifacts(vectorizer, clf)
	if err != nil {
		return nil, err
	}

	slog.Info("Loaded model artifacts",
		"vectorizer", vectorizerPath,
		"classifier", classifierPath,
		"classifier_kind", cspec.Kind,
		"features", vectorizer.Width())

	return artifacts, nil
}

// NewClassifier builds the classifier named by spec.Kind.
func NewClassifier(spec ClassifierSpec) (Classifier, error) {
	switch spec.Kind {
	case "", "linear", "logistic_regression", "linear_svc":
		clf, err := NewLinearClassifier(spec)
		if err != nil {
			return nil, err
		}
		return clf, nil
	case "multinomial_nb":
		clf, err := NewNaiveBayes(spec)
		if err != nil {
			return nil, err
		}
		return clf, nil
	default:
		return nil, fmt.Errorf("%w: unknown classifier kind %q", common.ErrArtifact, spec.Kind)
	}
}

func readJSON(path string, into any) error {
	data, err := os.ReadFile(path) //nolint:gosec // artifact paths come from operator config
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrArtifact, path, err)
	}
	return nil
}
