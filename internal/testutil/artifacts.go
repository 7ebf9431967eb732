package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/Veraticus/ledger-sieve/internal/classifier"
)

// DefaultKeywords are the tokens ToyArtifacts treats as positive when no
// keywords are given.
var DefaultKeywords = []string{"refund", "reimbursement"}

// ToyArtifacts returns a count vectorizer over a small fixed vocabulary and
// a binary linear classifier that labels a row 1 exactly when its feature
// text contains one of the keywords.
func ToyArtifacts(t *testing.T, keywords ...string) *classifier.Artifacts {
	t.Helper()

	vspec, cspec := ToySpecs(keywords...)
	vectorizer, err := classifier.NewCountVectorizer(vspec)
	if err != nil {
		t.Fatalf("failed to build toy vectorizer: %v", err)
	}
	clf, err := classifier.NewClassifier(cspec)
	if err != nil {
		t.Fatalf("failed to build toy classifier: %v", err)
	}
	artifacts, err := classifier.NewArtifacts(vectorizer, clf)
	if err != nil {
		t.Fatalf("failed to pair toy artifacts: %v", err)
	}
	return artifacts
}

// ToySpecs returns the serialized forms behind ToyArtifacts.
func ToySpecs(keywords ...string) (classifier.VectorizerSpec, classifier.ClassifierSpec) {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	vocab := []string{"payment", "invoice", "transfer", "fee"}
	vocab = append(vocab, keywords...)
	sort.Strings(vocab)

	positive := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		positive[k] = true
	}

	vocabulary := make(map[string]int, len(vocab))
	weights := make([]float64, 0, len(vocab))
	for _, term := range vocab {
		if _, dup := vocabulary[term]; dup {
			continue
		}
		vocabulary[term] = len(weights)
		if positive[term] {
			weights = append(weights, 1)
		} else {
			weights = append(weights, 0)
		}
	}

	return classifier.VectorizerSpec{Vocabulary: vocabulary},
		classifier.ClassifierSpec{
			Kind:      "linear",
			Classes:   []int{0, 1},
			Coef:      [][]float64{weights},
			Intercept: []float64{-0.5},
		}
}

// WriteToyArtifacts writes ToySpecs as JSON files into dir and returns the
// vectorizer and classifier paths.
func WriteToyArtifacts(t *testing.T, dir string, keywords ...string) (string, string) {
	t.Helper()

	vspec, cspec := ToySpecs(keywords...)
	vecPath := filepath.Join(dir, "vectorizer.json")
	clfPath := filepath.Join(dir, "model.json")
	writeJSON(t, vecPath, vspec)
	writeJSON(t, clfPath, cspec)
	return vecPath, clfPath
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
