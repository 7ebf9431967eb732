package classifier

// FeatureVector is a sparse row of the feature matrix. Indices are strictly
// increasing and every index is below Width.
type FeatureVector struct {
	Indices []int
	Values  []float64
	Width   int
}

// Dot returns the inner product of the vector with a dense weight row.
func (f FeatureVector) Dot(weights []float64) float64 {
	var sum float64
	for i, idx := range f.Indices {
		sum += weights[idx] * f.Values[i]
	}
	return sum
}

// Vectorizer maps text to fixed-width feature vectors. Tokens outside the
// fitted vocabulary are ignored.
type Vectorizer interface {
	Transform(texts []string) ([]FeatureVector, error)
	Width() int
}

// Classifier maps feature vectors to labels, one per input, in input order.
type Classifier interface {
	Predict(features []FeatureVector) ([]int, error)
	Width() int
}
