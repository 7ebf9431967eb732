package classifier

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Veraticus/ledger-sieve/internal/common"
)

// defaultTokenPattern selects runs of two or more word characters.
const defaultTokenPattern = `[\p{L}\p{M}\p{N}_]{2,}`

// sklearnTokenPattern is scikit-learn's default token_pattern without its
// (?u) flag. RE2 rejects (?u) and treats \w and \b as ASCII only, so this
// pattern is replaced by defaultTokenPattern, which matches the same tokens.
const sklearnTokenPattern = `\b\w\w+\b`

// tokenPattern translates an exported token_pattern into RE2 syntax.
func tokenPattern(raw string) string {
	pattern := strings.TrimPrefix(raw, "(?u)")
	if pattern == "" || pattern == sklearnTokenPattern {
		return defaultTokenPattern
	}
	return pattern
}

// CountVectorizer turns text into token counts over a frozen vocabulary,
// optionally reweighted by inverse document frequency.
type CountVectorizer struct {
	vocabulary map[string]int
	stopWords  map[string]struct{}
	tokens     *regexp.Regexp
	idf        []float64
	norm       string
	width      int
	ngramMin   int
	ngramMax   int
	lowercase  bool
	binary     bool
}

// VectorizerSpec is the serialized form of a fitted vectorizer.
type VectorizerSpec struct {
	Vocabulary   map[string]int `json:"vocabulary"`
	Kind         string         `json:"kind"`
	TokenPattern string         `json:"token_pattern"`
	Norm         string         `json:"norm"`
	StopWords    []string       `json:"stop_words"`
	IDF          []float64      `json:"idf"`
	NgramRange   [2]int         `json:"ngram_range"`
	Lowercase    *bool          `json:"lowercase"`
	Binary       bool           `json:"binary"`
}

// NewCountVectorizer builds a vectorizer from its serialized form.
func NewCountVectorizer(spec VectorizerSpec) (*CountVectorizer, error) {
	if len(spec.Vocabulary) == 0 {
		return nil, fmt.Errorf("%w: empty vocabulary", common.ErrArtifact)
	}

	width := 0
	seen := make(map[int]string, len(spec.Vocabulary))
	for term, idx := range spec.Vocabulary {
		if idx < 0 {
			return nil, fmt.Errorf("%w: negative index for term %q", common.ErrArtifact, term)
		}
		if other, dup := seen[idx]; dup {
			return nil, fmt.Errorf("%w: terms %q and %q share index %d", common.ErrArtifact, other, term, idx)
		}
		seen[idx] = term
		if idx+1 > width {
			width = idx + 1
		}
	}

	re, err := regexp.Compile(tokenPattern(spec.TokenPattern))
	if err != nil {
		return nil, fmt.Errorf("%w: token pattern: %v", common.ErrArtifact, err)
	}

	ngramMin, ngramMax := spec.NgramRange[0], spec.NgramRange[1]
	if ngramMin == 0 && ngramMax == 0 {
		ngramMin, ngramMax = 1, 1
	}
	if ngramMin < 1 || ngramMax < ngramMin {
		return nil, fmt.Errorf("%w: ngram range [%d, %d]", common.ErrArtifact, ngramMin, ngramMax)
	}

	v := &CountVectorizer{
		vocabulary: spec.Vocabulary,
		tokens:     re,
		width:      width,
		ngramMin:   ngramMin,
		ngramMax:   ngramMax,
		lowercase:  spec.Lowercase == nil || *spec.Lowercase,
		binary:     spec.Binary,
		stopWords:  make(map[string]struct{}, len(spec.StopWords)),
	}
	for _, w := range spec.StopWords {
		v.stopWords[w] = struct{}{}
	}

	switch spec.Kind {
	case "", "count":
	case "tfidf":
		if len(spec.IDF) != width {
			return nil, fmt.Errorf("%w: idf has %d weights for %d features", common.ErrArtifact, len(spec.IDF), width)
		}
		v.idf = spec.IDF
		v.norm = spec.Norm
		if v.norm != "" && v.norm != "l1" && v.norm != "l2" {
			return nil, fmt.Errorf("%w: unknown norm %q", common.ErrArtifact, v.norm)
		}
	default:
		return nil, fmt.Errorf("%w: unknown vectorizer kind %q", common.ErrArtifact, spec.Kind)
	}

	return v, nil
}

// Width returns the number of features produced per text.
func (v *CountVectorizer) Width() int {
	return v.width
}

// Transform vectorizes each text independently.
func (v *CountVectorizer) Transform(texts []string) ([]FeatureVector, error) {
	out := make([]FeatureVector, len(texts))
	for i, text := range texts {
		out[i] = v.transformOne(text)
	}
	return out, nil
}

func (v *CountVectorizer) transformOne(text string) FeatureVector {
	counts := make(map[int]float64)
	for _, term := range v.analyze(text) {
		if idx, ok := v.vocabulary[term]; ok {
			counts[idx]++
		}
	}

	fv := FeatureVector{
		Width:   v.width,
		Indices: make([]int, 0, len(counts)),
	}
	for idx := range counts {
		fv.Indices = append(fv.Indices, idx)
	}
	sort.Ints(fv.Indices)

	fv.Values = make([]float64, len(fv.Indices))
	for i, idx := range fv.Indices {
		value := counts[idx]
		if v.binary {
			value = 1
		}
		if v.idf != nil {
			value *= v.idf[idx]
		}
		fv.Values[i] = value
	}

	if v.idf != nil {
		normalize(fv.Values, v.norm)
	}

	return fv
}

// analyze splits text into the terms looked up in the vocabulary.
func (v *CountVectorizer) analyze(text string) []string {
	if v.lowercase {
		text = strings.ToLower(text)
	}

	raw := v.tokens.FindAllString(text, -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if _, stop := v.stopWords[tok]; !stop {
			tokens = append(tokens, tok)
		}
	}

	if v.ngramMin == 1 && v.ngramMax == 1 {
		return tokens
	}

	var terms []string
	for n := v.ngramMin; n <= v.ngramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

func normalize(values []float64, norm string) {
	var total float64
	switch norm {
	case "l1":
		for _, v := range values {
			total += math.Abs(v)
		}
	case "l2":
		for _, v := range values {
			total += v * v
		}
		total = math.Sqrt(total)
	default:
		return
	}
	if total == 0 {
		return
	}
	for i := range values {
		values[i] /= total
	}
}
