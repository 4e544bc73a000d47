package similarity

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// vector is a sparse, L2-normalised term-weight vector. terms is sorted
// ascending so that dot products are summed in a fixed order.
type vector struct {
	terms   []int
	weights []float64
}

func (v vector) dot(other vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.terms) && j < len(other.terms) {
		switch {
		case v.terms[i] == other.terms[j]:
			sum += v.weights[i] * other.weights[j]
			i++
			j++
		case v.terms[i] < other.terms[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Index is a fitted TF-IDF model over a fixed, ordered corpus. The weighting
// follows the common defaults: lower-cased word tokens of two or more
// characters, raw term counts, smoothed idf ln((1+n)/(1+df))+1 and L2
// normalisation. Document i of the index is text i of the corpus.
type Index struct {
	vocabulary map[string]int
	idf        []float64
	docs       []vector
}

// Build fits an index over texts. It is deterministic and has no side effects.
func Build(texts []string) *Index {
	tokenized := make([][]string, len(texts))
	df := make(map[string]int)

	for i, text := range texts {
		tokens := tokenize(text)
		tokenized[i] = tokens

		seen := make(map[string]struct{}, len(tokens))
		for _, token := range tokens {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			df[token]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(texts))
	idx := &Index{
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
		docs:       make([]vector, len(texts)),
	}

	for i, term := range terms {
		idx.vocabulary[term] = i
		idx.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	for i, tokens := range tokenized {
		idx.docs[i] = idx.vectorize(tokens)
	}

	return idx
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.docs)
}

// VocabularySize returns the number of distinct indexed terms.
func (idx *Index) VocabularySize() int {
	if idx == nil {
		return 0
	}
	return len(idx.vocabulary)
}

// Scores returns the cosine similarity of query against every document, in
// document order. Terms unknown to the index are ignored, so an empty or
// unrelated query scores zero everywhere.
func (idx *Index) Scores(query string) []float64 {
	if idx == nil {
		return nil
	}

	q := idx.vectorize(tokenize(query))
	scores := make([]float64, len(idx.docs))
	for i, doc := range idx.docs {
		scores[i] = q.dot(doc)
	}
	return scores
}

func (idx *Index) vectorize(tokens []string) vector {
	counts := make(map[int]float64)
	for _, token := range tokens {
		if id, ok := idx.vocabulary[token]; ok {
			counts[id]++
		}
	}

	if len(counts) == 0 {
		return vector{}
	}

	v := vector{
		terms:   make([]int, 0, len(counts)),
		weights: make([]float64, 0, len(counts)),
	}
	for id := range counts {
		v.terms = append(v.terms, id)
	}
	sort.Ints(v.terms)

	var norm float64
	for _, id := range v.terms {
		w := counts[id] * idx.idf[id]
		v.weights = append(v.weights, w)
		norm += w * w
	}

	norm = math.Sqrt(norm)
	for i := range v.weights {
		v.weights[i] /= norm
	}

	return v
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})

	tokens := fields[:0]
	for _, field := range fields {
		if len([]rune(field)) < 2 {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

// isWordRune matches the regexp \w class of the reference tokenizer:
// letters, numbers and underscore. Combining marks split tokens.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
