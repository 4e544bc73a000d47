package similarity

import (
	"sort"

	"github.com/spigell/jd-evaluator/internal/reference"
)

// DefaultTopK is used when a non-positive k is requested.
const DefaultTopK = 5

// Match is a retrieved reference evaluation with its cosine score.
type Match struct {
	Index      int
	Score      float64
	Evaluation reference.Evaluation
}

// Retriever ranks the reference dataset against query texts.
type Retriever struct {
	dataset *reference.Dataset
	field   reference.Field
	cache   *Cache
}

func NewRetriever(dataset *reference.Dataset, field reference.Field, cache *Cache) *Retriever {
	if cache == nil {
		cache = NewCache(nil)
	}

	return &Retriever{
		dataset: dataset,
		field:   field,
		cache:   cache,
	}
}

// Field returns the corpus field the retriever ranks on.
func (r *Retriever) Field() reference.Field {
	return r.field
}

// TopK returns up to k evaluations ordered by descending similarity. Equal
// scores keep the dataset order. k defaults to DefaultTopK and is clamped to
// the dataset size.
func (r *Retriever) TopK(query string, k int) []Match {
	n := r.dataset.Len()
	if n == 0 {
		return nil
	}

	if k <= 0 {
		k = DefaultTopK
	}
	if k > n {
		k = n
	}

	scores := r.cache.Get(r.dataset, r.field).Scores(query)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	matches := make([]Match, 0, k)
	for _, i := range order[:k] {
		matches = append(matches, Match{
			Index:      i,
			Score:      scores[i],
			Evaluation: r.dataset.At(i),
		})
	}

	return matches
}
