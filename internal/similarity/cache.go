package similarity

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/jd-evaluator/internal/reference"
)

// Cache holds fitted indexes for the process lifetime. An index is built on
// first use and reused for every later request against the same dataset
// content and corpus field.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]*Index
	logger  *zap.Logger
}

type cacheKey struct {
	fingerprint string
	field       reference.Field
}

func NewCache(logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Cache{
		entries: make(map[cacheKey]*Index),
		logger:  logger,
	}
}

// Get returns the index for ds and field, building it once.
func (c *Cache) Get(ds *reference.Dataset, field reference.Field) *Index {
	key := cacheKey{fingerprint: ds.Fingerprint(), field: field}

	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, ok := c.entries[key]; ok {
		return idx
	}

	idx := Build(ds.Texts(field))
	c.entries[key] = idx

	c.logger.Debug("corpus index built",
		zap.String("corpus_field", string(field)),
		zap.Int("documents", idx.Len()),
		zap.Int("vocabulary", idx.VocabularySize()),
	)

	if idx.Len() > 0 && idx.VocabularySize() == 0 {
		c.logger.Warn("corpus index has an empty vocabulary; every similarity score will be zero",
			zap.String("corpus_field", string(field)),
		)
	}

	return idx
}

// Len returns the number of cached indexes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
