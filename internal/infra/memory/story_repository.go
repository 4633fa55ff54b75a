package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"reading-adventure-service/internal/app"
	"reading-adventure-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// StoryRepository caches generated stories per parameter set with TTL to avoid
// repeated generator calls. A non-positive TTL disables reuse; identical
// concurrent requests still share one generation.
type StoryRepository struct {
	generator app.StoryGenerator
	ttl       time.Duration
	clock     func() time.Time
	sf        singleflight.Group
	rnd       *rand.Rand
	rndMu     sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedStory
}

type cachedStory struct {
	story     domain.StoryDocument
	expiresAt time.Time
}

func NewStoryRepository(generator app.StoryGenerator, ttl time.Duration) *StoryRepository {
	return &StoryRepository{
		generator: generator,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:     make(map[string]cachedStory),
	}
}

func (r *StoryRepository) GetStory(ctx context.Context, params domain.StoryParams) (domain.StoryDocument, error) {
	key := params.CacheKey()
	if story, ok := r.lookup(key); ok {
		return story, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if story, ok := r.lookup(key); ok {
			return story, nil
		}

		story, err := r.generator.Generate(ctx, params)
		if err != nil {
			return domain.StoryDocument{}, err
		}

		if r.ttl > 0 {
			r.mu.Lock()
			r.cache[key] = cachedStory{
				story:     story,
				expiresAt: r.clock().Add(r.ttlWithJitter()),
			}
			r.mu.Unlock()
		}
		return story, nil
	})
	if err != nil {
		return domain.StoryDocument{}, err
	}
	return result.(domain.StoryDocument), nil
}

func (r *StoryRepository) lookup(key string) (domain.StoryDocument, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(now) {
		return domain.StoryDocument{}, false
	}
	return entry.story, true
}

func (r *StoryRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
