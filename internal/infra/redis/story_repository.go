package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"reading-adventure-service/internal/app"
	"reading-adventure-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// StoryRepository caches generated stories in Redis (one JSON blob per parameter set)
// and falls back to the generator on cache miss.
// Stories are stored as: SET story:{paramsHash} {json} EX ttl
type StoryRepository struct {
	client    *redis.Client
	generator app.StoryGenerator
	ttl       time.Duration
	sf        singleflight.Group
	rnd       *rand.Rand
	rndMu     sync.Mutex
}

func NewStoryRepository(client *redis.Client, generator app.StoryGenerator, ttl time.Duration) *StoryRepository {
	return &StoryRepository{
		client:    client,
		generator: generator,
		ttl:       ttl,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *StoryRepository) GetStory(ctx context.Context, params domain.StoryParams) (domain.StoryDocument, error) {
	key := r.storyKey(params.CacheKey())
	if story, ok := r.cached(ctx, key); ok {
		return story, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if story, ok := r.cached(ctx, key); ok {
			return story, nil
		}

		story, err := r.generator.Generate(ctx, params)
		if err != nil {
			return domain.StoryDocument{}, err
		}

		if ttl := r.ttlWithJitter(); ttl > 0 {
			if data, err := json.Marshal(story); err == nil {
				if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
					log.Printf("cache story %s: %v", key, err)
				}
			}
		}
		return story, nil
	})
	if err != nil {
		return domain.StoryDocument{}, err
	}
	return result.(domain.StoryDocument), nil
}

func (r *StoryRepository) cached(ctx context.Context, key string) (domain.StoryDocument, bool) {
	if r.ttl <= 0 {
		return domain.StoryDocument{}, false
	}
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.StoryDocument{}, false
	}
	var story domain.StoryDocument
	if err := json.Unmarshal(data, &story); err != nil || len(story.Paragraphs) == 0 {
		return domain.StoryDocument{}, false
	}
	return story, true
}

func (r *StoryRepository) storyKey(hash string) string {
	return "story:" + hash
}

func (r *StoryRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
