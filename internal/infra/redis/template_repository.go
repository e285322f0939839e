package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"vendor-risk-service/internal/domain"
)

// TemplateLoader fetches template content from a backing store (e.g., Postgres JSONB).
type TemplateLoader interface {
	LoadTemplate(ctx context.Context, templateID string) (domain.Template, error)
}

// TemplateRepository caches template documents in Redis and falls back to a loader on cache miss.
// Templates are stored as: SET template:{templateID} {json}
type TemplateRepository struct {
	client *redis.Client
	loader TemplateLoader
	ttl    time.Duration
	logger *zap.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewTemplateRepository(client *redis.Client, loader TemplateLoader, ttl time.Duration, logger *zap.Logger) *TemplateRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *TemplateRepository) GetTemplate(ctx context.Context, templateID string) (domain.Template, error) {
	if template, ok := r.cached(ctx, templateID); ok {
		return template, nil
	}

	result, err, _ := r.sf.Do(templateID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if template, ok := r.cached(ctx, templateID); ok {
			return template, nil
		}

		template, err := r.loader.LoadTemplate(ctx, templateID)
		if err != nil {
			return domain.Template{}, err
		}

		data, err := json.Marshal(template)
		if err == nil {
			err = r.client.Set(ctx, r.key(templateID), data, r.ttlWithJitter()).Err()
		}
		if err != nil {
			// The cache is best-effort; the loaded template is still good.
			r.logger.Warn("cache template", zap.String("templateId", templateID), zap.Error(err))
		}
		return template, nil
	})
	if err != nil {
		return domain.Template{}, err
	}
	return result.(domain.Template), nil
}

// Invalidate drops a cached template, e.g. after it was re-imported.
func (r *TemplateRepository) Invalidate(ctx context.Context, templateID string) error {
	return r.client.Del(ctx, r.key(templateID)).Err()
}

func (r *TemplateRepository) cached(ctx context.Context, templateID string) (domain.Template, bool) {
	data, err := r.client.Get(ctx, r.key(templateID)).Bytes()
	if err != nil {
		return domain.Template{}, false
	}
	var template domain.Template
	if err := json.Unmarshal(data, &template); err != nil {
		return domain.Template{}, false
	}
	return template, true
}

func (r *TemplateRepository) key(templateID string) string {
	return "template:" + templateID
}

func (r *TemplateRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
