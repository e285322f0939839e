package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"vendor-risk-service/internal/domain"
)

type stubLoader struct {
	calls     int
	templates map[string]domain.Template
}

func (l *stubLoader) LoadTemplate(_ context.Context, id string) (domain.Template, error) {
	l.calls++
	template, ok := l.templates[id]
	if !ok {
		return domain.Template{}, domain.ErrTemplateNotFound
	}
	return template, nil
}

func TestTemplateRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	loader := &stubLoader{templates: map[string]domain.Template{
		"tpl": {ID: "tpl", Name: "Baseline", Sections: []domain.Section{{ID: "s", Questions: []domain.Question{{
			ID:           "q",
			QuestionType: domain.QuestionTypeBoolean,
			Options: domain.ConditionalOptions{ConditionalText: domain.ConditionalText{
				Trigger: domain.SingleTrigger("No"),
				Prompt:  "Why not?",
			}},
		}}}}},
	}}
	repo := NewTemplateRepository(client, loader, time.Minute, nil)
	ctx := context.Background()

	if _, err := repo.GetTemplate(ctx, "tpl"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !mr.Exists("template:tpl") {
		t.Fatalf("expected template cached")
	}
	if ttl := mr.TTL("template:tpl"); ttl < time.Minute || ttl > 66*time.Second {
		t.Fatalf("expected jittered ttl, got %v", ttl)
	}

	cached, err := repo.GetTemplate(ctx, "tpl")
	if err != nil {
		t.Fatalf("get cached: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader called %d times", loader.calls)
	}
	q, _ := cached.Question("q")
	if _, ok := q.Options.(domain.ConditionalOptions); !ok {
		t.Fatalf("options lost through the cache: %#v", q.Options)
	}

	if err := repo.Invalidate(ctx, "tpl"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("template:tpl") {
		t.Fatalf("expected cache entry removed")
	}

	if _, err := repo.GetTemplate(ctx, "missing"); !errors.Is(err, domain.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}
