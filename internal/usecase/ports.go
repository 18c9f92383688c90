package usecase

import (
	"context"
	"time"

	"github.com/totegamma/heritage-repo/internal/domain"
)

// DocumentStore is a per-collection document database.
type DocumentStore interface {
	FindOne(ctx context.Context, collection domain.Collection, filter domain.Filter, out any) error
	Find(ctx context.Context, collection domain.Collection, filter domain.Filter, out any) error
	UpdateOne(ctx context.Context, collection domain.Collection, filter domain.Filter, update domain.Update, upsert bool) (domain.UpdateResult, error)
	DeleteOne(ctx context.Context, collection domain.Collection, filter domain.Filter) (int64, error)
	DeleteMany(ctx context.Context, collection domain.Collection, filter domain.Filter) (int64, error)
}

// Cache is one namespace of the read-aside cache. Implementations swallow
// their own failures; Get reports a miss instead.
type Cache interface {
	Get(ctx context.Context, key string, out any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Del(ctx context.Context, key string)
	Flush(ctx context.Context)
}

// PossessionRepository maintains the legacy per-user possession lists.
type PossessionRepository interface {
	AddPossession(ctx context.Context, userID string, c domain.Collection, id string) error
	RemovePossession(ctx context.Context, userID string, c domain.Collection, id string) error
}

// PreviewStorage turns inline preview payloads into stored links.
type PreviewStorage interface {
	Persist(ctx context.Context, preview string) (string, error)
}

type noCache struct{}

func (noCache) Get(context.Context, string, any) bool           { return false }
func (noCache) Set(context.Context, string, any, time.Duration) {}
func (noCache) Del(context.Context, string)                     {}
func (noCache) Flush(context.Context)                           {}

func orNoCache(c Cache) Cache {
	if c == nil {
		return noCache{}
	}
	return c
}
