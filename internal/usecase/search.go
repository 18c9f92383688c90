package usecase

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/heritage-repo/internal/domain"
)

// SearchUsecase answers name searches over entities and compilations. Results
// are cached in their own namespace, which is flushed whenever a searchable
// document changes.
type SearchUsecase struct {
	store DocumentStore
	cache Cache
}

func NewSearchUsecase(store DocumentStore, cache Cache) *SearchUsecase {
	return &SearchUsecase{store: store, cache: orNoCache(cache)}
}

func (u *SearchUsecase) Search(ctx context.Context, c domain.Collection, text string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Search.Search")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(c)))

	switch c {
	case domain.CollectionEntity:
		return search[domain.Entity](ctx, u, c, text, nil)
	case domain.CollectionCompilation:
		return search(ctx, u, c, text, func(comp *domain.Compilation) { comp.Password = "" })
	}
	return nil, domain.ValidationError{Collection: c, Field: "collection", Reason: "not searchable"}
}

// search runs the name query for T. sanitize, if set, is applied before
// results are cached.
func search[T any, PT docPtr[T]](ctx context.Context, u *SearchUsecase, c domain.Collection, text string, sanitize func(PT)) ([]domain.Document, error) {
	normalized := NormalizeName(text)
	key := cacheKey(c, normalized)

	var found []T
	if !u.cache.Get(ctx, key, &found) {
		filter := domain.Filter{}
		if normalized != "" {
			filter["__normalizedName"] = map[string]any{"$regex": regexp.QuoteMeta(normalized)}
		}
		if err := u.store.Find(ctx, c, filter, &found); err != nil {
			return nil, err
		}
		if sanitize != nil {
			for i := range found {
				sanitize(PT(&found[i]))
			}
		}
		u.cache.Set(ctx, key, found, 0)
	}

	out := make([]domain.Document, 0, len(found))
	for i := range found {
		out = append(out, PT(&found[i]))
	}
	return out, nil
}

// Invalidate drops every cached search result.
func (u *SearchUsecase) Invalidate(ctx context.Context) {
	u.cache.Flush(ctx)
}
