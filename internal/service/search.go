package service

import (
	"context"
	"log/slog"

	"github.com/totegamma/heritage-repo/internal/domain"
	"github.com/totegamma/heritage-repo/internal/hook"
	"github.com/totegamma/heritage-repo/internal/usecase"
)

// SearchService keeps search results and derived entity fields in step with
// saves and deletes.
type SearchService struct {
	search *usecase.SearchUsecase
	saver  *usecase.Saver
}

func NewSearchService(search *usecase.SearchUsecase, saver *usecase.Saver) *SearchService {
	return &SearchService{
		search: search,
		saver:  saver,
	}
}

func (s *SearchService) Register(hooks *hook.Registry) {
	for _, c := range []domain.Collection{domain.CollectionEntity, domain.CollectionCompilation} {
		hooks.Add(c, hook.AfterSave, s.invalidate)
		hooks.Add(c, hook.OnDelete, s.invalidate)
	}
	hooks.Add(domain.CollectionDigitalEntity, hook.AfterSave, s.reindex)
}

func (s *SearchService) invalidate(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error) {
	s.search.Invalidate(ctx)
	return doc, nil
}

func (s *SearchService) reindex(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error) {
	digital, ok := doc.(*domain.DigitalEntity)
	if !ok {
		return doc, nil
	}
	n, err := s.saver.SyncLicences(ctx, digital)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		slog.DebugContext(ctx, "licences synced",
			slog.String("digitalentity", digital.ID),
			slog.Int("entities", n),
			slog.String("module", "search"),
		)
		s.search.Invalidate(ctx)
	}
	return doc, nil
}
