package usecase

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/totegamma/heritage-repo/internal/domain"
	"github.com/totegamma/heritage-repo/internal/hook"
)

// Saver persists hydrated document graphs. Nested documents are saved before
// their parent; a failing child is logged and does not abort the parent.
type Saver struct {
	store       DocumentStore
	cache       Cache
	hooks       *hook.Registry
	possessions PossessionRepository
	previews    PreviewStorage
	fanout      int
}

func NewSaver(
	store DocumentStore,
	cache Cache,
	hooks *hook.Registry,
	possessions PossessionRepository,
	previews PreviewStorage,
) *Saver {
	return &Saver{
		store:       store,
		cache:       orNoCache(cache),
		hooks:       hooks,
		possessions: possessions,
		previews:    previews,
		fanout:      8,
	}
}

// Save writes doc and everything it embeds. Identifiers minted for new
// documents are assigned in place. The boolean reports whether the store
// acknowledged the write; store failures are logged and reported as false.
func (s *Saver) Save(ctx context.Context, c domain.Collection, doc domain.Document, user *domain.User) (bool, error) {
	ctx, span := tracer.Start(ctx, "Saver.Save")
	defer span.End()
	span.SetAttributes(attribute.String("collection", string(c)))

	if doc == nil {
		return true, nil
	}
	if doc.Collection() != c {
		return false, domain.ValidationError{Collection: c, Field: "collection", Reason: "document is a " + string(doc.Collection())}
	}
	return s.save(ctx, doc, user)
}

func (s *Saver) save(ctx context.Context, doc domain.Document, user *domain.User) (bool, error) {
	c := doc.Collection()

	if doc.DocID() == "" {
		doc.SetDocID(domain.NewID())
	}
	id := doc.DocID()

	if err := validate(doc); err != nil {
		return false, err
	}
	if err := s.authorize(ctx, doc, user); err != nil {
		return false, err
	}

	s.cache.Del(ctx, cacheKey(c, id))

	s.cascade(ctx, doc, user)

	copied, err := domain.CloneDocument(doc)
	if err == nil {
		copied, err = s.transform(ctx, copied, user)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to prepare document",
			slog.String("collection", string(c)),
			slog.String("id", id),
			slog.String("error", err.Error()),
			slog.String("module", "saver"),
		)
		return false, nil
	}

	transformed := s.hooks.Run(ctx, c, hook.OnTransform, copied, user)
	transformed.SetDocID(id)

	result, err := s.store.UpdateOne(ctx, c, domain.ByID(id), domain.Update{Set: transformed}, true)
	if err != nil {
		slog.ErrorContext(ctx, "failed to persist document",
			slog.String("collection", string(c)),
			slog.String("id", id),
			slog.String("error", err.Error()),
			slog.String("module", "saver"),
		)
	}

	s.hooks.Run(ctx, c, hook.AfterSave, transformed, user)

	if err != nil {
		return false, nil
	}

	// Only a document created by this call joins the user's possessions.
	if result.UpsertedCount > 0 && c.Owned() && user != nil && s.possessions != nil {
		if err := s.possessions.AddPossession(ctx, user.ID, c, id); err != nil {
			slog.WarnContext(ctx, "failed to record possession",
				slog.String("collection", string(c)),
				slog.String("id", id),
				slog.String("user", user.ID),
				slog.String("error", err.Error()),
				slog.String("module", "saver"),
			)
		}
	}

	return result.Succeeded(), nil
}

// authorize enforces the checks whose outcome the caller precomputed on user.
func (s *Saver) authorize(ctx context.Context, doc domain.Document, user *domain.User) error {
	a, ok := doc.(*domain.Annotation)
	if !ok {
		return nil
	}

	var stored domain.Annotation
	err := s.store.FindOne(ctx, domain.CollectionAnnotation, domain.ByID(a.ID), &stored)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		// ranking cannot be compared; the upsert will report the store failure
		return nil
	}
	if stored.Ranking != a.Ranking && (user == nil || !user.CanRank) {
		return domain.PermissionDeniedError{Action: "change annotation ranking"}
	}
	return nil
}

// cascade saves every hydrated child of doc, kind by kind. Children of the
// same kind are saved concurrently.
func (s *Saver) cascade(ctx context.Context, doc domain.Document, user *domain.User) {
	switch d := doc.(type) {
	case *domain.Compilation:
		saveMap(ctx, s, d.Annotations, user)
		saveMap(ctx, s, d.Entities, user)
	case *domain.Entity:
		saveMap(ctx, s, d.Annotations, user)
		saveRefs(ctx, s, []*domain.Ref[domain.DigitalEntity]{&d.RelatedDigitalEntity}, user)
	case *domain.DigitalEntity:
		saveList(ctx, s, d.Institutions, user)
		saveList(ctx, s, d.Persons, user)
		saveList(ctx, s, d.PhyObjs, user)
		saveList(ctx, s, d.Tags, user)
	case *domain.Person:
		var institutions []*domain.Ref[domain.Institution]
		for _, list := range d.Institutions {
			for i := range list {
				institutions = append(institutions, &list[i])
			}
		}
		saveRefs(ctx, s, institutions, user)
		saveMap(ctx, s, d.ContactReferences, user)
	case *domain.Institution:
		saveMap(ctx, s, d.Addresses, user)
	case *domain.PhysicalEntity:
		saveList(ctx, s, d.Institutions, user)
		saveList(ctx, s, d.Persons, user)
	}
}

func saveList[T any, PT docPtr[T]](ctx context.Context, s *Saver, refs []domain.Ref[T], user *domain.User) {
	ptrs := make([]*domain.Ref[T], len(refs))
	for i := range refs {
		ptrs[i] = &refs[i]
	}
	saveRefs[T, PT](ctx, s, ptrs, user)
}

func saveMap[T any, PT docPtr[T]](ctx context.Context, s *Saver, refs map[string]domain.Ref[T], user *domain.User) {
	if len(refs) == 0 {
		return
	}
	keys := make([]string, 0, len(refs))
	ptrs := make([]*domain.Ref[T], 0, len(refs))
	for k, ref := range refs {
		keys = append(keys, k)
		ptrs = append(ptrs, &ref)
	}
	saveRefs[T, PT](ctx, s, ptrs, user)
	for i, k := range keys {
		refs[k] = *ptrs[i]
	}
}

// saveRefs saves each hydrated reference and writes the saved id back into it.
func saveRefs[T any, PT docPtr[T]](ctx context.Context, s *Saver, refs []*domain.Ref[T], user *domain.User) {
	var g errgroup.Group
	g.SetLimit(s.fanout)
	for _, ref := range refs {
		if !ref.IsResolved() {
			continue
		}
		g.Go(func() error {
			child := PT(ref.Value)
			if _, err := s.save(ctx, child, user); err != nil {
				slog.WarnContext(ctx, "nested save failed",
					slog.String("collection", string(child.Collection())),
					slog.String("id", child.DocID()),
					slog.String("error", err.Error()),
					slog.String("module", "saver"),
				)
			}
			ref.ID = child.DocID()
			return nil
		})
	}
	_ = g.Wait()
}

// SyncLicences copies the licence of digital onto every entity that
// references it and drops those entities from the cache.
func (s *Saver) SyncLicences(ctx context.Context, digital *domain.DigitalEntity) (int, error) {
	ctx, span := tracer.Start(ctx, "Saver.SyncLicences")
	defer span.End()

	var entities []domain.Entity
	err := s.store.Find(ctx, domain.CollectionEntity, domain.Filter{
		"relatedDigitalEntity._id": digital.ID,
	}, &entities)
	if err != nil {
		return 0, err
	}

	update := domain.Update{Unset: []string{"__licenses"}}
	if digital.Licence != "" {
		update = domain.Update{Set: map[string]any{"__licenses": []string{digital.Licence}}}
	}

	synced := 0
	for _, e := range entities {
		if _, err := s.store.UpdateOne(ctx, domain.CollectionEntity, domain.ByID(e.ID), update, false); err != nil {
			slog.WarnContext(ctx, "failed to sync licence",
				slog.String("entity", e.ID),
				slog.String("error", err.Error()),
				slog.String("module", "saver"),
			)
			continue
		}
		s.cache.Del(ctx, cacheKey(domain.CollectionEntity, e.ID))
		synced++
	}
	return synced, nil
}
