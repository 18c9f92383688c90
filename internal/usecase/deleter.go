package usecase

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/heritage-repo/internal/domain"
	"github.com/totegamma/heritage-repo/internal/hook"
)

type Deleter struct {
	store       DocumentStore
	cache       Cache
	hooks       *hook.Registry
	possessions PossessionRepository
}

func NewDeleter(store DocumentStore, cache Cache, hooks *hook.Registry, possessions PossessionRepository) *Deleter {
	return &Deleter{
		store:       store,
		cache:       orNoCache(cache),
		hooks:       hooks,
		possessions: possessions,
	}
}

// DeleteAny removes id from collection c. allowed is the caller's ownership
// decision. Dependent cleanup is best effort: its failures are logged only.
func (d *Deleter) DeleteAny(ctx context.Context, c domain.Collection, id string, user *domain.User, allowed bool) error {
	ctx, span := tracer.Start(ctx, "Deleter.DeleteAny")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", string(c)),
		attribute.String("id", id),
	)

	if !allowed {
		return domain.PermissionDeniedError{Action: "delete " + string(c)}
	}

	doc, err := domain.NewDocument(c)
	if err != nil {
		return err
	}
	if err := d.store.FindOne(ctx, c, domain.ByID(id), doc); err != nil {
		return err
	}

	if _, err := d.store.DeleteOne(ctx, c, domain.ByID(id)); err != nil {
		return err
	}
	d.cache.Del(ctx, cacheKey(c, id))

	if user != nil && d.possessions != nil {
		if err := d.possessions.RemovePossession(ctx, user.ID, c, id); err != nil {
			d.logCleanup(ctx, c, id, "possession", err)
		}
	}

	d.hooks.Run(ctx, c, hook.OnDelete, doc, user)

	switch c {
	case domain.CollectionEntity:
		d.cleanupEntity(ctx, id)
	case domain.CollectionCompilation:
		d.cleanupCompilation(ctx, id)
	}

	return nil
}

func (d *Deleter) cleanupEntity(ctx context.Context, id string) {
	var compilations []domain.Compilation
	err := d.store.Find(ctx, domain.CollectionCompilation, domain.Filter{
		"entities." + id: map[string]any{"$exists": true},
	}, &compilations)
	if err != nil {
		d.logCleanup(ctx, domain.CollectionEntity, id, "compilations", err)
	}
	for _, comp := range compilations {
		_, err := d.store.UpdateOne(ctx, domain.CollectionCompilation, domain.ByID(comp.ID), domain.Update{
			Unset: []string{"entities." + id},
		}, false)
		if err != nil {
			d.logCleanup(ctx, domain.CollectionEntity, id, "compilation "+comp.ID, err)
			continue
		}
		d.cache.Del(ctx, cacheKey(domain.CollectionCompilation, comp.ID))
	}

	d.deleteAnnotations(ctx, domain.CollectionEntity, id, domain.Filter{
		"target.source.relatedEntity":      id,
		"target.source.relatedCompilation": map[string]any{"$in": []any{nil, ""}},
	})
}

func (d *Deleter) cleanupCompilation(ctx context.Context, id string) {
	d.deleteAnnotations(ctx, domain.CollectionCompilation, id, domain.Filter{
		"target.source.relatedCompilation": id,
	})
}

func (d *Deleter) deleteAnnotations(ctx context.Context, c domain.Collection, id string, filter domain.Filter) {
	var annotations []domain.Annotation
	if err := d.store.Find(ctx, domain.CollectionAnnotation, filter, &annotations); err != nil {
		d.logCleanup(ctx, c, id, "annotations", err)
		return
	}
	if _, err := d.store.DeleteMany(ctx, domain.CollectionAnnotation, filter); err != nil {
		d.logCleanup(ctx, c, id, "annotations", err)
		return
	}
	for _, a := range annotations {
		d.cache.Del(ctx, cacheKey(domain.CollectionAnnotation, a.ID))
	}
}

func (d *Deleter) logCleanup(ctx context.Context, c domain.Collection, id, target string, err error) {
	slog.WarnContext(ctx, "delete cleanup failed",
		slog.String("collection", string(c)),
		slog.String("id", id),
		slog.String("target", target),
		slog.String("error", err.Error()),
		slog.String("module", "deleter"),
	)
}
