package usecase

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/totegamma/heritage-repo/internal/domain"
	"github.com/totegamma/heritage-repo/internal/hook"
)

var tracer = otel.Tracer("usecase")

// Resolver hydrates stored reference graphs. Every resolve is bounded by a
// depth budget that is decremented once per hop.
type Resolver struct {
	store DocumentStore
	cache Cache
	hooks *hook.Registry
}

func NewResolver(store DocumentStore, cache Cache, hooks *hook.Registry) *Resolver {
	return &Resolver{
		store: store,
		cache: orNoCache(cache),
		hooks: hooks,
	}
}

type docPtr[T any] interface {
	*T
	domain.Document
}

func cacheKey(c domain.Collection, id string) string {
	return string(c) + "::" + id
}

// fetch returns the raw document for ref after onResolve hooks, or nil if it
// does not resolve.
func fetch[T any, PT docPtr[T]](ctx context.Context, r *Resolver, c domain.Collection, ref domain.Ref[T]) PT {
	id := ref.RefID()

	var doc PT
	switch {
	case ref.IsResolved():
		clone, err := domain.Clone(ref.Value)
		if err != nil {
			slog.WarnContext(ctx, "failed to copy reference value",
				slog.String("collection", string(c)),
				slog.String("error", err.Error()),
				slog.String("module", "resolver"),
			)
			return nil
		}
		doc = PT(clone)
		if id != "" {
			r.cache.Set(ctx, cacheKey(c, id), doc, 0)
		}
	case id == "":
		return nil
	default:
		key := cacheKey(c, id)
		var cached T
		if r.cache.Get(ctx, key, &cached) {
			doc = PT(&cached)
			break
		}

		var stored T
		err := r.store.FindOne(ctx, c, domain.ByID(id), &stored)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				slog.ErrorContext(ctx, "failed to fetch document",
					slog.String("collection", string(c)),
					slog.String("id", id),
					slog.String("error", err.Error()),
					slog.String("module", "resolver"),
				)
			}
			return nil
		}
		doc = PT(&stored)
		r.cache.Set(ctx, key, doc, 0)
	}

	if id == "" {
		id = doc.DocID()
	}

	out := doc
	if hooked, ok := r.hooks.Run(ctx, c, hook.OnResolve, doc, nil).(PT); ok && hooked != nil {
		out = hooked
	}
	out.SetDocID(id)
	return out
}

// resolveRef is one resolve call: fetch, optional owner scoping, then the
// nested step with the remaining budget. A failing nested step makes the
// whole call absent.
func resolveRef[T any, PT docPtr[T]](
	ctx context.Context,
	r *Resolver,
	c domain.Collection,
	ref domain.Ref[T],
	depth int,
	scope func(PT),
	nested func(context.Context, PT, int) error,
) PT {
	doc := fetch[T, PT](ctx, r, c, ref)
	if doc == nil {
		return nil
	}
	if scope != nil {
		scope(doc)
	}
	if depth <= 0 || nested == nil {
		return doc
	}
	if err := nested(ctx, doc, depth-1); err != nil {
		slog.WarnContext(ctx, "nested resolution failed",
			slog.String("collection", string(c)),
			slog.String("id", doc.DocID()),
			slog.String("error", err.Error()),
			slog.String("module", "resolver"),
		)
		return nil
	}
	return doc
}

// resolveAll resolves every element concurrently. Elements that do not
// resolve are dropped; order is kept.
func resolveAll[T any](ctx context.Context, refs []domain.Ref[T], fn func(context.Context, domain.Ref[T]) *T) []domain.Ref[T] {
	if refs == nil {
		return nil
	}

	results := make([]*T, len(refs))
	var g errgroup.Group
	for i, ref := range refs {
		g.Go(func() error {
			results[i] = fn(ctx, ref)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.Ref[T], 0, len(refs))
	for _, v := range results {
		if v != nil {
			out = append(out, domain.Hydrate(v))
		}
	}
	return out
}

func resolveMap[T any](ctx context.Context, refs map[string]domain.Ref[T], fn func(context.Context, domain.Ref[T]) *T) map[string]domain.Ref[T] {
	if refs == nil {
		return nil
	}

	keys := make([]string, 0, len(refs))
	for k := range refs {
		keys = append(keys, k)
	}
	values := make([]domain.Ref[T], len(keys))
	for i, k := range keys {
		values[i] = refs[k]
	}

	results := make([]*T, len(keys))
	var g errgroup.Group
	for i := range keys {
		g.Go(func() error {
			results[i] = fn(ctx, values[i])
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]domain.Ref[T], len(keys))
	for i, k := range keys {
		if results[i] != nil {
			out[k] = domain.Hydrate(results[i])
		}
	}
	return out
}

func resolveMapList[T any](ctx context.Context, refs map[string][]domain.Ref[T], fn func(context.Context, domain.Ref[T]) *T) map[string][]domain.Ref[T] {
	if refs == nil {
		return nil
	}

	out := make(map[string][]domain.Ref[T], len(refs))
	for k, list := range refs {
		out[k] = resolveAll(ctx, list, fn)
	}
	return out
}

// resolveOne keeps an unresolvable single reference as a bare reference.
func resolveOne[T any](ctx context.Context, ref domain.Ref[T], fn func(context.Context, domain.Ref[T]) *T) domain.Ref[T] {
	if ref.IsZero() {
		return ref
	}
	if v := fn(ctx, ref); v != nil {
		return domain.Hydrate(v)
	}
	return ref.Stripped()
}

// ResolveAny resolves id in collection c. An absent document is (nil, nil).
func (r *Resolver) ResolveAny(ctx context.Context, c domain.Collection, id string, depth int) (domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Resolver.ResolveAny")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", string(c)),
		attribute.String("id", id),
		attribute.Int("depth", depth),
	)

	switch c {
	case domain.CollectionEntity:
		return asDocument(r.entity(ctx, domain.NewRef[domain.Entity](id), depth)), nil
	case domain.CollectionCompilation:
		return asDocument(r.compilation(ctx, domain.NewRef[domain.Compilation](id), depth)), nil
	case domain.CollectionAnnotation:
		return asDocument(r.annotation(ctx, domain.NewRef[domain.Annotation](id), depth)), nil
	case domain.CollectionPerson:
		return asDocument(r.person(ctx, domain.NewRef[domain.Person](id), depth, "")), nil
	case domain.CollectionInstitution:
		return asDocument(r.institution(ctx, domain.NewRef[domain.Institution](id), depth, "")), nil
	case domain.CollectionDigitalEntity:
		return asDocument(r.digitalEntity(ctx, domain.NewRef[domain.DigitalEntity](id), depth)), nil
	case domain.CollectionPhysicalEntity:
		return asDocument(r.physicalEntity(ctx, domain.NewRef[domain.PhysicalEntity](id), depth)), nil
	case domain.CollectionContact:
		return asDocument(r.contact(ctx, domain.NewRef[domain.Contact](id), depth)), nil
	case domain.CollectionAddress:
		return asDocument(r.address(ctx, domain.NewRef[domain.Address](id), depth)), nil
	case domain.CollectionTag:
		return asDocument(r.tag(ctx, domain.NewRef[domain.Tag](id), depth)), nil
	case domain.CollectionGroup:
		return asDocument(r.group(ctx, domain.NewRef[domain.Group](id), depth)), nil
	}
	return nil, domain.ValidationError{Field: "collection", Reason: "unknown collection " + string(c)}
}

func asDocument[T any, PT docPtr[T]](doc PT) domain.Document {
	if doc == nil {
		return nil
	}
	return doc
}

func (r *Resolver) ResolveEntity(ctx context.Context, ref domain.Ref[domain.Entity], depth int) *domain.Entity {
	ctx, span := tracer.Start(ctx, "Resolver.ResolveEntity")
	defer span.End()
	return r.entity(ctx, ref, depth)
}

func (r *Resolver) ResolveCompilation(ctx context.Context, ref domain.Ref[domain.Compilation], depth int) *domain.Compilation {
	ctx, span := tracer.Start(ctx, "Resolver.ResolveCompilation")
	defer span.End()
	return r.compilation(ctx, ref, depth)
}

func (r *Resolver) ResolveAnnotation(ctx context.Context, ref domain.Ref[domain.Annotation], depth int) *domain.Annotation {
	return r.annotation(ctx, ref, depth)
}

// ResolvePerson returns the person with every owner's relations.
func (r *Resolver) ResolvePerson(ctx context.Context, ref domain.Ref[domain.Person], depth int) *domain.Person {
	ctx, span := tracer.Start(ctx, "Resolver.ResolvePerson")
	defer span.End()
	return r.person(ctx, ref, depth, "")
}

// ResolveInstitution returns the institution with every owner's relations.
func (r *Resolver) ResolveInstitution(ctx context.Context, ref domain.Ref[domain.Institution], depth int) *domain.Institution {
	return r.institution(ctx, ref, depth, "")
}

func (r *Resolver) ResolveDigitalEntity(ctx context.Context, ref domain.Ref[domain.DigitalEntity], depth int) *domain.DigitalEntity {
	ctx, span := tracer.Start(ctx, "Resolver.ResolveDigitalEntity")
	defer span.End()
	return r.digitalEntity(ctx, ref, depth)
}

func (r *Resolver) ResolvePhysicalEntity(ctx context.Context, ref domain.Ref[domain.PhysicalEntity], depth int) *domain.PhysicalEntity {
	return r.physicalEntity(ctx, ref, depth)
}

func (r *Resolver) ResolveContact(ctx context.Context, ref domain.Ref[domain.Contact], depth int) *domain.Contact {
	return r.contact(ctx, ref, depth)
}

func (r *Resolver) ResolveAddress(ctx context.Context, ref domain.Ref[domain.Address], depth int) *domain.Address {
	return r.address(ctx, ref, depth)
}

func (r *Resolver) ResolveTag(ctx context.Context, ref domain.Ref[domain.Tag], depth int) *domain.Tag {
	return r.tag(ctx, ref, depth)
}

func (r *Resolver) ResolveGroup(ctx context.Context, ref domain.Ref[domain.Group], depth int) *domain.Group {
	return r.group(ctx, ref, depth)
}

// leaves

func (r *Resolver) annotation(ctx context.Context, ref domain.Ref[domain.Annotation], depth int) *domain.Annotation {
	return resolveRef[domain.Annotation](ctx, r, domain.CollectionAnnotation, ref, depth, nil, nil)
}

func (r *Resolver) contact(ctx context.Context, ref domain.Ref[domain.Contact], depth int) *domain.Contact {
	return resolveRef[domain.Contact](ctx, r, domain.CollectionContact, ref, depth, nil, nil)
}

func (r *Resolver) address(ctx context.Context, ref domain.Ref[domain.Address], depth int) *domain.Address {
	return resolveRef[domain.Address](ctx, r, domain.CollectionAddress, ref, depth, nil, nil)
}

func (r *Resolver) tag(ctx context.Context, ref domain.Ref[domain.Tag], depth int) *domain.Tag {
	return resolveRef[domain.Tag](ctx, r, domain.CollectionTag, ref, depth, nil, nil)
}

func (r *Resolver) group(ctx context.Context, ref domain.Ref[domain.Group], depth int) *domain.Group {
	return resolveRef[domain.Group](ctx, r, domain.CollectionGroup, ref, depth, nil, nil)
}

// entity and compilation

func (r *Resolver) entity(ctx context.Context, ref domain.Ref[domain.Entity], depth int) *domain.Entity {
	return resolveRef(ctx, r, domain.CollectionEntity, ref, depth, nil, r.entityNested)
}

func (r *Resolver) entityNested(ctx context.Context, e *domain.Entity, depth int) error {
	annotationFn := func(ctx context.Context, ref domain.Ref[domain.Annotation]) *domain.Annotation {
		return r.annotation(ctx, ref, depth)
	}

	var (
		annotations map[string]domain.Ref[domain.Annotation]
		attached    []domain.Annotation
		related     = e.RelatedDigitalEntity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		annotations = resolveMap(gctx, e.Annotations, annotationFn)
		return nil
	})
	g.Go(func() error {
		var err error
		attached, err = r.findAnnotations(gctx, domain.Filter{
			"target.source.relatedEntity":      e.ID,
			"target.source.relatedCompilation": map[string]any{"$in": []any{nil, ""}},
		})
		return err
	})
	g.Go(func() error {
		related = resolveOne(gctx, e.RelatedDigitalEntity, func(ctx context.Context, ref domain.Ref[domain.DigitalEntity]) *domain.DigitalEntity {
			return r.digitalEntity(ctx, ref, depth)
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	e.Annotations = mergeAnnotations(ctx, annotations, attached, annotationFn)
	e.RelatedDigitalEntity = related
	return nil
}

func (r *Resolver) compilation(ctx context.Context, ref domain.Ref[domain.Compilation], depth int) *domain.Compilation {
	return resolveRef(ctx, r, domain.CollectionCompilation, ref, depth, nil, r.compilationNested)
}

func (r *Resolver) compilationNested(ctx context.Context, c *domain.Compilation, depth int) error {
	annotationFn := func(ctx context.Context, ref domain.Ref[domain.Annotation]) *domain.Annotation {
		return r.annotation(ctx, ref, depth)
	}

	var (
		annotations map[string]domain.Ref[domain.Annotation]
		attached    []domain.Annotation
		entities    map[string]domain.Ref[domain.Entity]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		annotations = resolveMap(gctx, c.Annotations, annotationFn)
		return nil
	})
	g.Go(func() error {
		var err error
		attached, err = r.findAnnotations(gctx, domain.Filter{
			"target.source.relatedCompilation": c.ID,
		})
		return err
	})
	g.Go(func() error {
		entities = resolveMap(gctx, c.Entities, func(ctx context.Context, ref domain.Ref[domain.Entity]) *domain.Entity {
			return r.entity(ctx, ref, depth)
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.Annotations = mergeAnnotations(ctx, annotations, attached, annotationFn)
	c.Entities = entities
	return nil
}

func (r *Resolver) findAnnotations(ctx context.Context, filter domain.Filter) ([]domain.Annotation, error) {
	var found []domain.Annotation
	if err := r.store.Find(ctx, domain.CollectionAnnotation, filter, &found); err != nil {
		return nil, err
	}
	return found, nil
}

// mergeAnnotations adds queried annotations, keyed by their own id, to the
// resolved annotation map.
func mergeAnnotations(
	ctx context.Context,
	annotations map[string]domain.Ref[domain.Annotation],
	attached []domain.Annotation,
	fn func(context.Context, domain.Ref[domain.Annotation]) *domain.Annotation,
) map[string]domain.Ref[domain.Annotation] {
	if len(attached) == 0 {
		return annotations
	}
	if annotations == nil {
		annotations = make(map[string]domain.Ref[domain.Annotation], len(attached))
	}

	refs := make([]domain.Ref[domain.Annotation], 0, len(attached))
	for i := range attached {
		if _, ok := annotations[attached[i].ID]; ok {
			continue
		}
		refs = append(refs, domain.Hydrate(&attached[i]))
	}
	for _, ref := range resolveAll(ctx, refs, fn) {
		annotations[ref.RefID()] = ref
	}
	return annotations
}
