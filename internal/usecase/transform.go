package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/totegamma/heritage-repo/internal/domain"
)

func required(c domain.Collection, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.ValidationError{Collection: c, Field: field, Reason: "required"}
	}
	return nil
}

func validate(doc domain.Document) error {
	c := doc.Collection()
	switch d := doc.(type) {
	case *domain.Entity:
		return required(c, "name", d.Name)
	case *domain.Compilation:
		return required(c, "name", d.Name)
	case *domain.Annotation:
		return required(c, "target.source.relatedEntity", d.Target.Source.RelatedEntity)
	case *domain.Person:
		return required(c, "name", d.Name)
	case *domain.Institution:
		return required(c, "name", d.Name)
	case *domain.DigitalEntity:
		return required(c, "title", d.Title)
	case *domain.PhysicalEntity:
		return required(c, "title", d.Title)
	case *domain.Tag:
		return required(c, "value", d.Value)
	case *domain.Group:
		return required(c, "name", d.Name)
	case *domain.Contact, *domain.Address:
		return nil
	}
	return domain.ValidationError{Collection: c, Field: "collection", Reason: "unsupported document"}
}

// NormalizeName is the form stored in __normalizedName and used by search.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// transform derives the persisted form of doc. doc is a private copy.
// Nested documents are reduced to references.
func (s *Saver) transform(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error) {
	switch d := doc.(type) {
	case *domain.Entity:
		s.transformEntity(ctx, d, user)
	case *domain.Compilation:
		d.NormalizedName = NormalizeName(d.Name)
		if len(d.Access) == 0 && user != nil {
			d.Access = ownerAccess(user)
		}
		if d.Creator == nil && user != nil {
			creator := user.Ref()
			d.Creator = &creator
		}
		d.Entities = stripMap(d.Entities)
		d.Annotations = stripMap(d.Annotations)
	case *domain.Person:
		var stored domain.Person
		found, err := s.loadStored(ctx, domain.CollectionPerson, d.ID, &stored)
		if err != nil {
			return nil, err
		}
		if found {
			d.Roles = mergeOwned(stored.Roles, d.Roles)
			d.Institutions = mergeOwned(stored.Institutions, d.Institutions)
			d.ContactReferences = mergeOwned(stored.ContactReferences, d.ContactReferences)
		}
		for k, list := range d.Institutions {
			d.Institutions[k] = stripList(list)
		}
		d.ContactReferences = stripMap(d.ContactReferences)
	case *domain.Institution:
		var stored domain.Institution
		found, err := s.loadStored(ctx, domain.CollectionInstitution, d.ID, &stored)
		if err != nil {
			return nil, err
		}
		if found {
			d.Roles = mergeOwned(stored.Roles, d.Roles)
			d.Notes = mergeOwned(stored.Notes, d.Notes)
			d.Addresses = mergeOwned(stored.Addresses, d.Addresses)
		}
		d.Addresses = stripMap(d.Addresses)
	case *domain.PhysicalEntity:
		var stored domain.PhysicalEntity
		found, err := s.loadStored(ctx, domain.CollectionPhysicalEntity, d.ID, &stored)
		if err != nil {
			return nil, err
		}
		if found {
			d.Persons = unionRefs(stored.Persons, d.Persons)
			d.Institutions = unionRefs(stored.Institutions, d.Institutions)
		}
		d.Persons = stripList(d.Persons)
		d.Institutions = stripList(d.Institutions)
	case *domain.DigitalEntity:
		d.Persons = stripList(d.Persons)
		d.Institutions = stripList(d.Institutions)
		d.Tags = stripList(d.Tags)
		d.PhyObjs = stripList(d.PhyObjs)
	}
	return doc, nil
}

func (s *Saver) transformEntity(ctx context.Context, e *domain.Entity, user *domain.User) {
	e.NormalizedName = NormalizeName(e.Name)
	e.AnnotationCount = len(e.Annotations)

	mediaTypes := []string{}
	addMediaType := func(t string) {
		if t != "" && !slices.Contains(mediaTypes, t) {
			mediaTypes = append(mediaTypes, t)
		}
	}
	addMediaType(e.MediaType)

	e.Licenses = nil
	if digital := s.liveDigitalEntity(ctx, e.RelatedDigitalEntity); digital != nil {
		addMediaType(digital.Type)
		if digital.Licence != "" {
			e.Licenses = []string{digital.Licence}
		}
	}
	e.MediaTypes = mediaTypes

	if len(e.Access) == 0 && user != nil {
		e.Access = ownerAccess(user)
	}
	if e.Creator == nil && user != nil {
		creator := user.Ref()
		e.Creator = &creator
	}

	if s.previews != nil && e.Settings.Preview != "" {
		link, err := s.previews.Persist(ctx, e.Settings.Preview)
		if err != nil {
			slog.WarnContext(ctx, "failed to store preview",
				slog.String("entity", e.ID),
				slog.String("error", err.Error()),
				slog.String("module", "saver"),
			)
			link = ""
		}
		e.Settings.Preview = link
	}

	e.Annotations = stripMap(e.Annotations)
	e.RelatedDigitalEntity = e.RelatedDigitalEntity.Stripped()
}

// liveDigitalEntity returns the hydrated digital entity, or the stored one
// when only a reference is held.
func (s *Saver) liveDigitalEntity(ctx context.Context, ref domain.Ref[domain.DigitalEntity]) *domain.DigitalEntity {
	if ref.IsResolved() {
		return ref.Value
	}
	if ref.ID == "" {
		return nil
	}
	var stored domain.DigitalEntity
	if err := s.store.FindOne(ctx, domain.CollectionDigitalEntity, domain.ByID(ref.ID), &stored); err != nil {
		return nil
	}
	return &stored
}

func (s *Saver) loadStored(ctx context.Context, c domain.Collection, id string, out any) (bool, error) {
	err := s.store.FindOne(ctx, c, domain.ByID(id), out)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func ownerAccess(user *domain.User) map[string]domain.AccessEntry {
	return map[string]domain.AccessEntry{
		user.ID: {
			Role:     domain.RoleOwner,
			Username: user.Username,
			Fullname: user.Fullname,
		},
	}
}

// mergeOwned keeps every stored owner key and lets incoming keys replace
// the stored entry of the same owner.
func mergeOwned[V any](stored, incoming map[string]V) map[string]V {
	if len(stored) == 0 {
		return incoming
	}
	out := make(map[string]V, len(stored)+len(incoming))
	for k, v := range stored {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

func unionRefs[T any](stored, incoming []domain.Ref[T]) []domain.Ref[T] {
	out := make([]domain.Ref[T], 0, len(stored)+len(incoming))
	seen := make(map[string]bool, len(stored)+len(incoming))
	for _, ref := range append(slices.Clone(stored), incoming...) {
		id := ref.RefID()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, ref)
	}
	return out
}

func stripList[T any](refs []domain.Ref[T]) []domain.Ref[T] {
	if refs == nil {
		return nil
	}
	out := make([]domain.Ref[T], 0, len(refs))
	for _, ref := range refs {
		if ref.RefID() != "" {
			out = append(out, ref.Stripped())
		}
	}
	return out
}

func stripMap[T any](refs map[string]domain.Ref[T]) map[string]domain.Ref[T] {
	if refs == nil {
		return nil
	}
	out := make(map[string]domain.Ref[T], len(refs))
	for k, ref := range refs {
		if ref.RefID() != "" {
			out[k] = ref.Stripped()
		}
	}
	return out
}
