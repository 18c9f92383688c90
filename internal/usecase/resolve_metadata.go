package usecase

import (
	"context"

	"github.com/totegamma/heritage-repo/internal/domain"
)

// Persons and institutions are shared between metadata entities. When they
// are reached from a metadata entity, owner is that entity's id and only its
// slice of every relation map survives. owner is empty for standalone lookups.

func (r *Resolver) person(ctx context.Context, ref domain.Ref[domain.Person], depth int, owner string) *domain.Person {
	var scope func(*domain.Person)
	if owner != "" {
		scope = func(p *domain.Person) { p.FilterByOwner(owner) }
	}
	return resolveRef(ctx, r, domain.CollectionPerson, ref, depth, scope, func(ctx context.Context, p *domain.Person, depth int) error {
		p.ContactReferences = resolveMap(ctx, p.ContactReferences, func(ctx context.Context, ref domain.Ref[domain.Contact]) *domain.Contact {
			return r.contact(ctx, ref, depth)
		})
		p.Institutions = resolveMapList(ctx, p.Institutions, func(ctx context.Context, ref domain.Ref[domain.Institution]) *domain.Institution {
			// scoped by the metadata entity being walked, not by this person
			return r.institution(ctx, ref, depth, owner)
		})
		return nil
	})
}

func (r *Resolver) institution(ctx context.Context, ref domain.Ref[domain.Institution], depth int, owner string) *domain.Institution {
	var scope func(*domain.Institution)
	if owner != "" {
		scope = func(i *domain.Institution) { i.FilterByOwner(owner) }
	}
	return resolveRef(ctx, r, domain.CollectionInstitution, ref, depth, scope, func(ctx context.Context, i *domain.Institution, depth int) error {
		i.Addresses = resolveMap(ctx, i.Addresses, func(ctx context.Context, ref domain.Ref[domain.Address]) *domain.Address {
			return r.address(ctx, ref, depth)
		})
		return nil
	})
}

func (r *Resolver) digitalEntity(ctx context.Context, ref domain.Ref[domain.DigitalEntity], depth int) *domain.DigitalEntity {
	return resolveRef(ctx, r, domain.CollectionDigitalEntity, ref, depth, nil, func(ctx context.Context, d *domain.DigitalEntity, depth int) error {
		persons, institutions := r.metadataRelations(ctx, d.ID, d.Persons, d.Institutions, depth)
		d.Persons = persons
		d.Institutions = institutions
		d.Tags = resolveAll(ctx, d.Tags, func(ctx context.Context, ref domain.Ref[domain.Tag]) *domain.Tag {
			return r.tag(ctx, ref, depth)
		})
		d.PhyObjs = resolveAll(ctx, d.PhyObjs, func(ctx context.Context, ref domain.Ref[domain.PhysicalEntity]) *domain.PhysicalEntity {
			return r.physicalEntity(ctx, ref, depth)
		})
		return nil
	})
}

func (r *Resolver) physicalEntity(ctx context.Context, ref domain.Ref[domain.PhysicalEntity], depth int) *domain.PhysicalEntity {
	return resolveRef(ctx, r, domain.CollectionPhysicalEntity, ref, depth, nil, func(ctx context.Context, p *domain.PhysicalEntity, depth int) error {
		persons, institutions := r.metadataRelations(ctx, p.ID, p.Persons, p.Institutions, depth)
		p.Persons = persons
		p.Institutions = institutions
		return nil
	})
}

// metadataRelations resolves the persons and institutions of the metadata
// entity id, scoped to id.
func (r *Resolver) metadataRelations(
	ctx context.Context,
	id string,
	persons []domain.Ref[domain.Person],
	institutions []domain.Ref[domain.Institution],
	depth int,
) ([]domain.Ref[domain.Person], []domain.Ref[domain.Institution]) {
	done := make(chan []domain.Ref[domain.Person], 1)
	go func() {
		done <- resolveAll(ctx, persons, func(ctx context.Context, ref domain.Ref[domain.Person]) *domain.Person {
			return r.person(ctx, ref, depth, id)
		})
	}()
	resolvedInstitutions := resolveAll(ctx, institutions, func(ctx context.Context, ref domain.Ref[domain.Institution]) *domain.Institution {
		return r.institution(ctx, ref, depth, id)
	})
	return <-done, resolvedInstitutions
}
