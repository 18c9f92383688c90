package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/heritage-repo/internal/domain"
	"github.com/totegamma/heritage-repo/internal/hook"
)

func seedDeleteScenario(t *testing.T, env *testEnv) {
	env.put(t, withID("E1", &domain.Entity{Name: "Helmet"}))
	env.put(t, withID("E2", &domain.Entity{Name: "Sword"}))
	env.put(t, withID("C1", &domain.Compilation{
		Name: "Exhibition",
		Entities: map[string]domain.Ref[domain.Entity]{
			"E1": domain.NewRef[domain.Entity]("E1"),
			"E2": domain.NewRef[domain.Entity]("E2"),
		},
	}))
	env.put(t, withID("A1", &domain.Annotation{Target: domain.AnnotationTarget{
		Source: domain.AnnotationSource{RelatedEntity: "E1"},
	}}))
	env.put(t, withID("A2", &domain.Annotation{Target: domain.AnnotationTarget{
		Source: domain.AnnotationSource{RelatedEntity: "E1", RelatedCompilation: "C1"},
	}}))
	env.put(t, withID("A3", &domain.Annotation{Target: domain.AnnotationTarget{
		Source: domain.AnnotationSource{RelatedEntity: "E2"},
	}}))
}

func TestDeleteAny_EntityScenario(t *testing.T) {
	env := newTestEnv(t)
	seedDeleteScenario(t, env)
	ctx := context.Background()

	require.NoError(t, env.deleter.DeleteAny(ctx, domain.CollectionEntity, "E1", testUser, true))

	var c domain.Compilation
	env.get(t, domain.CollectionCompilation, "C1", &c)
	assert.Equal(t, []string{"E2"}, keys(c.Entities))

	var a domain.Annotation
	err := env.mem.FindOne(ctx, domain.CollectionAnnotation, domain.ByID("A1"), &a)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	env.get(t, domain.CollectionAnnotation, "A2", &a)
	env.get(t, domain.CollectionAnnotation, "A3", &a)

	assert.Equal(t, 1, env.mem.Count(domain.CollectionEntity))
	assert.Equal(t, []string{"entity:E1"}, env.possessions.removed["u1"])
}

func TestDeleteAny_Compilation(t *testing.T) {
	env := newTestEnv(t)
	seedDeleteScenario(t, env)

	require.NoError(t, env.deleter.DeleteAny(context.Background(), domain.CollectionCompilation, "C1", testUser, true))

	assert.Equal(t, 0, env.mem.Count(domain.CollectionCompilation))
	assert.Equal(t, 2, env.mem.Count(domain.CollectionAnnotation))
	assert.Equal(t, 2, env.mem.Count(domain.CollectionEntity))
}

func TestDeleteAny_InvalidatesCache(t *testing.T) {
	env := newTestEnv(t)
	seedDeleteScenario(t, env)
	ctx := context.Background()

	require.NotNil(t, env.resolver.ResolveCompilation(ctx, domain.NewRef[domain.Compilation]("C1"), 0))
	require.NotNil(t, env.resolver.ResolveEntity(ctx, domain.NewRef[domain.Entity]("E1"), 0))

	require.NoError(t, env.deleter.DeleteAny(ctx, domain.CollectionEntity, "E1", testUser, true))

	assert.Nil(t, env.resolver.ResolveEntity(ctx, domain.NewRef[domain.Entity]("E1"), 0))
	c := env.resolver.ResolveCompilation(ctx, domain.NewRef[domain.Compilation]("C1"), 0)
	require.NotNil(t, c)
	assert.NotContains(t, c.Entities, "E1")
}

func TestDeleteAny_NotAllowed(t *testing.T) {
	env := newTestEnv(t)
	seedDeleteScenario(t, env)

	err := env.deleter.DeleteAny(context.Background(), domain.CollectionEntity, "E1", testUser, false)
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))
	assert.Equal(t, 2, env.mem.Count(domain.CollectionEntity))
}

func TestDeleteAny_Missing(t *testing.T) {
	env := newTestEnv(t)
	err := env.deleter.DeleteAny(context.Background(), domain.CollectionTag, "nope", testUser, true)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Empty(t, env.possessions.removed)
}

func TestDeleteAny_OnDeleteHookSeesDocument(t *testing.T) {
	env := newTestEnv(t)
	env.put(t, withID("T1", &domain.Tag{Value: "bronze"}))

	var seen string
	env.hooks.Add(domain.CollectionTag, hook.OnDelete, func(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error) {
		seen = doc.(*domain.Tag).Value
		return doc, nil
	})
	env.hooks.Seal()

	require.NoError(t, env.deleter.DeleteAny(context.Background(), domain.CollectionTag, "T1", testUser, true))
	assert.Equal(t, "bronze", seen)
}

func TestDeleteAny_CleanupFailureIsNotSurfaced(t *testing.T) {
	env := newTestEnv(t)
	seedDeleteScenario(t, env)
	env.store.failDeleteMany = true
	env.store.failFind[domain.CollectionCompilation] = true

	require.NoError(t, env.deleter.DeleteAny(context.Background(), domain.CollectionEntity, "E1", testUser, true))
	assert.Equal(t, 1, env.mem.Count(domain.CollectionEntity))
	assert.Equal(t, 3, env.mem.Count(domain.CollectionAnnotation))
}
