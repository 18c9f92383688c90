package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/totegamma/heritage-repo/internal/domain"
	"github.com/totegamma/heritage-repo/internal/hook"
	"github.com/totegamma/heritage-repo/internal/infrastructure/cache"
	"github.com/totegamma/heritage-repo/internal/infrastructure/store"
)

// switchBackend wraps a real cache backend and can be made to fail.
type switchBackend struct {
	inner  cache.Backend
	broken atomic.Bool
}

var errBackendDown = errors.New("backend down")

func (b *switchBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if b.broken.Load() {
		return nil, errBackendDown
	}
	return b.inner.Get(ctx, key)
}

func (b *switchBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if b.broken.Load() {
		return errBackendDown
	}
	return b.inner.Set(ctx, key, value, ttl)
}

func (b *switchBackend) Delete(ctx context.Context, key string) error {
	if b.broken.Load() {
		return errBackendDown
	}
	return b.inner.Delete(ctx, key)
}

func (b *switchBackend) Clear(ctx context.Context) error {
	if b.broken.Load() {
		return errBackendDown
	}
	return b.inner.Clear(ctx)
}

// recordingStore wraps a store, records writes and can inject failures.
type recordingStore struct {
	DocumentStore

	mu      sync.Mutex
	updates []string

	failFind       map[domain.Collection]bool
	failFindOne    map[domain.Collection]bool
	failUpdate     map[domain.Collection]bool
	failDeleteMany bool
	afterFindOne   func(c domain.Collection)
}

func (s *recordingStore) FindOne(ctx context.Context, c domain.Collection, filter domain.Filter, out any) error {
	if s.failFindOne[c] {
		return errors.New("findOne failed")
	}
	err := s.DocumentStore.FindOne(ctx, c, filter, out)
	if s.afterFindOne != nil {
		s.afterFindOne(c)
	}
	return err
}

func (s *recordingStore) Find(ctx context.Context, c domain.Collection, filter domain.Filter, out any) error {
	if s.failFind[c] {
		return errors.New("find failed")
	}
	return s.DocumentStore.Find(ctx, c, filter, out)
}

func (s *recordingStore) UpdateOne(ctx context.Context, c domain.Collection, filter domain.Filter, update domain.Update, upsert bool) (domain.UpdateResult, error) {
	if s.failUpdate[c] {
		return domain.UpdateResult{}, errors.New("update failed")
	}
	s.mu.Lock()
	id, _ := filter["_id"].(string)
	s.updates = append(s.updates, string(c)+":"+id)
	s.mu.Unlock()
	return s.DocumentStore.UpdateOne(ctx, c, filter, update, upsert)
}

func (s *recordingStore) DeleteMany(ctx context.Context, c domain.Collection, filter domain.Filter) (int64, error) {
	if s.failDeleteMany {
		return 0, errors.New("deleteMany failed")
	}
	return s.DocumentStore.DeleteMany(ctx, c, filter)
}

func (s *recordingStore) writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.updates...)
}

type fakePossessions struct {
	mu      sync.Mutex
	added   map[string][]string
	removed map[string][]string
}

func newFakePossessions() *fakePossessions {
	return &fakePossessions{added: map[string][]string{}, removed: map[string][]string{}}
}

func (p *fakePossessions) AddPossession(ctx context.Context, userID string, c domain.Collection, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added[userID] = append(p.added[userID], string(c)+":"+id)
	return nil
}

func (p *fakePossessions) RemovePossession(ctx context.Context, userID string, c domain.Collection, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed[userID] = append(p.removed[userID], string(c)+":"+id)
	return nil
}

type fakePreviews struct {
	calls []string
}

func (p *fakePreviews) Persist(ctx context.Context, preview string) (string, error) {
	p.calls = append(p.calls, preview)
	return "/previews/stored.png", nil
}

type testEnv struct {
	mem         *store.MemoryStore
	store       *recordingStore
	backend     *switchBackend
	cache       *cache.Cache
	hooks       *hook.Registry
	possessions *fakePossessions
	previews    *fakePreviews
	resolver    *Resolver
	saver       *Saver
	deleter     *Deleter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mem := store.NewMemoryStore()
	rec := &recordingStore{
		DocumentStore: mem,
		failFind:      map[domain.Collection]bool{},
		failFindOne:   map[domain.Collection]bool{},
		failUpdate:    map[domain.Collection]bool{},
	}
	backend := &switchBackend{inner: cache.NewMemoryBackend(time.Minute, time.Minute)}
	entities := cache.New(cache.NamespaceEntities, backend, time.Minute)
	hooks := hook.NewRegistry()
	possessions := newFakePossessions()
	previews := &fakePreviews{}

	return &testEnv{
		mem:         mem,
		store:       rec,
		backend:     backend,
		cache:       entities,
		hooks:       hooks,
		possessions: possessions,
		previews:    previews,
		resolver:    NewResolver(rec, entities, hooks),
		saver:       NewSaver(rec, entities, hooks, possessions, previews),
		deleter:     NewDeleter(rec, entities, hooks, possessions),
	}
}

// put writes doc straight into the store, bypassing the saver.
func (e *testEnv) put(t *testing.T, doc domain.Document) {
	t.Helper()
	_, err := e.mem.UpdateOne(context.Background(), doc.Collection(), domain.ByID(doc.DocID()), domain.Update{Set: doc}, true)
	require.NoError(t, err)
}

func (e *testEnv) get(t *testing.T, c domain.Collection, id string, out any) {
	t.Helper()
	require.NoError(t, e.mem.FindOne(context.Background(), c, domain.ByID(id), out))
}

func withID[T any, PT docPtr[T]](id string, doc PT) PT {
	doc.SetDocID(id)
	return doc
}

var testUser = &domain.User{
	ID:       "u1",
	Username: "alice",
	Fullname: "Alice Example",
}
