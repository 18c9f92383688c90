package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/heritage-repo/internal/domain"
	"github.com/totegamma/heritage-repo/internal/hook"
	"github.com/totegamma/heritage-repo/internal/infrastructure/cache"
	"github.com/totegamma/heritage-repo/internal/infrastructure/store"
	"github.com/totegamma/heritage-repo/internal/present/rest/middleware"
	"github.com/totegamma/heritage-repo/internal/service"
	"github.com/totegamma/heritage-repo/internal/usecase"
)

type mockUsers map[string]domain.User

func (m mockUsers) Get(ctx context.Context, id string) (*domain.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "user"}
	}
	return &u, nil
}

type testServer struct {
	e   *echo.Echo
	mem *store.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mem := store.NewMemoryStore()
	newCache := func(ns cache.Namespace) *cache.Cache {
		return cache.New(ns, cache.NewMemoryBackend(time.Minute, time.Minute), time.Minute)
	}
	entities := newCache(cache.NamespaceEntities)
	results := newCache(cache.NamespaceSearch)
	sessions := newCache(cache.NamespaceSession)

	hooks := hook.NewRegistry()
	resolver := usecase.NewResolver(mem, entities, hooks)
	saver := usecase.NewSaver(mem, entities, hooks, nil, nil)
	deleter := usecase.NewDeleter(mem, entities, hooks, nil)
	search := usecase.NewSearchUsecase(mem, results)
	service.NewSearchService(search, saver).Register(hooks)
	hooks.Seal()

	auth := service.NewAuthService(sessions, mockUsers{
		"u1": {ID: "u1", Username: "alice", Data: map[domain.Collection][]string{domain.CollectionTag: {"T1"}}},
		"u2": {ID: "u2", Username: "bob"},
	})
	sessions.Set(context.Background(), service.SessionKey("alice-token"), domain.Session{UserID: "u1"}, 0)
	sessions.Set(context.Background(), service.SessionKey("bob-token"), domain.Session{UserID: "u2"}, 0)

	e := echo.New()
	e.Use(middleware.NewAuthMiddleware(auth).IdentifyIdentity)
	NewHandler(resolver, saver, deleter, search, usecase.NewUserDataUsecase(resolver), nil, auth).RegisterRoutes(e)

	return &testServer{e: e, mem: mem}
}

func (s *testServer) do(t *testing.T, method, target, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestHandler_PushRequiresUser(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodPost, "/api/v1/post/push/entity", "", `{"name":"Helmet"}`)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/post/push/entity", "garbage", `{"name":"Helmet"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestHandler_PushFindSearch(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/v1/post/push/entity", "alice-token", `{"name":"Bronze Helmet"}`)
	require.Equal(t, http.StatusOK, code)
	id, _ := body["_id"].(string)
	require.NotEmpty(t, id)

	code, body = s.do(t, http.MethodGet, "/api/v1/get/find/entity/"+id+"?depth=0", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Bronze Helmet", body["name"])
	assert.Equal(t, "bronze helmet", body["__normalizedName"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/get/search/entity?text=HELMET", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0]["_id"])
}

func TestHandler_FindErrors(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/v1/get/find/users/x", "", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/get/find/entity/x?depth=-1", "", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/get/find/entity/missing", "", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/get/search/person?text=x", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandler_ValidationError(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(t, http.MethodPost, "/api/v1/post/push/entity", "alice-token", `{"files":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "name")
}

func TestHandler_OnlyOwnersUpdateAndRemove(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/v1/post/push/entity", "alice-token", `{"name":"Helmet"}`)
	require.Equal(t, http.StatusOK, code)
	id := body["_id"].(string)

	code, _ = s.do(t, http.MethodPost, "/api/v1/post/push/entity", "bob-token", `{"_id":"`+id+`","name":"Mine"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/post/remove/entity/"+id, "bob-token", "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, 1, s.mem.Count(domain.CollectionEntity))

	code, _ = s.do(t, http.MethodPost, "/api/v1/post/remove/entity/"+id, "alice-token", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/get/find/entity/"+id, "", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/post/remove/entity/"+id, "alice-token", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandler_CompilationPassword(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/v1/post/push/compilation", "alice-token", `{"name":"Private","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, code)
	id := body["_id"].(string)

	code, _ = s.do(t, http.MethodGet, "/api/v1/get/find/compilation/"+id, "", "")
	assert.Equal(t, http.StatusForbidden, code)

	code, body = s.do(t, http.MethodGet, "/api/v1/get/find/compilation/"+id+"?password=hunter2", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body, "password")

	code, body = s.do(t, http.MethodGet, "/api/v1/get/find/compilation/"+id, "alice-token", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body, "password")
}

func TestHandler_UserData(t *testing.T) {
	s := newTestServer(t)
	tag := &domain.Tag{Value: "bronze"}
	tag.ID = "T1"
	_, err := s.mem.UpdateOne(context.Background(), domain.CollectionTag, domain.ByID("T1"), domain.Update{Set: tag}, true)
	require.NoError(t, err)

	code, _ := s.do(t, http.MethodGet, "/api/v1/user-data", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(t, http.MethodGet, "/api/v1/user-data", "alice-token", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", body["username"])
	data := body["data"].(map[string]any)
	tags := data["tag"].([]any)
	require.Len(t, tags, 1)
	assert.Equal(t, "bronze", tags[0].(map[string]any)["value"])
}

func TestHandler_Logout(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/v1/logout", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/user-data", "alice-token", "")
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/logout", "alice-token", "")
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/user-data", "alice-token", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/user-data", "bob-token", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestHandler_RealtimeDisabled(t *testing.T) {
	s := newTestServer(t)
	code, _ := s.do(t, http.MethodGet, "/realtime", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
