// Package hook holds the per-collection callback lists run by the resolver,
// the saver and the deletion cascade.
package hook

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/totegamma/heritage-repo/internal/domain"
)

type Phase string

const (
	OnTransform Phase = "onTransform"
	OnResolve   Phase = "onResolve"
	OnDelete    Phase = "onDelete"
	AfterSave   Phase = "afterSave"
)

// Func receives a private copy of the document and returns the document the
// next callback should see. user may be nil.
type Func func(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error)

type key struct {
	collection domain.Collection
	phase      Phase
}

type Registry struct {
	mu     sync.RWMutex
	hooks  map[key][]Func
	sealed bool
}

func NewRegistry() *Registry {
	return &Registry{hooks: make(map[key][]Func)}
}

// Add appends fn to the (collection, phase) list. Registration must finish
// before Seal is called.
func (r *Registry) Add(collection domain.Collection, phase Phase, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		panic(fmt.Sprintf("hook: %s/%s registered after Seal", collection, phase))
	}
	k := key{collection, phase}
	r.hooks[k] = append(r.hooks[k], fn)
}

// Seal ends the registration phase.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Run folds doc through every callback registered for (collection, phase).
// A failing callback is logged and skipped; the fold goes on with the value
// from before that callback.
func (r *Registry) Run(ctx context.Context, collection domain.Collection, phase Phase, doc domain.Document, user *domain.User) domain.Document {
	if r == nil {
		return doc
	}
	r.mu.RLock()
	fns := r.hooks[key{collection, phase}]
	r.mu.RUnlock()

	current := doc
	for i, fn := range fns {
		next, err := runOne(ctx, fn, current, user)
		if err == nil && (isNil(next) || next.Collection() != collection) {
			err = fmt.Errorf("hook returned %T for %s", next, collection)
		}
		if err != nil {
			slog.ErrorContext(
				ctx, "hook failed",
				slog.String("collection", string(collection)),
				slog.String("phase", string(phase)),
				slog.Int("index", i),
				slog.String("error", err.Error()),
				slog.String("module", "hook"),
			)
			continue
		}
		current = next
	}
	return current
}

// isNil also catches a typed nil pointer wrapped in the interface.
func isNil(doc domain.Document) bool {
	if doc == nil {
		return true
	}
	v := reflect.ValueOf(doc)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func runOne(ctx context.Context, fn Func, doc domain.Document, user *domain.User) (out domain.Document, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook panicked: %v", p)
		}
	}()

	copied, err := domain.CloneDocument(doc)
	if err != nil {
		return nil, err
	}
	return fn(ctx, copied, user)
}
