package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/totegamma/heritage-repo/internal/domain"
)

func TestRunFoldsInOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Add(domain.CollectionTag, OnResolve, func(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error) {
		tag := doc.(*domain.Tag)
		tag.Value += "a"
		return tag, nil
	})
	reg.Add(domain.CollectionTag, OnResolve, func(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error) {
		tag := doc.(*domain.Tag)
		tag.Value += "b"
		return tag, nil
	})

	out := reg.Run(context.Background(), domain.CollectionTag, OnResolve, &domain.Tag{Value: "x"}, nil)
	if got := out.(*domain.Tag).Value; got != "xab" {
		t.Fatalf("expected xab, got %s", got)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	reg := NewRegistry()
	reg.Add(domain.CollectionTag, OnTransform, func(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error) {
		tag := doc.(*domain.Tag)
		tag.Value = "clobbered"
		return nil, errors.New("boom")
	})
	reg.Add(domain.CollectionTag, OnTransform, func(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error) {
		panic("worse")
	})
	reg.Add(domain.CollectionTag, OnTransform, func(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error) {
		return &domain.Contact{}, nil
	})
	reg.Add(domain.CollectionTag, OnTransform, func(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error) {
		return (*domain.Tag)(nil), nil
	})
	reg.Add(domain.CollectionTag, OnTransform, func(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error) {
		tag := doc.(*domain.Tag)
		tag.Value += "!"
		return tag, nil
	})

	in := &domain.Tag{Value: "keep"}
	out := reg.Run(context.Background(), domain.CollectionTag, OnTransform, in, nil)

	if got := out.(*domain.Tag).Value; got != "keep!" {
		t.Fatalf("expected keep!, got %s", got)
	}
	if in.Value != "keep" {
		t.Fatalf("caller's document was mutated: %s", in.Value)
	}
}

func TestRunWithoutHooksReturnsInput(t *testing.T) {
	reg := NewRegistry()
	in := &domain.Address{City: "Cologne"}
	if out := reg.Run(context.Background(), domain.CollectionAddress, AfterSave, in, nil); out != in {
		t.Fatalf("expected the same document back")
	}
}

func TestAddAfterSealPanics(t *testing.T) {
	reg := NewRegistry()
	reg.Seal()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	reg.Add(domain.CollectionTag, OnDelete, func(ctx context.Context, doc domain.Document, user *domain.User) (domain.Document, error) {
		return doc, nil
	})
}
