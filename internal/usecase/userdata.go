package usecase

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/totegamma/heritage-repo/internal/domain"
)

type UserDataUsecase struct {
	resolver *Resolver
}

func NewUserDataUsecase(resolver *Resolver) *UserDataUsecase {
	return &UserDataUsecase{resolver: resolver}
}

// Get hydrates the user's possession list at depth 0. Ids that no longer
// resolve are left out.
func (u *UserDataUsecase) Get(ctx context.Context, user *domain.User) (map[domain.Collection][]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "UserData.Get")
	defer span.End()

	out := make(map[domain.Collection][]domain.Document, len(user.Data))
	for c, ids := range user.Data {
		if !c.Valid() {
			continue
		}

		docs := make([]domain.Document, len(ids))
		var g errgroup.Group
		for i, id := range ids {
			g.Go(func() error {
				doc, err := u.resolver.ResolveAny(ctx, c, id, 0)
				docs[i] = doc
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		resolved := make([]domain.Document, 0, len(docs))
		for _, doc := range docs {
			if doc != nil {
				resolved = append(resolved, doc)
			}
		}
		out[c] = resolved
	}
	return out, nil
}
