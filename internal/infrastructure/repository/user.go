package repository

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/heritage-repo/internal/domain"
	"github.com/totegamma/heritage-repo/internal/infrastructure/database/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	var model models.User
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundError{Resource: "user"}
	}
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}
	return toDomainUser(model)
}

func (r *UserRepository) Upsert(ctx context.Context, user domain.User) error {
	model, err := toModelUser(user)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "fullname", "prename", "surname", "mail", "role"}),
	}).Create(&model).Error
}

// AddPossession appends id to the user's possession list for c. Adding an id
// that is already present is a no-op.
func (r *UserRepository) AddPossession(ctx context.Context, userID string, c domain.Collection, id string) error {
	return r.updateData(ctx, userID, func(data map[domain.Collection][]string) bool {
		if slices.Contains(data[c], id) {
			return false
		}
		data[c] = append(data[c], id)
		return true
	})
}

func (r *UserRepository) RemovePossession(ctx context.Context, userID string, c domain.Collection, id string) error {
	return r.updateData(ctx, userID, func(data map[domain.Collection][]string) bool {
		before := len(data[c])
		data[c] = slices.DeleteFunc(data[c], func(v string) bool { return v == id })
		return len(data[c]) != before
	})
}

func (r *UserRepository) updateData(ctx context.Context, userID string, mutate func(map[domain.Collection][]string) bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NotFoundError{Resource: "user"}
		}
		if err != nil {
			return err
		}

		data, err := decodeData(model.Data)
		if err != nil {
			return err
		}
		if !mutate(data) {
			return nil
		}

		encoded, err := encodeData(data)
		if err != nil {
			return err
		}
		return tx.Model(&model).Update("data", encoded).Error
	})
}

func toDomainUser(model models.User) (*domain.User, error) {
	data, err := decodeData(model.Data)
	if err != nil {
		return nil, err
	}
	return &domain.User{
		ID:       model.ID,
		Username: model.Username,
		Fullname: model.Fullname,
		Prename:  model.Prename,
		Surname:  model.Surname,
		Mail:     model.Mail,
		Role:     model.Role,
		Data:     data,
	}, nil
}

func toModelUser(user domain.User) (models.User, error) {
	data, err := encodeData(user.Data)
	if err != nil {
		return models.User{}, err
	}
	return models.User{
		ID:       user.ID,
		Username: user.Username,
		Fullname: user.Fullname,
		Prename:  user.Prename,
		Surname:  user.Surname,
		Mail:     user.Mail,
		Role:     user.Role,
		Data:     data,
	}, nil
}

func decodeData(raw string) (map[domain.Collection][]string, error) {
	data := make(map[domain.Collection][]string)
	if raw == "" || raw == "null" {
		return data, nil
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, errors.Wrap(err, "decode possession list")
	}
	return data, nil
}

func encodeData(data map[domain.Collection][]string) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", errors.Wrap(err, "encode possession list")
	}
	return string(b), nil
}
