// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the AppUser
// model, consumed primarily by identity resolution.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-product-backend/internal/domain"
)

// ListUsers returns all application users ordered by creation time ascending.
// On DB error, it returns the error.
func ListUsers(ctx context.Context, db *gorm.DB) ([]domain.AppUser, error) {
	var out []domain.AppUser
	err := db.WithContext(ctx).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// GetUserByID fetches a single user by primary key. If the record does not
// exist, it returns ErrNotFound. On other DB errors, the raw error is
// returned.
func GetUserByID(ctx context.Context, db *gorm.DB, id string) (*domain.AppUser, error) {
	var u domain.AppUser
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches a single user by unique email. This is the lookup
// the identity resolver performs for each verified token. If the record does
// not exist, it returns ErrNotFound. On other DB errors, the raw error is
// returned.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.AppUser, error) {
	var u domain.AppUser
	err := db.WithContext(ctx).
		Where("email = ?", email).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}
