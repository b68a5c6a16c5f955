// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Product
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a product is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience). Callers must not
//     confuse absence with failure: list queries report an empty slice, not
//     an error, when nothing matches.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-product-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ListProducts returns all products ordered by creation time descending
// (most recent first). It returns an empty slice when the catalogue is empty.
// On DB error, it returns the error.
func ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountProducts returns the total number of products.
// On DB error, it returns the error.
func CountProducts(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Product{}).
		Count(&total).Error
	return total, err
}

// ListProductsPage returns a paginated slice of products, ordered by creation
// time descending. Use CountProducts to obtain the total for pagination
// metadata. On DB error, it returns the error.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListProductsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetProduct fetches a single product by its ID. If the record does not
// exist, it returns ErrNotFound. On other DB errors, the raw error is
// returned.
func GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProductsByCategory returns all products referencing categoryID, ordered
// by creation time descending. A category with no products yields an empty
// slice, not an error. On DB error, it returns the error.
func ListProductsByCategory(ctx context.Context, db *gorm.DB, categoryID string) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpsertProduct inserts the product, or updates the existing row when a
// product with the same ID already exists (create-or-update by payload
// identity). A payload without an ID is assigned a fresh UUID before insert.
//
// Repeated calls with an identical payload converge to the same stored row,
// which makes the operation safe to retry. On success, it returns the
// persisted product. On failure, it returns a DB error.
func UpsertProduct(ctx context.Context, db *gorm.DB, p *domain.Product) (*domain.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(p).Error
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct removes the product identified by id (soft delete). If no
// rows are affected (product missing or already deleted), it returns
// ErrNotFound. On DB error, the raw error is returned.
func DeleteProduct(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
