// Package services – ProductService
//
// This file implements the ProductService, which coordinates repository
// operations for the product catalogue: listing (optionally paginated),
// lookup by id, lookup by category, create-or-update (upsert), and deletion.
// The service treats the product payload as largely opaque: beyond presence
// of a name it performs no schema validation, mirroring the store contract.
//
// Service-level errors (e.g., ErrProductNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
// Any other error is a data-access failure and surfaces as a 500 at the
// handler boundary.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-product-backend/internal/domain"
)

// ProductRepo defines the repository contract required by ProductService.
// Implementations are responsible for persistence of product aggregates.
type ProductRepo interface {
	// ListProducts returns all products (non-paginated).
	ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error)

	// CountProducts returns the total number of products for pagination.
	CountProducts(ctx context.Context, db *gorm.DB) (int64, error)

	// ListProductsPage returns a page of products.
	ListProductsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Product, error)

	// GetProduct fetches a product by ID.
	GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error)

	// ListProductsByCategory returns the products referencing a category.
	ListProductsByCategory(ctx context.Context, db *gorm.DB, categoryID string) ([]domain.Product, error)

	// UpsertProduct inserts or updates a product by payload identity.
	UpsertProduct(ctx context.Context, db *gorm.DB, p *domain.Product) (*domain.Product, error)

	// DeleteProduct removes a product by ID.
	DeleteProduct(ctx context.Context, db *gorm.DB, id string) error
}

// ProductService provides catalogue-level operations. It performs exactly one
// store call per invocation and owns the translation of repository errors
// into service sentinels.
type ProductService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the product repository used by this service.
	Repo ProductRepo
}

// NewProductService constructs a ProductService bound to the given handle and
// repository.
func NewProductService(db *gorm.DB, r ProductRepo) *ProductService {
	return &ProductService{DB: db, Repo: r}
}

// List returns all products (non-paginated).
// Prefer ListPage for scalability on large catalogues.
func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	return s.Repo.ListProducts(ctx, s.DB)
}

// ListPage returns a page of products (paginated). It applies defaults for
// invalid page/pageSize and returns the total count.
func (s *ProductService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Product, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountProducts(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Product{}, 0, nil
	}

	items, err := s.Repo.ListProductsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Get fetches a product by ID. Absence is reported as ErrProductNotFound so
// callers can distinguish "not found" from "failure".
func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.Repo.GetProduct(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListByCategory returns the products in a category. An unknown or empty
// category yields an empty slice, not an error.
func (s *ProductService) ListByCategory(ctx context.Context, categoryID string) ([]domain.Product, error) {
	return s.Repo.ListProductsByCategory(ctx, s.DB, categoryID)
}

// Save creates the product or updates the existing row with the same ID
// (upsert by payload identity). Repeated identical calls converge to the same
// stored record. The only validation is presence of a name.
func (s *ProductService) Save(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return nil, ErrEmptyProduct
	}
	p.Name = strings.TrimSpace(p.Name)
	return s.Repo.UpsertProduct(ctx, s.DB, p)
}

// Delete removes a product by ID. A missing product is reported as
// ErrProductNotFound.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	err := s.Repo.DeleteProduct(ctx, s.DB, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProductNotFound
	}
	return err
}
