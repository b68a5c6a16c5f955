// Product HTTP handlers.
//
// This file exposes REST endpoints for the product catalogue:
//   - GET    /products               (list, paginated, ETag support; identity optional)
//   - GET    /products/:id           (fetch one, anonymous-open)
//   - GET    /products/bycat/:catId  (list by category, anonymous-open)
//   - POST   /products               (upsert; requires "create" capability)
//   - PUT    /products               (upsert; requires "update" capability)
//   - DELETE /products/:id           (delete; requires "delete" capability)
//
// Handlers are transport-thin: they validate input presence, call the product
// service, and translate the three-way outcome (success / not found / failure)
// into HTTP responses. Capability checks happen upstream in the
// RequireCapability middleware, strictly before these handlers run, so no
// mutating handler executes for a denied request.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-product-backend/internal/domain"
	"github.com/tbourn/go-product-backend/internal/http/middleware"
	"github.com/tbourn/go-product-backend/internal/repo"
	"github.com/tbourn/go-product-backend/internal/services"
	"github.com/tbourn/go-product-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ProductService defines catalogue operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ProductService interface {
	// List returns all products (legacy, non-paginated).
	List(ctx context.Context) ([]domain.Product, error)
	// ListPage returns a page of products and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Product, int64, error)
	// Get fetches a product by id; absence is services.ErrProductNotFound.
	Get(ctx context.Context, id string) (*domain.Product, error)
	// ListByCategory returns the products in a category (empty slice when none).
	ListByCategory(ctx context.Context, categoryID string) ([]domain.Product, error)
	// Save creates or updates a product by payload identity (upsert).
	Save(ctx context.Context, p *domain.Product) (*domain.Product, error)
	// Delete removes a product by id; absence is services.ErrProductNotFound.
	Delete(ctx context.Context, id string) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for products and user identity.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	productSvc ProductService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(productSvc ProductService) *Handlers {
	return &Handlers{productSvc: productSvc}
}

//
// DTOs
//

// SaveProductRequest is the JSON payload for creating or updating a product.
// An empty ID creates a new product; a known ID updates the stored row.
type SaveProductRequest struct {
	// ID optionally identifies an existing product to update.
	ID string `json:"id,omitempty" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// Name is the product display name (required).
	Name string `json:"name" binding:"required,min=1" example:"Widget"`
	// Description optionally describes the product.
	Description string `json:"description,omitempty" example:"A very fine widget"`
	// Price is the unit price.
	Price float64 `json:"price" example:"9.99"`
	// CategoryID optionally references the owning category.
	CategoryID string `json:"category_id,omitempty" example:"7b59cb6b-6e41-4b1c-8e40-bf6b2ddcd69e"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListProductsResponse wraps a page of products and pagination information.
type ListProductsResponse struct {
	Products   []domain.Product `json:"products"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// serviceDB exposes the underlying store handle when the concrete product
// service is in use. Stub services used in tests yield nil, which disables
// the best-effort paths (ETag pre-check, idempotency) without affecting the
// core outcome contract.
func (h *Handlers) serviceDB() *gorm.DB {
	if svc, ok := h.productSvc.(*services.ProductService); ok {
		return svc.DB
	}
	return nil
}

// currentUserID extracts the authenticated user id set by the identity
// middleware. Anonymous callers key on the empty string; mutating handlers
// only run for authenticated callers anyway (capability gate).
func currentUserID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// failOutcome maps a service error from a lookup-style call onto the uniform
// response contract: absence → 404, anything else → 500 with the store error
// text passed through. Success is handled at each call site; together the
// three branches cover every outcome exactly once.
func failOutcome(c *gin.Context, err error) {
	if err == services.ErrProductNotFound {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "product not found")
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
}

//
// Handlers
//

// ListProducts godoc
// @ID          listProducts
// @Summary     List products (paginated)
// @Description Returns a page of the catalogue. Supports weak ETag via If-None-Match and may return 304. Anonymous callers are served identically to authenticated ones.
// @Tags        Products
// @Produce     json
//
// @Param       Authorization  header  string  false "Bearer token (optional)"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListProductsResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /products [get]
func (h *Handlers) ListProducts(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if db := h.serviceDB(); db != nil {
		count, maxTS, err := repo.ProductsStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"products:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	// Fetch page.
	items, total, err := h.productSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListProductsResponse{
		Products: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// GetProduct godoc
// @ID          getProduct
// @Summary     Fetch a product by id
// @Description Returns a single product. Anonymous-open; no capability required.
// @Tags        Products
// @Produce     json
//
// @Param       id  path  string  true  "Product ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.Product
// @Failure     400  {object} handlers.ErrorResponse "Missing id"
// @Failure     404  {object} handlers.ErrorResponse "Product not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /products/{id} [get]
func (h *Handlers) GetProduct(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing product id")
		return
	}

	p, err := h.productSvc.Get(c.Request.Context(), id)
	if err != nil {
		failOutcome(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ListProductsByCategory godoc
// @ID          listProductsByCategory
// @Summary     List products in a category
// @Description Returns every product referencing the category. An unknown or empty category yields 200 with an empty array, not an error.
// @Tags        Products
// @Produce     json
//
// @Param       catId  path  string  true  "Category ID"
//
// @Success     200  {array}  domain.Product
// @Failure     400  {object} handlers.ErrorResponse "Missing catId"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /products/bycat/{catId} [get]
func (h *Handlers) ListProductsByCategory(c *gin.Context) {
	catID := strings.TrimSpace(c.Param("catId"))
	if catID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing cat id")
		return
	}

	items, err := h.productSvc.ListByCategory(c.Request.Context(), catID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Product{}
	}
	ok(c, http.StatusOK, items)
}

// SaveProduct godoc
// @ID          saveProduct
// @Summary     Create or update a product
// @Description Upserts a product by payload identity: POST and PUT share this path. Requires the "create" (POST) or "update" (PUT) capability, enforced by middleware before the handler runs. Returns the stored record, including the generated id on first save.
// @Description Supports idempotency via the Idempotency-Key header: a retry with the same key replays the previously stored product instead of re-executing the upsert.
// @Tags        Products
// @Accept      json
// @Produce     json
//
// @Param       Authorization    header  string  true  "Bearer token"
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.SaveProductRequest  true  "Product payload"
//
// @Success     200  {object} domain.Product
// @Header      200  {string} Idempotency-Replayed "true when a stored result was replayed"
// @Failure     400  {object} handlers.ErrorResponse "Missing product data"
// @Failure     401  {object} handlers.ErrorResponse "Authentication required"
// @Failure     403  {object} handlers.ErrorResponse "Missing capability"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /products [post]
func (h *Handlers) SaveProduct(c *gin.Context) {
	ctx := c.Request.Context()

	var req SaveProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing product data")
		return
	}

	// Idempotency (replay path) – serve the previously stored product.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	db := h.serviceDB()
	if idemKey != "" && db != nil {
		if rec, err := repo.GetIdempotency(ctx, db, currentUserID(c), idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := repo.GetProduct(ctx, db, rec.ProductID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, prev)
				return
			}
		}
	}

	p, err := h.productSvc.Save(ctx, &domain.Product{
		ID:          strings.TrimSpace(req.ID),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  strings.TrimSpace(req.CategoryID),
	})
	if err != nil {
		if err == services.ErrEmptyProduct {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing product data")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, err.Error())
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && db != nil {
		ttl := 24 * time.Hour
		_, _ = repo.CreateIdempotency(ctx, db, currentUserID(c), idemKey, p.ID, http.StatusOK, ttl)
	}

	ok(c, http.StatusOK, p)
}

// DeleteProduct godoc
// @ID          deleteProduct
// @Summary     Delete a product by id
// @Description Removes a product. Requires the "delete" capability, enforced by middleware before the handler runs.
// @Description Supports idempotency via the Idempotency-Key header: a retry with the same key replays the original 200 instead of reporting 404 for the already-removed row.
// @Tags        Products
// @Produce     json
//
// @Param       Authorization    header  string  true  "Bearer token"
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Product ID (UUID)"  format(uuid)
//
// @Success     200  {object} map[string]string
// @Header      200  {string} Idempotency-Replayed "true when a stored result was replayed"
// @Failure     400  {object} handlers.ErrorResponse "Missing id"
// @Failure     401  {object} handlers.ErrorResponse "Authentication required"
// @Failure     403  {object} handlers.ErrorResponse "Missing capability"
// @Failure     404  {object} handlers.ErrorResponse "Product not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /products/{id} [delete]
func (h *Handlers) DeleteProduct(c *gin.Context) {
	ctx := c.Request.Context()

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing product id")
		return
	}

	// Idempotency (replay path) – the row is already gone; replay the 200.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	db := h.serviceDB()
	if idemKey != "" && db != nil {
		if rec, err := repo.GetIdempotency(ctx, db, currentUserID(c), idemKey, time.Now().UTC()); err == nil && rec != nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, gin.H{"deleted": rec.ProductID})
			return
		}
	}

	if err := h.productSvc.Delete(ctx, id); err != nil {
		if err == services.ErrProductNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "product not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && db != nil {
		ttl := 24 * time.Hour
		_, _ = repo.CreateIdempotency(ctx, db, currentUserID(c), idemKey, id, http.StatusOK, ttl)
	}

	ok(c, http.StatusOK, gin.H{"deleted": id})
}
