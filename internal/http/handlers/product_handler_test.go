package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-product-backend/internal/domain"
	"github.com/tbourn/go-product-backend/internal/repo"
	"github.com/tbourn/go-product-backend/internal/services"
)

// ---------- test DB + repo shim ----------

func newProductDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:product_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&domain.Category{}, &domain.Product{}, &domain.AppUser{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Minimal shim implementing services.ProductRepo using the repo package
// (mirrors router.go wiring).
type testProductRepo struct{}

func (testProductRepo) ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	return repo.ListProducts(ctx, db)
}

func (testProductRepo) CountProducts(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountProducts(ctx, db)
}

func (testProductRepo) ListProductsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Product, error) {
	return repo.ListProductsPage(ctx, db, offset, limit)
}

func (testProductRepo) GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	return repo.GetProduct(ctx, db, id)
}

func (testProductRepo) ListProductsByCategory(ctx context.Context, db *gorm.DB, categoryID string) ([]domain.Product, error) {
	return repo.ListProductsByCategory(ctx, db, categoryID)
}

func (testProductRepo) UpsertProduct(ctx context.Context, db *gorm.DB, p *domain.Product) (*domain.Product, error) {
	return repo.UpsertProduct(ctx, db, p)
}

func (testProductRepo) DeleteProduct(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteProduct(ctx, db, id)
}

// ---------- flexible product service stub ----------

type stubProductSvc struct {
	list     func(context.Context) ([]domain.Product, error)
	listPage func(context.Context, int, int) ([]domain.Product, int64, error)
	get      func(context.Context, string) (*domain.Product, error)
	byCat    func(context.Context, string) ([]domain.Product, error)
	save     func(context.Context, *domain.Product) (*domain.Product, error)
	del      func(context.Context, string) error

	saveCalls int
	delCalls  int
}

func (s *stubProductSvc) List(ctx context.Context) ([]domain.Product, error) {
	if s.list != nil {
		return s.list(ctx)
	}
	return nil, nil
}

func (s *stubProductSvc) ListPage(ctx context.Context, page, pageSize int) ([]domain.Product, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, page, pageSize)
	}
	return []domain.Product{}, 0, nil
}

func (s *stubProductSvc) Get(ctx context.Context, id string) (*domain.Product, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return nil, services.ErrProductNotFound
}

func (s *stubProductSvc) ListByCategory(ctx context.Context, categoryID string) ([]domain.Product, error) {
	if s.byCat != nil {
		return s.byCat(ctx, categoryID)
	}
	return nil, nil
}

func (s *stubProductSvc) Save(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	s.saveCalls++
	if s.save != nil {
		return s.save(ctx, p)
	}
	return p, nil
}

func (s *stubProductSvc) Delete(ctx context.Context, id string) error {
	s.delCalls++
	if s.del != nil {
		return s.del(ctx, id)
	}
	return nil
}

// ---------- helpers-only tests ----------

func Test_clampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=-5&page_size=9999", nil)
	p, ps := clampPagination(c)
	if p != 1 || ps != 100 {
		t.Fatalf("clamp bounds got p=%d ps=%d", p, ps)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=&page_size=0", nil)
	p, ps = clampPagination(c)
	if p != 1 || ps != 1 {
		t.Fatalf("clamp defaults got p=%d ps=%d", p, ps)
	}

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	p, ps = clampPagination(c)
	if p != 1 || ps != 20 {
		t.Fatalf("unset defaults got p=%d ps=%d", p, ps)
	}
}

// ---------- ListProducts ----------

func TestListProducts_SuccessPage_WithStub(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &stubProductSvc{
		listPage: func(_ context.Context, page, pageSize int) ([]domain.Product, int64, error) {
			if page != 2 || pageSize != 10 {
				t.Fatalf("pagination not forwarded: p=%d ps=%d", page, pageSize)
			}
			return []domain.Product{{ID: "p1", Name: "a"}}, 25, nil
		},
	}
	h := New(svc)

	r := gin.New()
	r.GET("/products", h.ListProducts)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/products?page=2&page_size=10", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp ListProductsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Products) != 1 || resp.Pagination.Total != 25 || resp.Pagination.TotalPages != 3 || !resp.Pagination.HasNext {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestListProducts_StoreError_500(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &stubProductSvc{
		listPage: func(context.Context, int, int) ([]domain.Product, int64, error) {
			return nil, 0, errors.New("query timeout")
		},
	}
	r := gin.New()
	r.GET("/products", New(svc).ListProducts)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/products", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if er.Code != ErrCodeListFailed || er.Message != "query timeout" {
		t.Fatalf("unexpected envelope: %+v", er)
	}
}

func TestListProducts_ETag_And_304(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := newProductDB(t)
	seed := domain.Product{ID: "p1", Name: "widget", Price: 1}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := services.NewProductService(db, testProductRepo{})
	r := gin.New()
	r.GET("/products", New(svc).ListProducts)

	// First request: 200 with an ETag.
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest("GET", "/products", nil))
	if w1.Code != http.StatusOK {
		t.Fatalf("first status = %d", w1.Code)
	}
	etag := w1.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag header")
	}

	// Replay with If-None-Match: 304, empty body.
	req := httptest.NewRequest("GET", "/products", nil)
	req.Header.Set("If-None-Match", etag)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusNotModified {
		t.Fatalf("replay status = %d", w2.Code)
	}
	if w2.Body.Len() != 0 {
		t.Fatalf("304 must carry no body, got %q", w2.Body.String())
	}
}

func TestListProducts_EmptyCatalogue_ZeroTimestampETag(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := services.NewProductService(newProductDB(t), testProductRepo{})
	r := gin.New()
	r.GET("/products", New(svc).ListProducts)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/products", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("ETag"); got != `W/"products:0:0"` {
		t.Fatalf("empty-state ETag = %q", got)
	}
}

// ---------- GetProduct ----------

func TestGetProduct_BlankID_400_NoServiceCall(t *testing.T) {
	gin.SetMode(gin.TestMode)

	called := false
	svc := &stubProductSvc{get: func(context.Context, string) (*domain.Product, error) {
		called = true
		return nil, nil
	}}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/products/%20", nil)
	c.Params = gin.Params{{Key: "id", Value: "   "}}

	New(svc).GetProduct(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if called {
		t.Fatalf("service must not run for a rejected request")
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if er.Code != ErrCodeBadRequest || er.Message != "missing product id" {
		t.Fatalf("unexpected envelope: %+v", er)
	}
}

func TestGetProduct_Success_NotFound_Failure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	want := &domain.Product{ID: "p1", Name: "widget", Price: 9.99}
	cases := []struct {
		name   string
		get    func(context.Context, string) (*domain.Product, error)
		status int
		code   string
	}{
		{"success", func(context.Context, string) (*domain.Product, error) { return want, nil }, http.StatusOK, ""},
		{"not found", func(context.Context, string) (*domain.Product, error) {
			return nil, services.ErrProductNotFound
		}, http.StatusNotFound, ErrCodeNotFound},
		{"store failure", func(context.Context, string) (*domain.Product, error) {
			return nil, errors.New("disk io")
		}, http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/products/:id", New(&stubProductSvc{get: tc.get}).GetProduct)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", "/products/p1", nil))
			if w.Code != tc.status {
				t.Fatalf("status = %d; want %d", w.Code, tc.status)
			}
			if tc.code == "" {
				var got domain.Product
				if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil || got.ID != "p1" {
					t.Fatalf("body decode: %v %+v", err, got)
				}
				return
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != tc.code {
				t.Fatalf("envelope decode: %v %+v", err, er)
			}
		})
	}
}

// ---------- ListProductsByCategory ----------

func TestListProductsByCategory_EmptyIsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// nil slice from the service still serializes as [].
	svc := &stubProductSvc{byCat: func(_ context.Context, catID string) ([]domain.Product, error) {
		if catID != "cat-ghost" {
			t.Fatalf("category not forwarded: %q", catID)
		}
		return nil, nil
	}}
	r := gin.New()
	r.GET("/products/bycat/:catId", New(svc).ListProductsByCategory)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/products/bycat/cat-ghost", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := bytes.TrimSpace(w.Body.Bytes()); string(got) != "[]" {
		t.Fatalf("body = %q; want []", got)
	}
}

func TestListProductsByCategory_BlankAndError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Blank category id -> 400 before any service call.
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/products/bycat/%20", nil)
	c.Params = gin.Params{{Key: "catId", Value: " "}}
	New(&stubProductSvc{}).ListProductsByCategory(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank catId status = %d", w.Code)
	}

	// Store error -> 500 list_failed.
	svc := &stubProductSvc{byCat: func(context.Context, string) ([]domain.Product, error) {
		return nil, errors.New("boom")
	}}
	r := gin.New()
	r.GET("/products/bycat/:catId", New(svc).ListProductsByCategory)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/products/bycat/c1", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("error status = %d", w.Code)
	}
}

// ---------- SaveProduct ----------

func TestSaveProduct_BadJSON_400_NoServiceCall(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &stubProductSvc{}
	r := gin.New()
	r.POST("/products", New(svc).SaveProduct)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/products", bytes.NewBufferString("{not-json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if svc.saveCalls != 0 {
		t.Fatalf("service must not run for malformed payloads")
	}
}

func TestSaveProduct_MissingName_400(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &stubProductSvc{}
	r := gin.New()
	r.POST("/products", New(svc).SaveProduct)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/products", bytes.NewBufferString(`{"price": 2.5}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Message != "missing product data" {
		t.Fatalf("envelope: %v %+v", err, er)
	}
}

func TestSaveProduct_EmptyProductSentinel_400(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &stubProductSvc{save: func(context.Context, *domain.Product) (*domain.Product, error) {
		return nil, services.ErrEmptyProduct
	}}
	r := gin.New()
	r.POST("/products", New(svc).SaveProduct)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/products", bytes.NewBufferString(`{"name":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSaveProduct_Success_ReturnsStoredRecord(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Real service over an in-memory store: exercises id generation end to end.
	db := newProductDB(t)
	svc := services.NewProductService(db, testProductRepo{})
	r := gin.New()
	r.POST("/products", New(svc).SaveProduct)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/products",
		bytes.NewBufferString(`{"name":"Widget","description":"fine","price":9.99}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var got domain.Product
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID == "" || got.Name != "Widget" || got.Price != 9.99 {
		t.Fatalf("stored record missing fields: %+v", got)
	}

	// Row actually persisted under the generated id.
	var row domain.Product
	if err := db.First(&row, "id = ?", got.ID).Error; err != nil {
		t.Fatalf("load persisted row: %v", err)
	}
}

func TestSaveProduct_StoreError_500(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &stubProductSvc{save: func(context.Context, *domain.Product) (*domain.Product, error) {
		return nil, errors.New("constraint failed")
	}}
	r := gin.New()
	r.POST("/products", New(svc).SaveProduct)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/products", bytes.NewBufferString(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != ErrCodeSaveFailed {
		t.Fatalf("envelope: %v %+v", err, er)
	}
}

// ---------- DeleteProduct ----------

func TestDeleteProduct_Success_NotFound_Failure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		del    func(context.Context, string) error
		status int
	}{
		{"success", nil, http.StatusOK},
		{"not found", func(context.Context, string) error { return services.ErrProductNotFound }, http.StatusNotFound},
		{"store failure", func(context.Context, string) error { return errors.New("io") }, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.DELETE("/products/:id", New(&stubProductSvc{del: tc.del}).DeleteProduct)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("DELETE", "/products/p1", nil))
			if w.Code != tc.status {
				t.Fatalf("status = %d; want %d", w.Code, tc.status)
			}
			if tc.status == http.StatusOK {
				var body map[string]string
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["deleted"] != "p1" {
					t.Fatalf("body: %v %+v", err, body)
				}
			}
		})
	}
}
