// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, identity resolution, per-route authorization,
// idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Authorization strictly before handlers: capability gates are route
//     middleware, so a denied mutation never reaches the data layer
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-product-backend/internal/auth"
	"github.com/tbourn/go-product-backend/internal/config"
	"github.com/tbourn/go-product-backend/internal/domain"
	"github.com/tbourn/go-product-backend/internal/http/handlers"
	"github.com/tbourn/go-product-backend/internal/http/middleware"
	"github.com/tbourn/go-product-backend/internal/repo"
	"github.com/tbourn/go-product-backend/internal/services"
)

// productRepoShim adapts the repository free functions to the
// services.ProductRepo interface expected by the ProductService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type productRepoShim struct{}

// ListProducts proxies repo.ListProducts.
func (productRepoShim) ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	return repo.ListProducts(ctx, db)
}

// CountProducts proxies repo.CountProducts (pagination support).
func (productRepoShim) CountProducts(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountProducts(ctx, db)
}

// ListProductsPage proxies repo.ListProductsPage (pagination support).
func (productRepoShim) ListProductsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Product, error) {
	return repo.ListProductsPage(ctx, db, offset, limit)
}

// GetProduct proxies repo.GetProduct.
func (productRepoShim) GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	return repo.GetProduct(ctx, db, id)
}

// ListProductsByCategory proxies repo.ListProductsByCategory.
func (productRepoShim) ListProductsByCategory(ctx context.Context, db *gorm.DB, categoryID string) ([]domain.Product, error) {
	return repo.ListProductsByCategory(ctx, db, categoryID)
}

// UpsertProduct proxies repo.UpsertProduct.
func (productRepoShim) UpsertProduct(ctx context.Context, db *gorm.DB, p *domain.Product) (*domain.Product, error) {
	return repo.UpsertProduct(ctx, db, p)
}

// DeleteProduct proxies repo.DeleteProduct.
func (productRepoShim) DeleteProduct(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteProduct(ctx, db, id)
}

// userLookupShim adapts repo.GetUserByEmail to the auth.UserLookup contract
// consumed by the identity resolver.
type userLookupShim struct{}

// GetUserByEmail proxies repo.GetUserByEmail.
func (userLookupShim) GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.AppUser, error) {
	return repo.GetUserByEmail(ctx, db, email)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), identity resolution
// and capability gating, idempotency and rate limiting, CORS and security
// headers, health and metrics endpoints, and then mounts the versioned public
// API under the configured base path.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Identity: fail-open resolution; never aborts, so reads stay anonymous-open
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS, gzip, and security headers
//
// Capability gates (RequireCapability) are installed per mutating route, after
// the global chain, so they run strictly before the handler and before any
// data-access call.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, verifier auth.Verifier, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Identity resolution on every route. Soft-fails to anonymous: a bad
	// token must not take down anonymous-open reads.
	resolver := auth.NewResolver(db, verifier, userLookupShim{})
	r.Use(middleware.Identity(resolver))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Compress JSON responses for clients that accept it.
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db
	productSvc := services.NewProductService(db, productRepoShim{})
	h := handlers.New(productSvc)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Identity
		api.GET("/me", h.Me)

		// Products: reads are anonymous-open and never consult the gate.
		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/products/bycat/:catId", h.ListProductsByCategory)

		// Products: mutations are capability-gated before the handler runs.
		api.POST("/products", middleware.RequireCapability(auth.CapCreate), h.SaveProduct)
		api.PUT("/products", middleware.RequireCapability(auth.CapUpdate), h.SaveProduct)
		api.DELETE("/products/:id", middleware.RequireCapability(auth.CapDelete), h.DeleteProduct)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
