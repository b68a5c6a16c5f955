// Package domain defines the persistence models for products, categories,
// and application users. These types are mapped with GORM and form the core
// data layer of the product backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Category groups related products. Categories are referenced by products
// through CategoryID and queried by the /products/bycat endpoint.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: human-readable category name (unique).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Category struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string         `json:"name"       gorm:"type:varchar(128);not null;uniqueIndex"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "categories" }

// Product represents a single catalogue entry. The service layer treats the
// payload as largely opaque: beyond presence of a name it performs no schema
// validation, mirroring the upstream store contract.
//
// Fields:
//   - ID: stable UUID primary key (char(36)); generated on first save.
//   - Name: product display name.
//   - Description: optional free-text description.
//   - Price: unit price; stored as REAL.
//   - CategoryID: reference to the owning category (indexed for bycat lookups).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type Product struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string         `json:"name"        gorm:"type:varchar(255);not null"`
	Description string         `json:"description,omitempty" gorm:"type:text"`
	Price       float64        `json:"price"       gorm:"not null;default:0"`
	CategoryID  string         `json:"category_id,omitempty" gorm:"type:char(36);index:idx_products_category"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// AppUser is the application-side user record resolved during identity
// resolution. The row is looked up by the email claim of a verified token;
// granted capabilities travel in the token itself, not in this table.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: unique login identity matched against token claims.
//   - Name: display name.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type AppUser struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Email     string         `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex"`
	Name      string         `json:"name"       gorm:"type:varchar(255)"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for AppUser.
func (AppUser) TableName() string { return "app_users" }
