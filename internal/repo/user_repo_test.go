package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-product-backend/internal/domain"
	"gorm.io/gorm"
)

func seedUser(t *testing.T, db *gorm.DB, id, email, name string, createdAt time.Time) domain.AppUser {
	t.Helper()
	u := domain.AppUser{ID: id, Email: email, Name: name, CreatedAt: createdAt, UpdatedAt: createdAt}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return u
}

func TestListUsers_OrderAscending(t *testing.T) {
	db := newProductRepoDB(t, &domain.AppUser{})

	t1 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	seedUser(t, db, "u2", "b@example.com", "B", t1.Add(time.Hour))
	seedUser(t, db, "u1", "a@example.com", "A", t1)

	out, err := ListUsers(context.Background(), db)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(out) != 2 || out[0].ID != "u1" || out[1].ID != "u2" {
		t.Fatalf("unexpected order: %+v", out)
	}
}

func TestGetUserByID_FoundAndNotFound(t *testing.T) {
	db := newProductRepoDB(t, &domain.AppUser{})
	seedUser(t, db, "u1", "a@example.com", "A", time.Now().UTC())

	got, err := GetUserByID(context.Background(), db, "u1")
	if err != nil || got == nil || got.Email != "a@example.com" {
		t.Fatalf("GetUserByID = %+v, %v", got, err)
	}
	if _, err := GetUserByID(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserByEmail_FoundAndNotFound(t *testing.T) {
	db := newProductRepoDB(t, &domain.AppUser{})
	seedUser(t, db, "u1", "a@example.com", "A", time.Now().UTC())

	got, err := GetUserByEmail(context.Background(), db, "a@example.com")
	if err != nil || got == nil || got.ID != "u1" {
		t.Fatalf("GetUserByEmail = %+v, %v", got, err)
	}
	if _, err := GetUserByEmail(context.Background(), db, "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
