package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/satecha/satecha/internal/database"
	"github.com/satecha/satecha/internal/models"
	"github.com/satecha/satecha/pkg/utils"
	"gorm.io/gorm"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating models: %v", err)
	}
	return db
}

func createServiceTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("secret1")
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}
	user := &models.User{Email: email, PasswordHash: hash}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user: %v", err)
	}
	return user
}
