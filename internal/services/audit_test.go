package services

import (
	"testing"

	"github.com/satecha/satecha/internal/models"
)

func TestAuditService_LogAsyncAndClose(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewAuditService(db, 10)
	user := createServiceTestUser(t, db, "a@x.com")

	svc.LogAsync(AuditEntry{UserID: &user.ID, Action: "user.signin", Email: user.Email, IPAddress: "127.0.0.1"})
	svc.LogAsync(AuditEntry{Action: "user.signin_failed", Email: "ghost@x.com", Details: map[string]interface{}{"reason": "unknown email"}})
	svc.Close()

	var count int64
	db.Model(&models.AuditLog{}).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 audit rows, got %d", count)
	}

	var failed models.AuditLog
	if err := db.First(&failed, "action = ?", "user.signin_failed").Error; err != nil {
		t.Fatalf("failed reading audit row: %v", err)
	}
	if failed.Details["reason"] != "unknown email" {
		t.Fatalf("expected details to persist, got %v", failed.Details)
	}
	if failed.UserID != nil {
		t.Fatalf("expected no user id, got %v", failed.UserID)
	}
}

func TestAuditService_CloseIsIdempotent(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewAuditService(db, 1)
	svc.Close()
	svc.Close()
}
