package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/satecha/satecha/internal/models"
	"github.com/satecha/satecha/pkg/logger"
	"gorm.io/gorm"
)

type AuditEntry struct {
	UserID    *uuid.UUID
	Action    string
	Email     string
	Details   map[string]interface{}
	IPAddress string
	RequestID string
}

type AuditService struct {
	DB    *gorm.DB
	queue chan models.AuditLog

	closeOnce sync.Once
	done      chan struct{}
}

func NewAuditService(db *gorm.DB, queueSize int) *AuditService {
	if queueSize <= 0 {
		queueSize = 1000
	}
	s := &AuditService{
		DB:    db,
		queue: make(chan models.AuditLog, queueSize),
		done:  make(chan struct{}),
	}
	go s.processQueue()
	return s
}

func (s *AuditService) LogAsync(entry AuditEntry) {
	row := models.AuditLog{
		UserID:    entry.UserID,
		Action:    entry.Action,
		Email:     entry.Email,
		Details:   entry.Details,
		IPAddress: entry.IPAddress,
		RequestID: entry.RequestID,
		CreatedAt: time.Now().UTC(),
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

// Close stops accepting entries and waits until queued rows are written.
// LogAsync must not be called after Close.
func (s *AuditService) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
	})
	<-s.done
}

func (s *AuditService) processQueue() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
	}
}
