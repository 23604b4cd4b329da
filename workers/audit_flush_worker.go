// workers/audit_flush_worker.go
package workers

import (
	"context"
	"log"

	"coin-toss-system/models"
	"coin-toss-system/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditFlushWorker drains the audit logger's event stream into the audit_logs
// table. Persistence failures are logged and skipped so a DB hiccup never
// stalls the stream or the request paths feeding it.
type AuditFlushWorker struct {
	db *gorm.DB
}

func NewAuditFlushWorker(db *gorm.DB) *AuditFlushWorker {
	return &AuditFlushWorker{db: db}
}

func (w *AuditFlushWorker) Start(ctx context.Context, events <-chan services.AuditEvent) {
	log.Println("🔁 Starting Audit Flush Worker (audit stream → audit_logs)…")
	go w.run(ctx, events)
}

func (w *AuditFlushWorker) run(ctx context.Context, events <-chan services.AuditEvent) {
	for {
		select {
		case event := <-events:
			record := models.AuditLog{
				ID:           uuid.NewString(),
				ActorID:      event.ActorID,
				Action:       event.Action,
				TargetType:   event.TargetType,
				TargetID:     event.TargetID,
				Success:      event.Success,
				ErrorSummary: event.ErrorSummary,
				CreatedAt:    event.At,
			}
			if err := w.db.Create(&record).Error; err != nil {
				log.Printf("⚠️ Failed to persist audit entry (%s %s): %v", event.Action, event.TargetID, err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Audit Flush Worker stopped")
			return
		}
	}
}
