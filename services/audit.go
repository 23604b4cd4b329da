package services

import (
	"log"
	"sync"
	"time"
)

// auditRetention caps the in-memory tail; older entries are evicted. The
// persisted copy in audit_logs is unbounded.
const auditRetention = 1000

// AuditEvent records an admin-impacting mutation: who did what to which
// target, and whether it succeeded.
type AuditEvent struct {
	ActorID      string    `json:"actor_id"`
	Action       string    `json:"action"`
	TargetType   string    `json:"target_type"`
	TargetID     string    `json:"target_id"`
	Success      bool      `json:"success"`
	ErrorSummary string    `json:"error_summary,omitempty"`
	At           time.Time `json:"at"`
}

// AuditLogger is an append-only sink: a bounded ring of recent entries plus a
// non-blocking channel drained by the flush worker. Recording never blocks
// the primary operation; a full channel only drops to the operational log.
type AuditLogger struct {
	mu      sync.Mutex
	entries []AuditEvent
	sink    chan AuditEvent
}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{
		entries: make([]AuditEvent, 0, auditRetention),
		sink:    make(chan AuditEvent, 256),
	}
}

// Record appends an entry, evicting the oldest once retention is reached.
func (a *AuditLogger) Record(actorID, action, targetType, targetID string, success bool, errSummary string) {
	event := AuditEvent{
		ActorID:      actorID,
		Action:       action,
		TargetType:   targetType,
		TargetID:     targetID,
		Success:      success,
		ErrorSummary: errSummary,
		At:           time.Now(),
	}

	a.mu.Lock()
	a.entries = append(a.entries, event)
	if len(a.entries) > auditRetention {
		a.entries = a.entries[len(a.entries)-auditRetention:]
	}
	a.mu.Unlock()

	select {
	case a.sink <- event:
	default:
		log.Printf("[AUDIT] sink full, entry not persisted: %s %s", action, targetID)
	}
}

// Recent returns up to limit entries, newest first.
func (a *AuditLogger) Recent(limit int) []AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit <= 0 || limit > len(a.entries) {
		limit = len(a.entries)
	}
	out := make([]AuditEvent, limit)
	for i := 0; i < limit; i++ {
		out[i] = a.entries[len(a.entries)-1-i]
	}
	return out
}

// Events exposes the persistence stream for the flush worker.
func (a *AuditLogger) Events() <-chan AuditEvent {
	return a.sink
}
