// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartExpirySweeper closes expired competitions in the background so winners
// get selected even when no admin triggers the sweep by hand.
func (s *CompetitionService) StartExpirySweeper() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: close competitions whose end time has passed
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			closed, err := s.ProcessExpired(time.Now())
			if err != nil {
				log.Printf("[Scheduler] Expiry sweep failed: %v", err)
				return
			}
			if closed > 0 {
				log.Printf("✅ Closed %d expired competition(s)", closed)
			}
		}),
	)
}
