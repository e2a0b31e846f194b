package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// Run describes one completed assignment run. It is published on the event
// bus for the audit log.
type Run struct {
	ID          uuid.UUID
	Timestamp   time.Time
	Orders      int
	Couriers    int
	PickupSites int
	Duration    time.Duration
	Result      Result
}

// Strategy names the scan used by the run: "indexed" or "linear".
func (r Run) Strategy() string { return strategyLabel(r.Result.Indexed) }
