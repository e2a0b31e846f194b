package logging

import (
	"context"
	"time"

	"github.com/kilianp07/courier-dispatch/core/dispatch"
	"github.com/kilianp07/courier-dispatch/core/logger"
	"github.com/kilianp07/courier-dispatch/core/monitoring"
	"github.com/kilianp07/courier-dispatch/internal/eventbus"
)

// appendTimeout bounds a single store write.
const appendTimeout = 5 * time.Second

// Recorder appends every run published on the bus to a LogStore.
type Recorder struct {
	store LogStore
	log   logger.Logger
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store LogStore, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Recorder{store: store, log: log}
}

// Start subscribes to bus and records runs until ctx is canceled or the bus
// is closed. The returned channel is closed once the recorder has stopped.
func (r *Recorder) Start(ctx context.Context, bus *eventbus.TypedBus[dispatch.Run]) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case run, ok := <-sub:
				if !ok {
					return
				}
				r.record(run)
			}
		}
	}()
	return done
}

func (r *Recorder) record(run dispatch.Run) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := r.store.Append(ctx, FromRun(run)); err != nil {
		r.log.Errorf("audit log append failed for run %s: %v", run.ID, err)
		monitoring.CaptureException(err, map[string]string{"component": "audit_log", "run_id": run.ID.String()})
	}
}
