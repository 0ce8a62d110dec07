package worker

import (
	"context"
	"time"

	"github.com/secmon-lab/gyges/pkg/usecase"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
)

// DigestWorker fires the digest scheduler once per hour, aligned to the
// top of the hour so subscriptions with a fire hour of N flush at N:00.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
type DigestWorker struct {
	uc     *usecase.UseCases
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewDigestWorker(uc *usecase.UseCases) *DigestWorker {
	return &DigestWorker{
		uc:     uc,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the hourly tick loop in a background goroutine
func (w *DigestWorker) Start(ctx context.Context) error {
	logging.Default().Info("digest worker starting")
	go w.run(ctx)
	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *DigestWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("digest worker stopped")
}

func (w *DigestWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		now := time.Now()
		next := now.Truncate(time.Hour).Add(time.Hour)
		timer := time.NewTimer(next.Sub(now))

		select {
		case fired := <-timer.C:
			if err := w.uc.DigestTick(ctx, fired); err != nil {
				logging.Default().Error("digest tick failed, buffers carry over", "error", err.Error())
			}

		case <-w.stopCh:
			timer.Stop()
			return

		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
