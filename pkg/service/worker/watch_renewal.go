package worker

import (
	"context"
	"time"

	"github.com/secmon-lab/gyges/pkg/usecase"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
)

// DefaultRenewalInterval is how often watch channels are re-registered.
// Drive expires web_hook channels after 24 hours; renewing at half that
// keeps a failed sweep from losing the feed.
const DefaultRenewalInterval = 12 * time.Hour

// WatchRenewalWorker periodically re-registers every account's Drive
// watch channel before the provider expires it.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
type WatchRenewalWorker struct {
	uc       *usecase.UseCases
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewWatchRenewalWorker(uc *usecase.UseCases, interval time.Duration) *WatchRenewalWorker {
	if interval <= 0 {
		interval = DefaultRenewalInterval
	}
	return &WatchRenewalWorker{
		uc:       uc,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the renewal loop in a background goroutine. The first
// sweep runs immediately so channels left over from a previous process
// get replaced at startup.
func (w *WatchRenewalWorker) Start(ctx context.Context) error {
	logging.Default().Info("watch renewal worker starting", "interval", w.interval.String())
	go w.run(ctx)
	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *WatchRenewalWorker) Stop() {
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("watch renewal worker stopped")
}

func (w *WatchRenewalWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if err := w.uc.RenewAllWatchChannels(ctx); err != nil {
		logging.Default().Error("initial watch channel sweep failed, will retry next interval", "error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.uc.RenewAllWatchChannels(ctx); err != nil {
				logging.Default().Error("watch channel sweep failed, will retry next interval", "error", err.Error())
			}

		case <-w.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}
