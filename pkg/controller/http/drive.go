package http

import (
	"errors"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"github.com/secmon-lab/gyges/pkg/usecase"
	"github.com/secmon-lab/gyges/pkg/utils/errutil"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
)

// driveWebhookHandler handles change pings from the Drive changes API.
// The ping carries no payload; the channel ID header identifies whose
// feed moved, and the feed itself is pulled from the stored cursor.
//
// Processing happens before the response is written. Drive retries on
// non-2xx, and the cursor plus the idempotence markers make a replayed
// ping harmless, so there is no need for an async ack here.
func driveWebhookHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		channelID := r.Header.Get("X-Goog-Channel-ID")
		if channelID == "" {
			errutil.HandleHTTP(ctx, w, goerr.New("missing X-Goog-Channel-ID header"), http.StatusBadRequest)
			return
		}

		// The first ping after channel creation is a sync handshake,
		// not a change signal.
		if r.Header.Get("X-Goog-Resource-State") == "sync" {
			logging.From(ctx).Debug("watch channel sync handshake", "channelID", channelID)
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := uc.ProcessChannelPing(ctx, types.ChannelID(channelID)); err != nil {
			// Stale channels must be refused explicitly so Drive stops
			// delivering on them.
			if errors.Is(err, types.ErrChannelNotFound) {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "unknown watch channel", goerr.V("channelID", channelID)), http.StatusForbidden)
				return
			}
			errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
