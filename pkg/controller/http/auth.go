package http

import (
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/usecase"
	"github.com/secmon-lab/gyges/pkg/utils/errutil"
	"github.com/secmon-lab/gyges/pkg/utils/safe"
)

// authCallbackHandler completes the Google OAuth flow. The state was
// issued by the bot's auth command, so the redirect back is all the
// browser interaction there is.
func authCallbackHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		q := r.URL.Query()
		if errMsg := q.Get("error"); errMsg != "" {
			errutil.HandleHTTP(ctx, w, goerr.New("authorization denied", goerr.V("error", errMsg)), http.StatusBadRequest)
			return
		}

		state := q.Get("state")
		code := q.Get("code")
		if state == "" || code == "" {
			errutil.HandleHTTP(ctx, w, goerr.New("missing state or code parameter"), http.StatusBadRequest)
			return
		}

		account, err := uc.HandleCallback(ctx, state, code)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		safe.Write(ctx, w, []byte(
			"<html><body><p>Google Drive account <b>"+account.Email+
				"</b> is now linked. You can close this tab and return to Slack.</p></body></html>"))
	}
}
