/*
idempotency.go - Replay of retried POST requests

PURPOSE:
  A client that loses the response to a posting cannot tell whether the
  voucher was written. Sending the same request again with the same
  Idempotency-Key header returns the first response instead of posting a
  second voucher.

SEMANTICS:
  - Keys are scoped to the user, method and path.
  - While the first request is running, a duplicate gets 409.
  - 5xx responses are not stored, so the client may retry them.
  - Entries expire after replayTTL.

SEE ALSO:
  - server.go: applied to every authenticated route
*/
package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/warp/ledger-engine/identity"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	replayTTL         = 24 * time.Hour
)

// storedResponse is a captured response. done is false while the first
// request is still running.
type storedResponse struct {
	done        bool
	status      int
	contentType string
	body        []byte
}

// NewReplayCache returns the cache used by the idempotency middleware.
func NewReplayCache() *cache.Cache {
	return cache.New(replayTTL, 2*replayTTL)
}

// recorder tees the response into a buffer.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func idempotent(replays *cache.Cache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyHeader)
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, _ := identity.FromContext(r.Context())
			cacheKey := user.ID + "|" + r.Method + "|" + r.URL.Path + "|" + key

			if err := replays.Add(cacheKey, &storedResponse{}, replayTTL); err != nil {
				prev, found := replays.Get(cacheKey)
				stored, ok := prev.(*storedResponse)
				if !found || !ok || !stored.done {
					writeError(w, http.StatusConflict, "a request with this Idempotency-Key is in progress", nil)
					return
				}
				if stored.contentType != "" {
					w.Header().Set("Content-Type", stored.contentType)
				}
				w.Header().Set(replayedHeader, "true")
				w.WriteHeader(stored.status)
				w.Write(stored.body)
				return
			}

			kept := false
			defer func() {
				if !kept {
					replays.Delete(cacheKey)
				}
			}()

			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			if rec.status == 0 || rec.status >= http.StatusInternalServerError {
				return
			}
			kept = true
			replays.Set(cacheKey, &storedResponse{
				done:        true,
				status:      rec.status,
				contentType: rec.Header().Get("Content-Type"),
				body:        rec.body.Bytes(),
			}, replayTTL)
		})
	}
}
