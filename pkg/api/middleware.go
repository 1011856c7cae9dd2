package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/restbackup/pkg/log"
	"github.com/cuemby/restbackup/pkg/metrics"
	"github.com/cuemby/restbackup/pkg/types"
)

// classify derives the operation class C4 authorizes against from the
// HTTP method and the parsed target, per spec.md §4.4.
func classify(method string, t Target) types.OpClass {
	switch t.Kind {
	case TargetRepo:
		// Every repo-root request is classified as repository
		// creation; dispatchRepo then rejects anything other than
		// POST ?create=true.
		return types.OpModify
	case TargetKindList:
		return types.OpRead
	case TargetObject, TargetConfig:
		switch method {
		case http.MethodPost:
			return types.OpAppend
		case http.MethodDelete:
			return types.OpWrite
		}
	}
	return types.OpRead
}

// authenticate runs C3 (or bypasses it under disable_auth) and returns
// the request's user identity.
func (d *Dispatcher) authenticate(r *http.Request) (string, bool) {
	if d.policy.DisableAuth {
		return types.AnonymousUser, true
	}
	user, password, ok := r.BasicAuth()
	if !ok {
		return "", false
	}
	if !d.creds.Verify(user, password) {
		return "", false
	}
	return user, true
}

// recoverAndLog wraps handler with panic recovery and per-request
// completion logging, mirroring the crash-isolation goal of the
// teacher's supervised worker loops: one bad request never takes down
// the listener. The completion log is built on log.WithComponent so
// that every line carries a component field the way the rest of the
// server's ambient logging does; dispatchers annotate repo/user/kind
// onto the responseLogger as they become known mid-request.
func recoverAndLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		rl := &responseLogger{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if rec := recover(); rec != nil {
				log.Logger.Error().
					Str("request_id", reqID).
					Interface("panic", rec).
					Msg("recovered from panic in request handler")
				if !rl.wroteHeader {
					rl.WriteHeader(http.StatusInternalServerError)
				}
			}
			metrics.RequestsTotal.WithLabelValues(r.Method, statusBucket(rl.status)).Inc()
			metrics.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())

			requestLogger := log.WithComponent("api").With().
				Str("repo", rl.repo).
				Str("user", rl.user).
				Str("kind", rl.kind).
				Str("method", r.Method).
				Logger()

			event := requestLogger.Info()
			if rl.status >= http.StatusBadRequest {
				event = requestLogger.Warn()
			}
			event.
				Str("request_id", reqID).
				Str("path", r.URL.Path).
				Int("status", rl.status).
				Dur("duration", time.Since(start)).
				Int64("bytes", rl.bytes).
				Msg("request completed")
		}()

		next.ServeHTTP(rl, r)
	})
}

type responseLogger struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
	repo        string
	user        string
	kind        string
}

// annotate records the request's repo/user/kind once they are known,
// so the completion log recoverAndLog writes on the way out carries
// them. A no-op on any ResponseWriter that isn't a *responseLogger.
func annotate(w http.ResponseWriter, repo, user, kind string) {
	rl, ok := w.(*responseLogger)
	if !ok {
		return
	}
	if repo != "" {
		rl.repo = repo
	}
	if user != "" {
		rl.user = user
	}
	if kind != "" {
		rl.kind = kind
	}
}

func (rl *responseLogger) WriteHeader(code int) {
	if rl.wroteHeader {
		return
	}
	rl.status = code
	rl.wroteHeader = true
	rl.ResponseWriter.WriteHeader(code)
}

func (rl *responseLogger) Write(b []byte) (int, error) {
	if !rl.wroteHeader {
		rl.WriteHeader(http.StatusOK)
	}
	n, err := rl.ResponseWriter.Write(b)
	rl.bytes += int64(n)
	return n, err
}

func statusBucket(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
