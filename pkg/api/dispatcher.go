package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cuemby/restbackup/pkg/acl"
	"github.com/cuemby/restbackup/pkg/apierr"
	"github.com/cuemby/restbackup/pkg/events"
	"github.com/cuemby/restbackup/pkg/metrics"
	"github.com/cuemby/restbackup/pkg/security"
	"github.com/cuemby/restbackup/pkg/storage"
	"github.com/cuemby/restbackup/pkg/types"
)

const (
	mediaTypeV1 = "application/vnd.x.restic.rest.v1+json"
	mediaTypeV2 = "application/vnd.x.restic.rest.v2+json"
)

// Dispatcher implements component C5: it parses every request via C1,
// authenticates via C3, authorizes via C4, then drives C2.
type Dispatcher struct {
	backend storage.Backend
	creds   *security.CredentialStore
	acl     *acl.Engine
	policy  types.GlobalPolicy
	realm   string
	broker  *events.Broker
}

// NewDispatcher wires the four collaborating components together.
// creds may be nil when policy.DisableAuth is set. broker may be nil,
// in which case no events are published.
func NewDispatcher(backend storage.Backend, creds *security.CredentialStore, engine *acl.Engine, policy types.GlobalPolicy, realm string, broker *events.Broker) *Dispatcher {
	return &Dispatcher{backend: backend, creds: creds, acl: engine, policy: policy, realm: realm, broker: broker}
}

// Routes builds the chi router for the repository wire protocol. A
// single wildcard route covers every repo-path depth; path shape is
// determined by ParsePath rather than by chi's own pattern matching,
// since repository paths have unbounded segment count.
func (d *Dispatcher) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverAndLog)
	r.HandleFunc("/*", d.handle)
	return r
}

func (d *Dispatcher) handle(w http.ResponseWriter, r *http.Request) {
	createFlag := r.URL.Query().Get("create") == "true"
	target, err := ParsePath(r.URL.Path, createFlag)
	if err != nil {
		writeError(w, err)
		return
	}

	// Server.NewServer routes /health/live to the admin mux ahead of
	// this dispatcher, so this branch is unreachable through the
	// normal listener; it stays as a defensive fallback for callers
	// that mount Dispatcher.Routes() directly without an AdminServer.
	if target.Kind == TargetHealth {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
		return
	}

	annotate(w, target.RepoPath, "", string(target.ObjKind))

	user, ok := d.authenticate(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", d.realm))
		metrics.AuthFailuresTotal.Inc()
		d.publish(events.EventAuthFailed, "authentication failed", map[string]string{"path": r.URL.Path, "method": r.Method})
		writeError(w, apierr.New(apierr.Unauthorized, "authentication required"))
		return
	}
	annotate(w, "", user, "")

	op := classify(r.Method, target)
	if !d.acl.Authorize(user, target.RepoPath, op) {
		metrics.ACLDenialsTotal.WithLabelValues(target.RepoPath, opClassLabel(op)).Inc()
		d.publish(events.EventACLDenied, "access denied", map[string]string{"repo": target.RepoPath, "user": user})
		writeError(w, apierr.New(apierr.Forbidden, "access denied"))
		return
	}

	switch target.Kind {
	case TargetRepo:
		d.dispatchRepo(w, r, target)
	case TargetKindList:
		d.dispatchList(w, r, target)
	case TargetObject, TargetConfig:
		d.dispatchObject(w, r, target)
	default:
		writeError(w, apierr.New(apierr.BadRequest, "unrecognized target"))
	}
}

func (d *Dispatcher) dispatchRepo(w http.ResponseWriter, r *http.Request, target Target) {
	if r.Method != http.MethodPost || !target.Create {
		writeError(w, apierr.New(apierr.BadRequest, "repository creation requires POST ?create=true"))
		return
	}
	if err := d.backend.CreateRepo(target.RepoPath); err != nil {
		writeError(w, err)
		return
	}
	d.publish(events.EventRepoCreated, "repository created", map[string]string{"repo": target.RepoPath})
	w.WriteHeader(http.StatusOK)
}

func (d *Dispatcher) dispatchList(w http.ResponseWriter, r *http.Request, target Target) {
	if r.Method != http.MethodGet {
		writeError(w, apierr.New(apierr.BadRequest, "listing only supports GET"))
		return
	}
	entries, err := d.backend.List(target.RepoPath, target.ObjKind)
	if err != nil {
		writeError(w, err)
		return
	}

	accept := r.Header.Get("Accept")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if accept == mediaTypeV2 {
		type v2Entry struct {
			Name string `json:"name"`
			Size int64  `json:"size"`
		}
		out := make([]v2Entry, len(entries))
		for i, e := range entries {
			out[i] = v2Entry{Name: e.Name, Size: e.Size}
		}
		_ = json.NewEncoder(w).Encode(out)
		return
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	_ = json.NewEncoder(w).Encode(names)
}

func (d *Dispatcher) dispatchObject(w http.ResponseWriter, r *http.Request, target Target) {
	kind := target.ObjKind
	name := target.Name
	if target.Kind == TargetConfig {
		kind = types.KindConfig
	}

	switch r.Method {
	case http.MethodHead:
		entry, err := d.backend.Stat(target.RepoPath, kind, name)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Length", strconv.FormatInt(entry.Size, 10))
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		rng, rngErr := parseRange(r.Header.Get("Range"))
		if rngErr != nil {
			writeError(w, rngErr)
			return
		}
		body, size, served, err := d.backend.Read(target.RepoPath, kind, name, rng)
		if err != nil {
			writeError(w, err)
			return
		}
		defer body.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Cache-Control", "no-cache")
		if served != nil {
			end := served.End
			if end < 0 {
				end = size - 1
			}
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", served.Start, end, size))
			w.Header().Set("Content-Length", strconv.FormatInt(end-served.Start+1, 10))
			w.WriteHeader(http.StatusPartialContent)
		} else {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			w.WriteHeader(http.StatusOK)
		}
		n, _ := io.Copy(w, body)
		metrics.BytesReadTotal.Add(float64(n))

	case http.MethodPost:
		written, err := d.backend.Write(target.RepoPath, kind, name, r.Body)
		if err != nil {
			if e, ok := apierr.As(err); ok && e.Kind == apierr.QuotaExceeded {
				metrics.QuotaRejectionsTotal.WithLabelValues(target.RepoPath).Inc()
				d.publish(events.EventQuotaRejected, "quota exceeded", map[string]string{"repo": target.RepoPath})
			}
			writeError(w, err)
			return
		}
		metrics.BytesWrittenTotal.Add(float64(written))
		d.publish(events.EventObjectWritten, "object written", map[string]string{"repo": target.RepoPath, "kind": string(kind), "name": name})
		w.WriteHeader(http.StatusOK)

	case http.MethodDelete:
		if d.policy.AppendOnly {
			writeError(w, apierr.New(apierr.Forbidden, "append-only mode forbids deletes"))
			return
		}
		if err := d.backend.Delete(target.RepoPath, kind, name); err != nil {
			writeError(w, err)
			return
		}
		d.publish(events.EventObjectDeleted, "object deleted", map[string]string{"repo": target.RepoPath, "kind": string(kind), "name": name})
		w.WriteHeader(http.StatusOK)

	default:
		writeError(w, apierr.New(apierr.BadRequest, "unsupported method for object target"))
	}
}

// parseRange parses a single-range "bytes=start-end" header value.
// An empty header yields (nil, nil) meaning "serve the whole object".
func parseRange(header string) (*storage.ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return nil, apierr.New(apierr.RangeNotSatisfiable, "unsupported range unit")
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return nil, apierr.New(apierr.RangeNotSatisfiable, "multiple ranges not supported")
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return nil, apierr.New(apierr.RangeNotSatisfiable, "malformed range")
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, apierr.New(apierr.RangeNotSatisfiable, "malformed range start")
	}
	end := int64(-1)
	if parts[1] != "" {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, apierr.New(apierr.RangeNotSatisfiable, "malformed range end")
		}
	}
	return &storage.ByteRange{Start: start, End: end}, nil
}

func (d *Dispatcher) publish(typ events.EventType, msg string, meta map[string]string) {
	if d.broker == nil {
		return
	}
	d.broker.Publish(&events.Event{ID: uuid.NewString(), Type: typ, Message: msg, Metadata: meta})
}

func opClassLabel(op types.OpClass) string {
	switch op {
	case types.OpRead:
		return "read"
	case types.OpAppend:
		return "append"
	case types.OpWrite:
		return "write"
	case types.OpModify:
		return "modify"
	default:
		return "unknown"
	}
}
