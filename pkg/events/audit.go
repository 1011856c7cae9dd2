package events

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/restbackup/pkg/log"
)

// AuditLogger drains a Broker's subscription into the process log,
// the one real consumer of published events (metrics is computed
// independently by pkg/metrics.Collector polling storage directly).
// Grounded on the teacher's reconciler/collector shape: a struct
// holding a component logger and a stopCh, Start launches the
// draining goroutine, Stop tears it down.
type AuditLogger struct {
	broker *Broker
	sub    Subscriber
	logger zerolog.Logger
	done   chan struct{}
}

// NewAuditLogger subscribes to broker. The subscription is not active
// until Start is called.
func NewAuditLogger(broker *Broker) *AuditLogger {
	return &AuditLogger{
		broker: broker,
		logger: log.WithComponent("events"),
		done:   make(chan struct{}),
	}
}

// Start subscribes to the broker and begins draining events into the
// log. Denied and failed operations (auth.failed, acl.denied,
// quota.rejected) log at warn per spec.md §2.1; everything else logs
// at info.
func (a *AuditLogger) Start() {
	a.sub = a.broker.Subscribe()
	go a.run()
}

// Stop unsubscribes from the broker and waits for the drain goroutine
// to exit.
func (a *AuditLogger) Stop() {
	a.broker.Unsubscribe(a.sub)
	<-a.done
}

func (a *AuditLogger) run() {
	defer close(a.done)
	for event := range a.sub {
		a.logEvent(event)
	}
}

func (a *AuditLogger) logEvent(event *Event) {
	repo, hasRepo := event.Metadata["repo"]
	user, hasUser := event.Metadata["user"]

	logger := a.logger
	switch {
	case hasUser && user != "":
		logger = log.WithUser(user).With().Str("component", "events").Logger()
		if hasRepo && repo != "" {
			logger = logger.With().Str("repo", repo).Logger()
		}
	case hasRepo && repo != "":
		logger = log.WithRepo(repo).With().Str("component", "events").Logger()
	}

	entry := logger.Info()
	switch event.Type {
	case EventAuthFailed, EventACLDenied, EventQuotaRejected:
		entry = logger.Warn()
	}

	entry = entry.Str("event_id", event.ID).Str("event_type", string(event.Type))
	for k, v := range event.Metadata {
		if k == "repo" || k == "user" {
			continue
		}
		entry = entry.Str(k, v)
	}
	entry.Msg(event.Message)
}
