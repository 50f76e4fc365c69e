// Package tracking decides which storefront events are recorded and writes them to the event store.
package tracking

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"perftracker/api/config"
	"perftracker/api/models"
	"perftracker/api/telemetry"
	"perftracker/api/utils"
)

// Visitor identifies who caused an event. UserID is 0 for guests.
type Visitor struct {
	UserID    int64
	Role      string
	SessionID string
	IP        string
	UserAgent string
	// Trusted is set for server-side callers. Only they may report completed orders and revenue.
	Trusted bool
}

func (v Visitor) LoggedIn() bool {
	return v.UserID > 0
}

// Policy holds the tracking switches. Administrators are skipped unless TrackAdminUsers is set.
type Policy struct {
	Enabled         bool
	TrackAnonymous  bool
	TrackAdminUsers bool
	ExcludedRoles   []string
}

func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		Enabled:         cfg.TrackingEnabled,
		TrackAnonymous:  cfg.TrackAnonymous,
		TrackAdminUsers: cfg.TrackAdminUsers,
		ExcludedRoles:   cfg.ExcludeUserRoles,
	}
}

// Allow reports whether events of v are recorded, and otherwise why not.
func (p Policy) Allow(v Visitor) (bool, string) {
	if !p.Enabled {
		return false, "disabled"
	}
	if v.Role == models.RoleAdministrator && !p.TrackAdminUsers {
		return false, "admin_user"
	}
	if v.LoggedIn() {
		for _, role := range p.ExcludedRoles {
			if role == v.Role {
				return false, "excluded_role"
			}
		}
	}
	if !v.LoggedIn() && !p.TrackAnonymous {
		return false, "anonymous"
	}
	return true, ""
}

// EventWriter is the write side of the event store.
type EventWriter interface {
	Insert(ctx context.Context, e models.NewEvent) (models.Event, error)
	CleanupOldData(ctx context.Context, retentionDays int) (int64, error)
}

// Mirror receives a copy of every stored event.
type Mirror interface {
	MirrorEvents(ctx context.Context, events []models.Event) error
}

type Flusher interface {
	Flush(ctx context.Context, reason string) error
}

type Tracker struct {
	events        EventWriter
	mirror        Mirror
	flusher       Flusher
	policy        Policy
	anonymizeIP   bool
	retentionDays int
	log           *logrus.Logger
	telemetry     *telemetry.Metrics
}

type Options struct {
	Policy        Policy
	AnonymizeIP   bool
	RetentionDays int
	// Mirror is optional.
	Mirror    Mirror
	Telemetry *telemetry.Metrics
}

func NewTracker(events EventWriter, flusher Flusher, log *logrus.Logger, opts Options) *Tracker {
	return &Tracker{
		events:        events,
		mirror:        opts.Mirror,
		flusher:       flusher,
		policy:        opts.Policy,
		anonymizeIP:   opts.AnonymizeIP,
		retentionDays: config.ClampRetentionDays(opts.RetentionDays),
		log:           log,
		telemetry:     opts.Telemetry,
	}
}

// SessionID returns the session id recorded for v: "user_<id>" when logged in, else its guest id.
func SessionID(v Visitor) string {
	if v.LoggedIn() {
		return utils.UserSessionID(v.UserID)
	}
	return v.SessionID
}

// Track records the events of one visitor and returns how many were stored.
// Failures are logged and never returned, so storefront requests are not affected by them.
func (t *Tracker) Track(ctx context.Context, v Visitor, events ...models.NewEvent) int {
	if ok, reason := t.policy.Allow(v); !ok {
		t.telemetry.EventSkipped(reason)
		t.log.WithField("reason", reason).Debug("Tracking skipped")
		return 0
	}

	ip := v.IP
	if t.anonymizeIP {
		ip = utils.AnonymizeIP(ip)
	}
	sessionID := SessionID(v)

	var stored []models.Event
	orderCompleted := false
	for _, e := range events {
		if !v.Trusted {
			if e.EventType == models.EventOrderCompleted {
				t.telemetry.EventSkipped("untrusted_order")
				t.log.WithField("session_id", sessionID).Warn("Ignoring order_completed from untrusted client")
				continue
			}
			e.Revenue = nil
		}
		if e.SessionID == "" {
			e.SessionID = sessionID
		}
		if e.UserID == 0 {
			e.UserID = v.UserID
		}
		e.IPAddress = ip
		e.UserAgent = v.UserAgent

		ev, err := t.events.Insert(ctx, e)
		if err != nil {
			t.telemetry.EventFailed(string(e.EventType))
			t.log.WithError(err).WithField("event_type", e.EventType).Error("Failed to record event")
			continue
		}
		t.telemetry.EventTracked(string(ev.EventType))
		stored = append(stored, ev)
		if ev.EventType == models.EventOrderCompleted {
			orderCompleted = true
		}
	}

	if t.mirror != nil && len(stored) > 0 {
		if err := t.mirror.MirrorEvents(ctx, stored); err != nil {
			t.log.WithError(err).Warn("Failed to mirror events")
		}
	}

	if orderCompleted {
		t.flush(ctx, "order_completed")
	}
	return len(stored)
}

// Cleanup applies the retention period, flushing cached metrics when rows were removed.
func (t *Tracker) Cleanup(ctx context.Context) (int64, error) {
	removed, err := t.events.CleanupOldData(ctx, t.retentionDays)
	t.telemetry.CleanupFinished(removed, float64(time.Now().Unix()), err)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		t.flush(ctx, "cleanup")
	}
	return removed, nil
}

func (t *Tracker) RetentionDays() int {
	return t.retentionDays
}

func (t *Tracker) flush(ctx context.Context, reason string) {
	if t.flusher == nil {
		return
	}
	if err := t.flusher.Flush(ctx, reason); err != nil {
		t.log.WithError(err).WithField("reason", reason).Warn("Failed to flush metrics cache")
	}
}
