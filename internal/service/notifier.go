package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/jobshare/internal/model"
)

type EventType string

const (
	EventPartnershipRequested EventType = "partnership_request.created"
	EventPartnershipAccepted  EventType = "partnership_request.accepted"
	EventPartnershipDeclined  EventType = "partnership_request.declined"
	EventShareRequestCreated  EventType = "share_request.created"
	EventShareRequestAccepted EventType = "share_request.accepted"
	EventShareRequestDeclined EventType = "share_request.declined"
	EventJobStatusChanged     EventType = "job.status_changed"
)

type Event struct {
	Type            EventType
	SubjectID       uuid.UUID
	JobID           uuid.UUID
	SourceCompanyID uuid.UUID
	TargetCompanyID uuid.UUID
	AutoAssigned    bool
	At              time.Time
}

// audience returns the company an event is addressed to and the partner
// whose entry on that company decides delivery. ok is false for events that
// are always delivered.
func (e Event) audience() (recipient, partner uuid.UUID, ok bool) {
	switch e.Type {
	case EventShareRequestCreated:
		return e.TargetCompanyID, e.SourceCompanyID, true
	case EventShareRequestAccepted, EventShareRequestDeclined:
		return e.SourceCompanyID, e.TargetCompanyID, true
	case EventJobStatusChanged:
		return e.TargetCompanyID, e.SourceCompanyID, e.TargetCompanyID != e.SourceCompanyID
	}
	return uuid.Nil, uuid.Nil, false
}

// wantedBy reports whether a partner entry opts in to the event. Without an
// entry the event is delivered.
func (e Event) wantedBy(entry *model.PartnerEntry) bool {
	if entry == nil {
		return true
	}
	if e.Type == EventJobStatusChanged {
		return entry.NotifyOnStatusChange
	}
	return entry.NotifyOnShare
}

type companyReader interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Company, error)
}

// Notifier receives events after the originating transaction commits.
// Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, event Event) {
	n.log.Info().
		Str("event", string(event.Type)).
		Str("subject_id", event.SubjectID.String()).
		Str("job_id", event.JobID.String()).
		Str("source_company_id", event.SourceCompanyID.String()).
		Str("target_company_id", event.TargetCompanyID.String()).
		Bool("auto_assigned", event.AutoAssigned).
		Time("at", event.At).
		Msg("notification")
}

// operation carries the clock reading and pending events of one request.
// Events are flushed only once the transaction has committed.
type operation struct {
	now    time.Time
	events []Event
}

func newOperation(now time.Time) *operation {
	return &operation{now: now}
}

func (o *operation) emit(event Event) {
	event.At = o.now
	o.events = append(o.events, event)
}

func (o *operation) fork() *operation {
	return &operation{now: o.now}
}

func (o *operation) merge(child *operation) {
	o.events = append(o.events, child.events...)
}

// flush hands the buffered events to notifier, dropping those the
// recipient's partner entry has opted out of.
func (o *operation) flush(ctx context.Context, notifier Notifier, companies companyReader) {
	if notifier == nil {
		return
	}
	for _, event := range o.events {
		if delivers(ctx, companies, event) {
			notifier.Notify(ctx, event)
		}
	}
	o.events = nil
}

func delivers(ctx context.Context, companies companyReader, event Event) bool {
	recipient, partner, ok := event.audience()
	if !ok || companies == nil {
		return true
	}
	company, err := companies.Get(ctx, recipient)
	if err != nil {
		return true
	}
	_, entry := company.Partner(partner)
	return event.wantedBy(entry)
}
