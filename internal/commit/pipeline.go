package commit

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sehansi-9/gztprocessor/internal/draft"
	"github.com/sehansi-9/gztprocessor/internal/metrics"
	"github.com/sehansi-9/gztprocessor/internal/roster"
)

var ErrNoDraft = errors.New("gazette has no draft to commit")

// Error is a failed send. The draft and the gazette's committed flag are left
// as they were.
type Error struct {
	Number string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("commit gazette %s: %v", e.Number, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Sender posts a shaped payload to the backend.
type Sender interface {
	Commit(ctx context.Context, scope roster.Scope, format roster.Format, date, number string, payload any) error
}

type Request struct {
	Scope  roster.Scope
	Format roster.Format
	Number string
	Date   string
	Draft  draft.Draft
}

type Result struct {
	Format  roster.Format
	Payload Payload
}

type Pipeline struct {
	sender  Sender
	now     func() time.Time
	log     *logrus.Entry
	metrics *metrics.Metrics
}

type Option func(*Pipeline)

// WithClock replaces the clock used to date personnel records.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithLogger(log *logrus.Entry) Option {
	return func(p *Pipeline) { p.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func NewPipeline(sender Sender, opts ...Option) *Pipeline {
	p := &Pipeline{sender: sender, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logrus.NewEntry(logrus.StandardLogger())
	}
	p.log = p.log.WithField("component", "commit")
	p.metrics = metrics.OrDiscard(p.metrics)
	return p
}

// Run shapes the draft and sends it. Nothing is sent when the draft cannot be
// shaped. Organizational gazettes commit under the format implied by their draft.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Draft == nil {
		return nil, ErrNoDraft
	}
	payload, err := Build(req.Draft, p.now())
	if err != nil {
		return nil, err
	}
	format := formatFor(req.Scope, req.Draft, req.Format)

	log := p.log.WithFields(logrus.Fields{
		"scope":   req.Scope,
		"format":  format,
		"gazette": req.Number,
		"records": payload.Records,
	})
	err = p.sender.Commit(ctx, req.Scope, format, req.Date, req.Number, payload.Body)
	p.metrics.Commits.WithLabelValues(string(req.Scope), metrics.Outcome(err)).Inc()
	if err != nil {
		log.WithError(err).Error("commit failed")
		return nil, &Error{Number: req.Number, Err: err}
	}
	log.Info("gazette committed")
	return &Result{Format: format, Payload: payload}, nil
}

func formatFor(scope roster.Scope, d draft.Draft, declared roster.Format) roster.Format {
	if scope == roster.ScopePerson {
		return roster.FormatNone
	}
	switch d.Kind() {
	case draft.KindInitial:
		return roster.FormatInitial
	case draft.KindAmendment:
		return roster.FormatAmendment
	}
	return declared
}
