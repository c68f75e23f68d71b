// Package cascade maintains the per-gazette "needs redo" flags of one president's
// gazette list.
package cascade

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sehansi-9/gztprocessor/internal/metrics"
)

// OnCommitted returns the warning vector after gazette i is committed: i is
// cleared, every later gazette is flagged and earlier ones keep their value.
// The input is not modified.
func OnCommitted(warnings []bool, i int) []bool {
	out := append([]bool(nil), warnings...)
	if i < 0 || i >= len(out) {
		return out
	}
	out[i] = false
	for j := i + 1; j < len(out); j++ {
		out[j] = true
	}
	return out
}

// Affected lists the indexes whose flag OnCommitted sets, in order.
func Affected(n, i int) []int {
	if i < 0 || i >= n {
		return nil
	}
	out := make([]int, 0, n-i)
	for j := i; j < n; j++ {
		out = append(out, j)
	}
	return out
}

// InitialWarning is the flag of a gazette appended to a list: set when any
// existing gazette is already flagged.
func InitialWarning(warnings []bool) bool {
	for _, w := range warnings {
		if w {
			return true
		}
	}
	return false
}

// WarningWriter persists one gazette's flag.
type WarningWriter interface {
	SetWarning(ctx context.Context, number string, warning bool) error
}

// Tracker sends flag changes to the backend without blocking the caller. Local
// flags are authoritative for the session; a failed write is logged and counted,
// never rolled back.
type Tracker struct {
	writer  WarningWriter
	timeout time.Duration
	log     *logrus.Entry
	metrics *metrics.Metrics

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewTracker(writer WarningWriter, timeout time.Duration, log *logrus.Entry, m *metrics.Metrics) *Tracker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Tracker{
		writer:  writer,
		timeout: timeout,
		log:     log.WithField("component", "cascade"),
		metrics: metrics.OrDiscard(m),
	}
}

// Persist queues one write. It returns immediately.
func (t *Tracker) Persist(number string, warning bool) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.log.WithField("gazette", number).Warn("warning write dropped after shutdown")
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	t.metrics.WarningPending.Inc()
	go func() {
		defer t.wg.Done()
		defer t.metrics.WarningPending.Dec()

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		err := t.writer.SetWarning(ctx, number, warning)
		t.metrics.WarningWrites.WithLabelValues(metrics.Outcome(err)).Inc()
		if err != nil {
			t.log.WithFields(logrus.Fields{"gazette": number, "warning": warning}).WithError(err).Error("failed to persist warning flag")
		}
	}()
}

// PersistCascade queues a write for every flag OnCommitted(i) set.
func (t *Tracker) PersistCascade(numbers []string, warnings []bool, i int) {
	for _, j := range Affected(len(numbers), i) {
		t.Persist(numbers[j], warnings[j])
	}
}

// Close stops accepting writes and waits for in-flight ones or ctx.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
