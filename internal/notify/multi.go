package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"
)

// Multi fans a notification out to every notifier concurrently and joins
// their errors.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a fan-out notifier; nil entries are skipped.
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.notifiers)
}

// Notify implements Notifier. A panicking sink is reported as an error.
func (m *Multi) Notify(ctx context.Context, n Notification) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	var wg conc.WaitGroup
	for _, sink := range m.notifiers {
		sink := sink
		wg.Go(func() {
			if err := sink.Notify(ctx, n); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		errs = append(errs, r.AsError())
	}
	return errors.Join(errs...)
}

// Log writes notifications to a slog logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a logging notifier.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Notify implements Notifier.
func (l *Log) Notify(ctx context.Context, n Notification) error {
	level := slog.LevelInfo
	if n.Category == CategoryFailure {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "notification",
		"category", string(n.Category),
		"title", n.Title,
		"message", n.Message,
		"detail_lines", len(n.Detail))
	if len(n.Detail) > 0 {
		l.logger.Log(ctx, slog.LevelDebug, "notification body", "title", n.Title, "body", n.Body())
	}
	return nil
}
