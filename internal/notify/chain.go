package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// NoopNotifier drops summaries. It stands in when no channel is configured.
type NoopNotifier struct {
	reason string
}

// NewNoop returns a notifier that does nothing. reason is logged once at debug level.
func NewNoop(logger zerolog.Logger, reason string) *NoopNotifier {
	if reason != "" {
		logger.Debug().Msg(reason)
	}
	return &NoopNotifier{reason: reason}
}

// Notify implements Notifier.
func (*NoopNotifier) Notify(context.Context, Summary) error { return nil }

// MultiNotifier delivers one summary to several channels.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier fans out to every non-nil notifier.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len reports how many channels receive summaries.
func (m *MultiNotifier) Len() int { return len(m.notifiers) }

// Notify implements Notifier. A failing channel does not stop the others;
// all delivery errors are joined.
func (m *MultiNotifier) Notify(ctx context.Context, summary Summary) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DryRunNotifier logs what would be sent instead of sending it.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier wraps inner so that nothing reaches it.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, summary Summary) error {
	event := n.logger.Info().
		Str("project", summary.Project).
		Str("workflow", summary.Workflow).
		Str("status", summary.Status()).
		Int("steps", len(summary.Steps))
	if multi, ok := n.inner.(*MultiNotifier); ok {
		event = event.Int("channels", multi.Len())
	}
	if summary.FailedStep != "" {
		event = event.Str("step", summary.FailedStep).Str("kind", summary.Kind)
	}
	event.Msg("dry run, summary not sent")
	return nil
}
