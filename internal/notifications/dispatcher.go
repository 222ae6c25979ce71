package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/incident-portal/internal/pkg/ctxlog"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
	// maxRetryAfter caps server-requested delays so an alert never stalls a request for long.
	maxRetryAfter = 5 * time.Second
)

// DispatcherConfig configures delivery retries.
type DispatcherConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Dispatcher renders alerts and sends them to every configured target.
type Dispatcher struct {
	renderer *Renderer
	senders  map[ChannelType]Sender
	targets  []Target
	config   DispatcherConfig
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a new dispatcher. Targets without a matching sender are
// reported as errors on dispatch.
func NewDispatcher(renderer *Renderer, config DispatcherConfig, targets []Target, senders ...Sender) *Dispatcher {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.Backoff <= 0 {
		config.Backoff = defaultBackoff
	}

	senderMap := make(map[ChannelType]Sender, len(senders))
	for _, s := range senders {
		senderMap[s.Type()] = s
	}

	return &Dispatcher{
		renderer: renderer,
		senders:  senderMap,
		targets:  targets,
		config:   config,
		sleep:    sleepCtx,
	}
}

// Targets returns the number of configured targets.
func (d *Dispatcher) Targets() int {
	return len(d.targets)
}

// Dispatch sends alert to every target and returns the joined delivery errors.
func (d *Dispatcher) Dispatch(ctx context.Context, alert Alert) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("dispatching on-call alert",
		"report_id", alert.ReportID,
		"severity", alert.Severity,
		"targets", len(d.targets),
	)

	var errs []error
	for _, target := range d.targets {
		if err := d.deliver(ctx, target, alert); err != nil {
			logger.Error("failed to send notification",
				"channel", target.Channel,
				"report_id", alert.ReportID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", target.Channel, err))
		}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, target Target, alert Alert) error {
	sender, ok := d.senders[target.Channel]
	if !ok {
		recordNotificationSent(target.Channel, "no_sender")
		return fmt.Errorf("no sender for channel type %q", target.Channel)
	}

	subject, body, err := d.renderer.Render(target.Channel, alert)
	if err != nil {
		recordNotificationSent(target.Channel, "render_failed")
		return fmt.Errorf("render: %w", err)
	}

	n := Notification{To: target.To, Subject: subject, Body: body}

	for attempt := 1; ; attempt++ {
		start := time.Now()
		err = sender.Send(ctx, n)
		recordNotificationDuration(target.Channel, time.Since(start))

		if err == nil {
			recordNotificationSent(target.Channel, "sent")
			return nil
		}
		if !IsRetryable(err) || attempt >= d.config.MaxAttempts {
			recordNotificationSent(target.Channel, "failed")
			return err
		}

		recordNotificationSent(target.Channel, "retry")
		if waitErr := d.sleep(ctx, d.backoff(attempt, err)); waitErr != nil {
			recordNotificationSent(target.Channel, "failed")
			return errors.Join(err, waitErr)
		}
	}
}

// backoff doubles the base delay per attempt, or honours a server-requested delay.
func (d *Dispatcher) backoff(attempt int, err error) time.Duration {
	var ra retryAfter
	if errors.As(err, &ra) {
		if wait := ra.RetryAfterDuration(); wait > 0 {
			return min(wait, maxRetryAfter)
		}
	}
	return d.config.Backoff * time.Duration(1<<(attempt-1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
