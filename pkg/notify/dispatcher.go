package notify

import (
	"context"
	"math"
	"time"

	"github.com/critiqdev/critiq/pkg/async"
	"github.com/critiqdev/critiq/pkg/auth"
	"github.com/critiqdev/critiq/pkg/observability"
)

// RetryConfig controls redelivery of failed sends.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig retries three times starting at one second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	if attempt <= 1 {
		return c.InitialDelay
	}
	return time.Duration(float64(c.InitialDelay) * math.Pow(c.BackoffMultiplier, float64(attempt-1)))
}

// Dispatcher renders and delivers confirmation mails off the request
// path. It implements the CodeSender the auth service expects.
type Dispatcher struct {
	notifier Notifier
	renderer *TemplateRenderer
	pool     *async.WorkerPool
	retry    RetryConfig
	codeTTL  time.Duration
	logger   *observability.Logger
	metrics  *observability.Metrics
	sleep    func(time.Duration)
}

// NewDispatcher starts the delivery worker pool.
func NewDispatcher(notifier Notifier, renderer *TemplateRenderer, codeTTL time.Duration, retry RetryConfig, logger *observability.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		renderer: renderer,
		pool:     async.NewWorkerPool(context.Background(), logger, 4, "mail dispatch", time.Minute),
		retry:    retry,
		codeTTL:  codeTTL,
		logger:   logger,
		metrics:  metrics,
		sleep:    time.Sleep,
	}
}

// SendConfirmationCode queues delivery and returns immediately. Delivery
// failures are logged, never surfaced to the signup request; the code
// stays valid, so the user can retry signup to get it resent.
func (d *Dispatcher) SendConfirmationCode(_ context.Context, u *auth.User, code string) {
	subject, body, err := d.renderer.Render(TemplateData{
		Username: u.Username,
		Code:     code,
		TTL:      d.codeTTL,
	})
	if err != nil {
		d.logger.WithError(err).WithField("username", u.Username).Error("failed to render confirmation mail")
		return
	}

	msg := Message{To: u.Email, Subject: subject, Body: body}
	if err := d.pool.Submit(func(ctx context.Context) error {
		return d.deliver(ctx, msg)
	}); err != nil {
		d.logger.WithError(err).WithField("username", u.Username).Error("failed to queue confirmation mail")
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) error {
	start := time.Now()
	var err error
	for attempt := 1; attempt <= d.retry.MaxAttempts; attempt++ {
		if err = d.notifier.Send(ctx, msg); err == nil {
			if d.metrics != nil {
				d.metrics.MailDispatchTotal.WithLabelValues("ok").Inc()
				d.metrics.MailDispatchDuration.Observe(time.Since(start).Seconds())
			}
			return nil
		}
		d.logger.WithError(err).WithFields(map[string]interface{}{
			"to":      msg.To,
			"attempt": attempt,
		}).Warn("confirmation mail delivery failed")

		if attempt < d.retry.MaxAttempts {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				attempt = d.retry.MaxAttempts
			default:
				d.sleep(d.retry.delay(attempt))
			}
		}
	}

	if d.metrics != nil {
		d.metrics.MailDispatchTotal.WithLabelValues("failed").Inc()
	}
	return err
}

// Close drains pending deliveries.
func (d *Dispatcher) Close() error {
	return d.pool.Shutdown(10 * time.Second)
}
