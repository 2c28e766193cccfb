// Package mailer delivers account notifications through an injected
// transport with bounded, jittered retry. Rendering and transmission are
// separate collaborators so templates render exactly once per delivery and
// retries re-send the same payload.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	TemplateWelcome       = "welcome"
	TemplatePasswordReset = "password_reset"
)

// User carries the fields the auth collaborator exposes for notification
// templates. The mailer never reads the store; callers pass the user in.
type User struct {
	ID                     string
	Email                  string
	Name                   string
	EmailVerificationToken string
	ResetToken             string
}

// Payload is a rendered message ready for the wire
type Payload struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Renderer turns a template name and its variables into a payload
type Renderer interface {
	Render(template string, vars map[string]string) (*Payload, error)
}

// Transport moves a rendered payload to the outside world
type Transport interface {
	Send(ctx context.Context, p *Payload) error
}

// ErrDeliveryTimeout is returned when the context deadline expires before
// the retry loop finishes. Distinct from DeliveryError: the attempts were
// not exhausted, the clock ran out.
var ErrDeliveryTimeout = errors.New("delivery deadline exceeded")

// DeliveryError reports a delivery abandoned after its final attempt
type DeliveryError struct {
	Attempts int
	Last     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *DeliveryError) Unwrap() error { return e.Last }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a transport error as non-retryable (malformed address,
// rejected sender). The retry loop stops at the attempt that returned it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Policy controls the retry loop. The rand and sleep hooks are injectable
// so tests run deterministically without wall-clock waits.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64

	// Jitter maps a raw backoff delay to the delay actually slept.
	// The default half-jitter picks from [d/2, d), which keeps successive
	// delays strictly increasing under the x2 multiplier.
	Jitter func(d time.Duration) time.Duration

	// Sleep waits for d or until the context is done
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy matches the production retry schedule: three attempts from
// a 10ms base, doubling each round.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2,
		Jitter:      halfJitter,
		Sleep:       sleepContext,
	}
}

func halfJitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// delay returns the raw backoff before jitter for a 1-based attempt number
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}

// Mailer delivers notifications with bounded retry, a cap on in-flight
// sends, and a per-recipient rate limit.
type Mailer struct {
	renderer  Renderer
	transport Transport
	policy    Policy
	domain    string
	log       *logrus.Entry

	sem *semaphore.Weighted

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	rateLimit rate.Limit
	burst     int
}

// Option configures a Mailer
type Option func(*Mailer)

// WithPolicy replaces the default retry policy
func WithPolicy(p Policy) Option {
	return func(m *Mailer) { m.policy = p }
}

// WithConcurrency caps the number of in-flight sends
func WithConcurrency(n int64) Option {
	return func(m *Mailer) { m.sem = semaphore.NewWeighted(n) }
}

// WithRateLimit sets the per-recipient send rate
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(m *Mailer) {
		m.rateLimit = limit
		m.burst = burst
	}
}

// WithLogger sets the structured logger
func WithLogger(log *logrus.Entry) Option {
	return func(m *Mailer) { m.log = log }
}

// New creates a mailer over the given renderer and transport. domain is
// interpolated into links in the rendered templates.
func New(renderer Renderer, transport Transport, domain string, opts ...Option) *Mailer {
	m := &Mailer{
		renderer:  renderer,
		transport: transport,
		policy:    DefaultPolicy(),
		domain:    domain,
		log:       logrus.NewEntry(logrus.StandardLogger()),
		sem:       semaphore.NewWeighted(8),
		limiters:  make(map[string]*rate.Limiter),
		rateLimit: rate.Inf,
		burst:     1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SendWelcome delivers the account verification notification
func (m *Mailer) SendWelcome(ctx context.Context, user *User) error {
	return m.send(ctx, TemplateWelcome, user.Email, map[string]string{
		"name":        user.Name,
		"verifyToken": user.EmailVerificationToken,
		"domain":      m.domain,
	})
}

// SendPasswordReset delivers the password reset notification
func (m *Mailer) SendPasswordReset(ctx context.Context, user *User) error {
	return m.send(ctx, TemplatePasswordReset, user.Email, map[string]string{
		"name":       user.Name,
		"resetToken": user.ResetToken,
		"domain":     m.domain,
	})
}

func (m *Mailer) limiter(recipient string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[recipient]
	if !ok {
		l = rate.NewLimiter(m.rateLimit, m.burst)
		m.limiters[recipient] = l
	}
	return l
}

func (m *Mailer) send(ctx context.Context, template, to string, vars map[string]string) error {
	if err := m.limiter(to).Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryTimeout, err)
	}
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryTimeout, err)
	}
	defer m.sem.Release(1)

	// Render once; every attempt re-sends the same payload
	payload, err := m.renderer.Render(template, vars)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", template, err)
	}
	payload.To = to

	log := m.log.WithFields(logrus.Fields{"template": template, "to": to})

	var last error
	for attempt := 1; attempt <= m.policy.MaxAttempts; attempt++ {
		last = m.transport.Send(ctx, payload)
		if last == nil {
			if attempt > 1 {
				log.WithField("attempt", attempt).Info("delivery succeeded after retry")
			}
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrDeliveryTimeout, last)
		}
		if IsPermanent(last) {
			log.WithField("attempt", attempt).WithError(last).Warn("permanent delivery failure")
			return &DeliveryError{Attempts: attempt, Last: last}
		}
		if attempt == m.policy.MaxAttempts {
			break
		}

		delay := m.policy.delay(attempt)
		if m.policy.Jitter != nil {
			delay = m.policy.Jitter(delay)
		}
		log.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).
			WithError(last).Debug("delivery failed, backing off")
		if err := m.policy.Sleep(ctx, delay); err != nil {
			return fmt.Errorf("%w: %v", ErrDeliveryTimeout, last)
		}
	}

	log.WithField("attempts", m.policy.MaxAttempts).WithError(last).Warn("delivery abandoned")
	return &DeliveryError{Attempts: m.policy.MaxAttempts, Last: last}
}
