// Package reminder sends the daily "submit your report" broadcast.
//
// The scheduler wakes up once per tick, checks whether the trigger time has
// been reached on a business day in the configured timezone and, at most once
// per day, notifies every known user. Delivery is best-effort: a failed
// recipient is logged and skipped, never retried within the pass.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tgienger/reportbot/internal/models"
	"github.com/tgienger/reportbot/internal/telemetry"
)

// LastFiredKey is the settings key holding the local date of the last broadcast
const LastFiredKey = "reminder.last_fired"

// UserLister enumerates the broadcast audience
type UserLister interface {
	ListAllUsers(ctx context.Context) ([]models.UserRef, error)
}

// Notifier delivers one reminder to one user
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// StateStore persists the last fired day. It may be shared by several
// processes; ClaimSetting must report true to exactly one claimant per value.
type StateStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	ClaimSetting(ctx context.Context, key, value string) (bool, error)
}

// MessageFunc renders the reminder for a recipient
type MessageFunc func(u models.UserRef) string

// Config describes when reminders go out
type Config struct {
	At           string         // HH:MM in Location
	Location     *time.Location // business timezone
	SkipWeekends bool
	Granularity  time.Duration // how often Run checks the clock
	Window       time.Duration // how late after At a missed trigger still fires
}

// DefaultConfig returns 18:00 Moscow time on business days
func DefaultConfig() Config {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return Config{
		At:           "18:00",
		Location:     loc,
		SkipWeekends: true,
		Granularity:  time.Minute,
		Window:       10 * time.Minute,
	}
}

// DeliveryError records a reminder that could not be delivered
type DeliveryError struct {
	UserID int64
	Err    error
}

func (e DeliveryError) Error() string {
	return fmt.Sprintf("deliver reminder to %d: %v", e.UserID, e.Err)
}

func (e DeliveryError) Unwrap() error { return e.Err }

// Result summarises one broadcast pass
type Result struct {
	Users     int
	Delivered int
	Failures  []DeliveryError
	Err       error // set when the audience could not be listed
}

// Scheduler runs the daily broadcast
type Scheduler struct {
	cfg          Config
	hour, minute int
	users        UserLister
	notifier     Notifier
	state        StateStore
	message      MessageFunc
	log          *slog.Logger
	now          func() time.Time

	mu        sync.Mutex
	lastFired string

	deliveries metric.Int64Counter
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithMessage sets the reminder text renderer
func WithMessage(fn MessageFunc) Option {
	return func(s *Scheduler) { s.message = fn }
}

// WithState persists the last fired day so restarts and other processes
// sharing the store do not send twice
func WithState(state StateStore) Option {
	return func(s *Scheduler) { s.state = state }
}

// New creates a scheduler. Zero fields of cfg take the defaults.
func New(cfg Config, users UserLister, notifier Notifier, log *slog.Logger, opts ...Option) (*Scheduler, error) {
	def := DefaultConfig()
	if cfg.At == "" {
		cfg.At = def.At
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.Granularity <= 0 {
		cfg.Granularity = def.Granularity
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	hour, minute, err := ParseClock(cfg.At)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Scheduler{
		cfg:      cfg,
		hour:     hour,
		minute:   minute,
		users:    users,
		notifier: notifier,
		log:      log.With("component", "reminder"),
		now:      time.Now,
	}
	s.message = s.defaultMessage
	for _, opt := range opts {
		opt(s)
	}

	meter := telemetry.Meter("github.com/tgienger/reportbot/internal/reminder")
	s.deliveries, _ = meter.Int64Counter("reportbot.reminder.deliveries",
		metric.WithDescription("Reminder deliveries by outcome"))
	return s, nil
}

func (s *Scheduler) defaultMessage(u models.UserRef) string {
	return fmt.Sprintf("⏰ Reminder for %s: please submit your report today before %02d:%02d (%s).",
		u.DisplayName(), s.hour, s.minute, s.cfg.Location)
}

// Run checks the clock every Granularity until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("reminder scheduler started",
		"at", s.cfg.At, "timezone", s.cfg.Location.String(),
		"skip_weekends", s.cfg.SkipWeekends, "next", s.NextFire(s.now()))

	ticker := time.NewTicker(s.cfg.Granularity)
	defer ticker.Stop()

	s.Tick(ctx, s.now())
	for {
		select {
		case <-ctx.Done():
			s.log.Info("reminder scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick broadcasts if the reminder is due at now and no other scheduler
// sharing the state store has fired today. It reports whether a broadcast
// was started.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) bool {
	s.loadState(ctx)
	if !s.Due(now) {
		return false
	}

	day := dayKey(now.In(s.cfg.Location))
	claimed, err := s.claim(ctx, day)
	if err != nil {
		// Retried on the next tick while the window is open
		s.log.Error("failed to record reminder day, not sending", "day", day, "error", err)
		return false
	}
	if !claimed {
		s.log.Info("reminder already sent elsewhere", "day", day)
		return false
	}

	s.broadcast(ctx, day)
	return true
}

// Fire broadcasts immediately regardless of the schedule and records the
// day of now, so a scheduler sharing the state store does not send again.
func (s *Scheduler) Fire(ctx context.Context, now time.Time) Result {
	day := dayKey(now.In(s.cfg.Location))
	if _, err := s.claim(ctx, day); err != nil {
		s.log.Error("failed to record reminder day", "day", day, "error", err)
	}
	return s.broadcast(ctx, day)
}

func (s *Scheduler) broadcast(ctx context.Context, day string) Result {
	res := s.Broadcast(ctx)
	s.log.Info("reminder broadcast finished",
		"day", day, "users", res.Users, "delivered", res.Delivered, "failed", len(res.Failures))
	return res
}

// Due reports whether a broadcast should start at now: a business day (when
// weekends are skipped), inside the trigger window, and not yet fired today.
func (s *Scheduler) Due(now time.Time) bool {
	local := now.In(s.cfg.Location)
	if s.cfg.SkipWeekends && !IsBusinessDay(local) {
		return false
	}
	trigger := s.triggerOn(local)
	if local.Before(trigger) || !local.Before(trigger.Add(s.cfg.Window)) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFired != dayKey(local)
}

// NextFire returns the next trigger instant strictly after now
func (s *Scheduler) NextFire(now time.Time) time.Time {
	local := now.In(s.cfg.Location)
	next := s.triggerOn(local)
	if !next.After(local) {
		next = s.triggerOn(startOfDay(local).AddDate(0, 0, 1))
	}
	for s.cfg.SkipWeekends && !IsBusinessDay(next) {
		next = s.triggerOn(NextBusinessDay(next))
	}
	return next
}

func (s *Scheduler) triggerOn(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, s.hour, s.minute, 0, 0, s.cfg.Location)
}

// loadState refreshes the last fired day. Another process may have written
// it since the previous tick.
func (s *Scheduler) loadState(ctx context.Context) {
	if s.state == nil {
		return
	}
	day, err := s.state.GetSetting(ctx, LastFiredKey)
	if err != nil {
		s.log.Error("failed to load reminder state", "error", err)
		return
	}
	s.mu.Lock()
	if day > s.lastFired {
		s.lastFired = day
	}
	s.mu.Unlock()
}

// claim records day before sending so a crash mid-pass cannot cause a second
// broadcast on the same day. Without a state store the claim is in memory.
func (s *Scheduler) claim(ctx context.Context, day string) (bool, error) {
	if s.state != nil {
		claimed, err := s.state.ClaimSetting(ctx, LastFiredKey, day)
		if err != nil {
			return false, err
		}
		s.mu.Lock()
		s.lastFired = day
		s.mu.Unlock()
		return claimed, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFired == day {
		return false, nil
	}
	s.lastFired = day
	return true, nil
}

// Broadcast notifies every known user once. Failures are collected in the
// result and logged; they never stop the pass and nothing is retried.
func (s *Scheduler) Broadcast(ctx context.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("reminder broadcast panicked: %v", r)
			s.log.Error("reminder broadcast aborted", "panic", r)
		}
	}()

	users, err := s.users.ListAllUsers(ctx)
	if err != nil {
		s.log.Error("failed to list users for reminder", "error", err)
		res.Err = err
		return res
	}
	res.Users = len(users)

	for _, u := range users {
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			break
		}
		if err := s.deliver(ctx, u); err != nil {
			res.Failures = append(res.Failures, DeliveryError{UserID: u.ID, Err: err})
			s.record(ctx, "failed")
			s.log.Warn("reminder not delivered", "user_id", u.ID, "error", err)
			continue
		}
		res.Delivered++
		s.record(ctx, "delivered")
	}
	return res
}

// deliver sends one reminder, turning a panic in the notifier into an error
func (s *Scheduler) deliver(ctx context.Context, u models.UserRef) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.notifier.Notify(ctx, u.ID, s.message(u))
}

func (s *Scheduler) record(ctx context.Context, outcome string) {
	if s.deliveries != nil {
		s.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}
