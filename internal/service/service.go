// Package service is the report and plan API shared by the Telegram bot and
// the admin console. It applies the access rules and turns missing rows into
// typed errors.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tgienger/reportbot/internal/access"
	"github.com/tgienger/reportbot/internal/db"
	"github.com/tgienger/reportbot/internal/models"
	"github.com/tgienger/reportbot/internal/telemetry"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrEmptyText        = errors.New("text is empty")
)

// Service implements the report lifecycle
type Service struct {
	db     *db.DB
	policy *access.Policy
	log    *slog.Logger

	reportOps metric.Int64Counter
	taskOps   metric.Int64Counter
}

// New creates a service on top of an open database
func New(database *db.DB, policy *access.Policy, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	meter := telemetry.Meter("github.com/tgienger/reportbot/internal/service")
	reportOps, _ := meter.Int64Counter("reportbot.report.operations",
		metric.WithDescription("Report mutations by operation"))
	taskOps, _ := meter.Int64Counter("reportbot.task.operations",
		metric.WithDescription("Plan item mutations by operation"))

	return &Service{
		db:        database,
		policy:    policy,
		log:       log.With("component", "service"),
		reportOps: reportOps,
		taskOps:   taskOps,
	}
}

// Policy returns the access policy the service enforces
func (s *Service) Policy() *access.Policy {
	return s.policy
}

func (s *Service) countReport(ctx context.Context, op string) {
	if s.reportOps != nil {
		s.reportOps.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}

func (s *Service) countTask(ctx context.Context, op string) {
	if s.taskOps != nil {
		s.taskOps.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}

func cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

// RegisterUser records a user on first contact. Later calls keep the stored names.
func (s *Service) RegisterUser(ctx context.Context, userID int64, firstName, username string) error {
	return s.db.EnsureUser(ctx, userID, firstName, username)
}

// User returns a known user
func (s *Service) User(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.db.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// IsAdmin reports whether userID is an administrator
func (s *Service) IsAdmin(userID int64) bool {
	return s.policy.IsAdmin(userID)
}
