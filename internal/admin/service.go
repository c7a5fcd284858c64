// Package admin serves the administrator overview and user management.
package admin

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"inkwell/internal/analytics"
	"inkwell/internal/backend"
	"inkwell/internal/content"
	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/requestcontext"
)

// UserStore is the backend's admin user API.
type UserStore interface {
	ListUsers(ctx context.Context, token string) ([]backend.User, error)
	AddUser(ctx context.Context, token string, user backend.NewUser) (string, error)
	UpdateUser(ctx context.Context, token string, update backend.UserUpdate) (string, error)
	DeleteUser(ctx context.Context, token, email string) (string, error)
}

// StatsSource computes the aggregate figures the overview shows.
type StatsSource interface {
	Dashboard(ctx context.Context, token string) (*analytics.Dashboard, error)
}

// Service provides admin-level operations for monitoring and management
type Service struct {
	users  UserStore
	stats  StatsSource
	logger *slog.Logger
}

func NewService(users UserStore, stats StatsSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, stats: stats, logger: logger}
}

// Stats is the overview header.
type Stats struct {
	TotalUsers   int
	TotalContent int
	Admins       int
	Unverified   int
	Recent       []content.Item
	Timestamp    time.Time
}

// GetStats returns the overview figures.
func (s *Service) GetStats(ctx context.Context, token string) (*Stats, error) {
	d, err := s.stats.Dashboard(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalUsers:   d.TotalUsers,
		TotalContent: d.TotalContent,
		Admins:       d.Admins,
		Unverified:   d.Unverified,
		Recent:       d.Recent,
		Timestamp:    d.GeneratedAt,
	}, nil
}

// GetAllUsers returns every account ordered by username, then email.
func (s *Service) GetAllUsers(ctx context.Context, token string) ([]backend.User, error) {
	users, err := s.users.ListUsers(ctx, token)
	if err != nil {
		return nil, err
	}
	sorted := append([]backend.User(nil), users...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := strings.ToLower(sorted[i].Username), strings.ToLower(sorted[j].Username)
		if a != b {
			return a < b
		}
		return strings.ToLower(sorted[i].Email) < strings.ToLower(sorted[j].Email)
	})
	return sorted, nil
}

// FindUser looks an account up by email. The backend has no single-user
// admin endpoint, so this scans the list.
func (s *Service) FindUser(ctx context.Context, token, email string) (*backend.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "No user selected")
	}
	users, err := s.users.ListUsers(ctx, token)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, msgUserNotFound)
}

func (s *Service) AddUser(ctx context.Context, token string, form userForm) (string, error) {
	msg, err := s.users.AddUser(ctx, token, backend.NewUser{
		Email:    form.Email,
		Username: form.Username,
		Password: form.Password,
		Admin:    form.Admin,
		Verified: form.Verified,
	})
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "admin added user",
		"admin", form.Admin,
		"request_id", requestcontext.RequestID(ctx),
	)
	return orDefault(msg, msgUserAdded), nil
}

// UpdateUser applies form to the account identified by original. A changed
// email is sent as the new address; an empty password leaves it unchanged.
func (s *Service) UpdateUser(ctx context.Context, token, original string, form userForm) (string, error) {
	update := backend.UserUpdate{
		Email:    original,
		Username: form.Username,
		Password: form.Password,
		Admin:    form.Admin,
		Verified: form.Verified,
	}
	if !strings.EqualFold(form.Email, original) {
		update.NewEmail = form.Email
	}
	msg, err := s.users.UpdateUser(ctx, token, update)
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "admin updated user",
		"email_changed", update.NewEmail != "",
		"password_changed", update.Password != "",
		"request_id", requestcontext.RequestID(ctx),
	)
	return orDefault(msg, msgUserUpdated), nil
}

func (s *Service) DeleteUser(ctx context.Context, token, email string) (string, error) {
	msg, err := s.users.DeleteUser(ctx, token, email)
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "admin deleted user", "request_id", requestcontext.RequestID(ctx))
	return orDefault(msg, msgUserDeleted), nil
}

func orDefault(msg, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}
