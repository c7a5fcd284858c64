package admin

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"inkwell/internal/admin/mocks"
	"inkwell/internal/analytics"
	"inkwell/internal/backend"
	"inkwell/internal/content"
	dErrors "inkwell/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	mockUsers *mocks.MockUserStore
	mockStats *mocks.MockStatsSource
	service   *Service
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockUsers = mocks.NewMockUserStore(s.ctrl)
	s.mockStats = mocks.NewMockStatsSource(s.ctrl)
	s.service = NewService(s.mockUsers, s.mockStats, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.ctx = context.Background()
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) TestGetStats() {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.mockStats.EXPECT().Dashboard(gomock.Any(), "tok").Return(&analytics.Dashboard{
		TotalUsers:   4,
		TotalContent: 9,
		Admins:       1,
		Unverified:   2,
		Recent:       []content.Item{{ID: 3, Title: "Latest"}},
		GeneratedAt:  at,
	}, nil)

	stats, err := s.service.GetStats(s.ctx, "tok")
	s.Require().NoError(err)
	s.Equal(4, stats.TotalUsers)
	s.Equal(9, stats.TotalContent)
	s.Equal(1, stats.Admins)
	s.Equal(2, stats.Unverified)
	s.Equal("Latest", stats.Recent[0].Title)
	s.Equal(at, stats.Timestamp)
}

func (s *ServiceSuite) TestGetStatsError() {
	s.mockStats.EXPECT().Dashboard(gomock.Any(), "tok").Return(nil, dErrors.New(dErrors.CodeTimeout, "slow"))

	_, err := s.service.GetStats(s.ctx, "tok")
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *ServiceSuite) TestFindUser() {
	s.Run("blank email", func() {
		_, err := s.service.FindUser(s.ctx, "tok", "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("matches case-insensitively", func() {
		s.mockUsers.EXPECT().ListUsers(gomock.Any(), "tok").Return([]backend.User{
			{ID: 1, Email: "amy@example.com"},
			{ID: 2, Email: "Bob@Example.com"},
		}, nil)

		u, err := s.service.FindUser(s.ctx, "tok", "bob@example.com")
		s.Require().NoError(err)
		s.Equal(2, u.ID)
	})

	s.Run("unknown", func() {
		s.mockUsers.EXPECT().ListUsers(gomock.Any(), "tok").Return(nil, nil)

		_, err := s.service.FindUser(s.ctx, "tok", "nobody@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal(msgUserNotFound, dErrors.UserMessage(err))
	})
}

func (s *ServiceSuite) TestAddUserDefaultsMessage() {
	s.mockUsers.EXPECT().AddUser(gomock.Any(), "tok", backend.NewUser{
		Email:    "a@example.com",
		Username: "a",
		Password: "secret1",
		Verified: true,
	}).Return("", nil)

	msg, err := s.service.AddUser(s.ctx, "tok", userForm{Username: "a", Email: "a@example.com", Password: "secret1", Verified: true})
	s.Require().NoError(err)
	s.Equal(msgUserAdded, msg)
}

func (s *ServiceSuite) TestUpdateUserSendsNewEmailOnlyWhenChanged() {
	s.Run("same address", func() {
		s.mockUsers.EXPECT().UpdateUser(gomock.Any(), "tok", backend.UserUpdate{
			Email:    "amy@example.com",
			Username: "amy",
		}).Return("Saved", nil)

		msg, err := s.service.UpdateUser(s.ctx, "tok", "amy@example.com", userForm{Username: "amy", Email: "AMY@example.com"})
		s.Require().NoError(err)
		s.Equal("Saved", msg)
	})

	s.Run("new address", func() {
		s.mockUsers.EXPECT().UpdateUser(gomock.Any(), "tok", backend.UserUpdate{
			Email:    "amy@example.com",
			NewEmail: "amy@new.example",
			Username: "amy",
			Password: "longer1",
			Admin:    true,
		}).Return(" ", nil)

		msg, err := s.service.UpdateUser(s.ctx, "tok", "amy@example.com", userForm{Username: "amy", Email: "amy@new.example", Password: "longer1", Admin: true})
		s.Require().NoError(err)
		s.Equal(msgUserUpdated, msg)
	})
}

func (s *ServiceSuite) TestDeleteUserPropagatesErrors() {
	s.mockUsers.EXPECT().DeleteUser(gomock.Any(), "tok", "amy@example.com").
		Return("", dErrors.New(dErrors.CodeNotFound, "User not found"))

	_, err := s.service.DeleteUser(s.ctx, "tok", "amy@example.com")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestDeleteUserDefaultsMessage() {
	s.mockUsers.EXPECT().DeleteUser(gomock.Any(), "tok", "amy@example.com").Return("", nil)

	msg, err := s.service.DeleteUser(s.ctx, "tok", "amy@example.com")
	s.Require().NoError(err)
	s.Equal(msgUserDeleted, msg)
}
