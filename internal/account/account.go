// Package account serves the signed-in user's dashboard and the settings
// that change their profile, password, email address or the account itself.
package account

import (
	"context"
	"strings"

	"inkwell/internal/backend"
	"inkwell/internal/content"
	"inkwell/internal/session"
	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/validation"
)

type Backend interface {
	GetUserDetails(ctx context.Context, token string) (*backend.User, error)
	UpdateProfile(ctx context.Context, token string, update backend.ProfileUpdate) (string, error)
	UpdatePassword(ctx context.Context, token, password string) (string, error)
	DeleteAccount(ctx context.Context, token string) error
	InitiateEmailUpdate(ctx context.Context, token, newEmail string) (string, error)
	VerifyEmailUpdate(ctx context.Context, token, otp string) (string, error)
	ListMyContent(ctx context.Context, token string) ([]backend.Content, error)
}

// RecentPostCount is how many of the user's posts the dashboard lists.
const RecentPostCount = 5

// recentPosts returns the user's newest posts first.
func recentPosts(posts []backend.Content) []content.Item {
	items := make([]content.Item, 0, len(posts))
	for _, p := range posts {
		items = append(items, content.Item(p))
	}
	items = content.Apply(items, content.Query{Sort: content.SortNewest})
	if len(items) > RecentPostCount {
		items = items[:RecentPostCount]
	}
	return items
}

// mergeUser refreshes the session identity from a fetched profile. The admin
// flag is kept when the profile omits it, since sign-in may report it apart
// from the user record.
func mergeUser(current *session.User, fetched *backend.User) *session.User {
	if fetched == nil {
		return current
	}
	u := &session.User{
		ID:           fetched.ID,
		Username:     fetched.Username,
		Email:        fetched.Email,
		Admin:        fetched.Admin,
		Verified:     fetched.Verified,
		ProfileImage: fetched.ProfileImage,
	}
	if current != nil {
		u.Admin = u.Admin || current.Admin
		if u.ID == 0 {
			u.ID = current.ID
		}
	}
	return u
}

type profileForm struct {
	Username string `label:"Username" validate:"notblank,max=50"`
}

func (f *profileForm) Validate() error {
	f.Username = strings.TrimSpace(f.Username)
	return validation.Validate(f)
}

type passwordForm struct {
	Password        string `label:"New password" validate:"required,min=6,max=128"`
	ConfirmPassword string
}

func (f passwordForm) Validate() error {
	if f.Password != f.ConfirmPassword {
		return dErrors.New(dErrors.CodeValidation, msgPasswordMismatch)
	}
	return validation.Validate(f)
}

type emailForm struct {
	Email string `label:"New email" validate:"required,email,max=255"`
}

func (f *emailForm) Validate(current string) error {
	f.Email = strings.TrimSpace(f.Email)
	if f.Email == "" {
		return dErrors.New(dErrors.CodeValidation, msgEmailRequired)
	}
	if err := validation.Validate(f); err != nil {
		return err
	}
	if strings.EqualFold(f.Email, current) {
		return dErrors.New(dErrors.CodeValidation, "That is already your email address")
	}
	return nil
}

const (
	msgProfileUpdated   = "Profile updated successfully!"
	msgPasswordUpdated  = "Password updated successfully!"
	msgPasswordMismatch = "New passwords do not match."
	msgEmailRequired    = "Please enter a new email address"
	msgOTPSent          = "OTP sent to your new email address. Please check your inbox."
	msgOTPRequired      = "Please enter the verification code"
	msgEmailUpdated     = "Email updated successfully!"
	msgAccountDeleted   = "Your account has been deleted."
	msgConfirmDelete    = "Please confirm that you want to delete your account."
)
