// Package auth serves the pages that create and end a session: sign-in,
// two-step signup, password recovery and logout.
package auth

import (
	"context"
	"strings"

	"inkwell/internal/backend"
	"inkwell/internal/session"
	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/validation"
)

// Backend is the part of the backend client these pages call.
type Backend interface {
	SignIn(ctx context.Context, email, password string) (*backend.SignInResult, error)
	InitiateSignup(ctx context.Context, email, username, password string) (string, error)
	VerifySignup(ctx context.Context, email, otp string) (*backend.SignupResult, error)
	ResendOTP(ctx context.Context, email string) (string, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	VerifyResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, newPassword string) (string, error)
	GetUserDetails(ctx context.Context, token string) (*backend.User, error)
}

// SessionUser converts the backend's user record into the session identity.
func SessionUser(u *backend.User) *session.User {
	if u == nil {
		return nil
	}
	return &session.User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Admin:        u.Admin,
		Verified:     u.Verified,
		ProfileImage: u.ProfileImage,
	}
}

// signedInUser merges the admin flag the sign-in response carries beside the
// user record.
func signedInUser(res *backend.SignInResult) *session.User {
	u := SessionUser(res.User)
	if u != nil && res.IsAdmin {
		u.Admin = true
	}
	return u
}

type loginForm struct {
	Email    string `label:"Email" validate:"required,email"`
	Password string `label:"Password" validate:"required"`
}

type signupForm struct {
	Name            string `label:"Name" validate:"notblank,max=50"`
	Email           string `label:"Email" validate:"required,email,max=255"`
	Password        string `label:"Password" validate:"required,min=6,max=128"`
	ConfirmPassword string
	Terms           bool
}

func (f *signupForm) Validate() error {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	if err := validation.Validate(f); err != nil {
		return err
	}
	if f.Password != f.ConfirmPassword {
		return dErrors.New(dErrors.CodeValidation, msgPasswordMismatch)
	}
	if !f.Terms {
		return dErrors.New(dErrors.CodeValidation, "You must agree to the terms")
	}
	return nil
}

type resetForm struct {
	Password        string `label:"Password" validate:"required,min=8,max=128"`
	ConfirmPassword string
}

// Validate checks the match first so a mistyped confirmation is reported
// before the length rule.
func (f resetForm) Validate() error {
	if f.Password != f.ConfirmPassword {
		return dErrors.New(dErrors.CodeValidation, msgPasswordMismatch)
	}
	return validation.Validate(f)
}

// Messages for backend answers the forms explain in their own words.
const (
	msgPasswordMismatch = "Passwords do not match"
	msgEmailTaken       = "This email is already registered. Please use a different email or try logging in."
	msgInvalidOTP       = "Invalid or expired OTP. Please request a new one."
	msgUnknownSignup    = "User not found. Please sign up again."
	msgResetLinkDead    = "This password reset link is invalid or has expired"
	msgOTPRequired      = "OTP is required"
	msgEmailRequired    = "Please enter your email address"
	msgWelcome          = "Registration successful! Welcome aboard."
	msgOTPResent        = "A new verification code has been sent to your email."
	msgResetEmailSent   = "If an account exists for that address, a password reset link has been sent."
	msgPasswordReset    = "Your password has been reset. Please log in with your new password."
	msgLoggedOut        = "You have been logged out."
	msgSessionExpired   = "Your session has expired. Please log in again."
)

// signupError rewrites the backend's answers to the initiate and verify calls.
func signupError(err error, verifying bool) error {
	switch {
	case dErrors.HasCode(err, dErrors.CodeConflict):
		return dErrors.New(dErrors.CodeConflict, msgEmailTaken)
	case verifying && dErrors.HasCode(err, dErrors.CodeValidation):
		return &dErrors.Error{Code: dErrors.CodeValidation, Message: msgInvalidOTP, Err: err}
	case verifying && dErrors.HasCode(err, dErrors.CodeNotFound):
		return &dErrors.Error{Code: dErrors.CodeNotFound, Message: msgUnknownSignup, Err: err}
	}
	return err
}
