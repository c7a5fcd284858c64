package admin

import (
	"net/http"
	"strings"

	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/validation"
)

const (
	msgUserAdded      = "User added successfully"
	msgUserUpdated    = "User updated successfully"
	msgUserDeleted    = "User deleted successfully"
	msgUserNotFound   = "User not found"
	msgPasswordNeeded = "Password is required for new users"
	msgConfirmDelete  = "Please confirm that you want to delete this user."
	msgDeleteSelf     = "You cannot delete your own account here. Use account settings instead."
	msgLoadUsers      = "Failed to load users. Please try again later."
)

// userForm is the add and edit form. Password may be empty on edit, which
// keeps the current one.
type userForm struct {
	Username string `label:"Username" validate:"notblank,max=50"`
	Email    string `label:"Email" validate:"required,email,max=255"`
	Password string `label:"Password" validate:"omitempty,min=6,max=128"`
	Admin    bool
	Verified bool
}

func readUserForm(r *http.Request) userForm {
	return userForm{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Admin:    checked(r, "admin"),
		Verified: checked(r, "verified"),
	}
}

func checked(r *http.Request, name string) bool {
	switch r.PostFormValue(name) {
	case "yes", "on", "true":
		return true
	}
	return false
}

func (f *userForm) Validate(requirePassword bool) error {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)
	if requirePassword && f.Password == "" {
		return dErrors.New(dErrors.CodeValidation, msgPasswordNeeded)
	}
	return validation.Validate(f)
}
