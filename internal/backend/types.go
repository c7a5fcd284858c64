package backend

import (
	"io"
	"strconv"
)

// User as the backend serializes it. CreatedAt is only present on backends
// that expose it; analytics falls back gracefully without it.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Admin        bool   `json:"admin"`
	Verified     bool   `json:"verified"`
	ProfileImage string `json:"profileImage,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// SignInResult is the body of POST /api/auth/signin.
type SignInResult struct {
	Token   string `json:"jwtToken"`
	IsAdmin bool   `json:"isAdmin"`
	User    *User  `json:"user"`
}

// SignupResult is the body of a completed OTP verification.
type SignupResult struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    *User  `json:"user"`
}

// Content is one post as the backend returns it. Data holds the serialized
// block document; Date and UpdatedAt are display strings such as "March 4, 2026".
type Content struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Excerpt   string `json:"excerpt"`
	Author    string `json:"author"`
	AuthorID  int    `json:"authorId"`
	Date      string `json:"date"`
	UpdatedAt string `json:"updatedAt,omitempty"`
	Image     string `json:"image,omitempty"`
	Data      string `json:"data"`
}

// Upload is a file forwarded from a browser form.
type Upload struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

// ContentFields are the multipart fields of content create and update.
type ContentFields struct {
	Title   string
	Excerpt string
	Data    string
	Image   *Upload
}

// ProfileUpdate is the "user" part of POST /api/user/updateuser.
type ProfileUpdate struct {
	Username string  `json:"username,omitempty"`
	Email    string  `json:"email,omitempty"`
	Image    *Upload `json:"-"`
}

// NewUser is the body of admin add-user.
type NewUser struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"-"`
	Verified bool   `json:"-"`
}

func (n NewUser) payload() map[string]string {
	return map[string]string{
		"email":    n.Email,
		"username": n.Username,
		"password": n.Password,
		"admin":    strconv.FormatBool(n.Admin),
		"verified": strconv.FormatBool(n.Verified),
	}
}

// UserUpdate is the body of admin update-user. Email identifies the user;
// empty NewEmail, Username and Password leave those fields unchanged, while
// Admin and Verified are always applied.
type UserUpdate struct {
	Email    string
	NewEmail string
	Username string
	Password string
	Admin    bool
	Verified bool
}

// payload renders the update the way the backend reads it: a map of strings.
func (u UserUpdate) payload() map[string]string {
	p := map[string]string{
		"email":    u.Email,
		"admin":    strconv.FormatBool(u.Admin),
		"verified": strconv.FormatBool(u.Verified),
	}
	if u.NewEmail != "" {
		p["newEmail"] = u.NewEmail
	}
	if u.Username != "" {
		p["username"] = u.Username
	}
	if u.Password != "" {
		p["password"] = u.Password
	}
	return p
}
