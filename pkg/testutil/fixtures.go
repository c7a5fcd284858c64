package testutil

import (
	"fmt"
	"time"

	"inkwell/internal/backend"
)

// UserBuilder provides a fluent interface for building backend users.
type UserBuilder struct {
	user backend.User
}

// NewUser starts a verified, non-admin user whose name and email derive from id.
func NewUser(id int) *UserBuilder {
	return &UserBuilder{user: backend.User{
		ID:       id,
		Username: fmt.Sprintf("user%d", id),
		Email:    fmt.Sprintf("user%d@example.com", id),
		Verified: true,
	}}
}

func (b *UserBuilder) Named(username string) *UserBuilder {
	b.user.Username = username
	return b
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.user.Email = email
	return b
}

func (b *UserBuilder) Admin() *UserBuilder {
	b.user.Admin = true
	return b
}

func (b *UserBuilder) Unverified() *UserBuilder {
	b.user.Verified = false
	return b
}

// JoinedAt stamps the account creation time in the backend's RFC 3339 form.
func (b *UserBuilder) JoinedAt(t time.Time) *UserBuilder {
	b.user.CreatedAt = t.UTC().Format(time.RFC3339)
	return b
}

func (b *UserBuilder) Build() backend.User {
	return b.user
}

// ContentBuilder provides a fluent interface for building backend posts.
type ContentBuilder struct {
	content backend.Content
}

// NewContent starts a post with an empty document.
func NewContent(id int) *ContentBuilder {
	return &ContentBuilder{content: backend.Content{
		ID:    id,
		Title: fmt.Sprintf("Post %d", id),
		Data:  `{"blocks":[]}`,
	}}
}

func (b *ContentBuilder) Titled(title string) *ContentBuilder {
	b.content.Title = title
	return b
}

func (b *ContentBuilder) By(author string, authorID int) *ContentBuilder {
	b.content.Author = author
	b.content.AuthorID = authorID
	return b
}

// On stamps the publication date the way the backend formats it.
func (b *ContentBuilder) On(t time.Time) *ContentBuilder {
	b.content.Date = t.Format("January 2, 2006")
	return b
}

func (b *ContentBuilder) WithExcerpt(excerpt string) *ContentBuilder {
	b.content.Excerpt = excerpt
	return b
}

func (b *ContentBuilder) Build() backend.Content {
	return b.content
}
