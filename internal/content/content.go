// Package content implements the post listing, detail and CRUD views.
package content

import (
	"sort"
	"strings"
	"time"

	"inkwell/internal/backend"
	"inkwell/internal/blocks"
	dErrors "inkwell/pkg/domain-errors"
	s "inkwell/pkg/string"
	"inkwell/pkg/validation"
)

// Item is one post as the backend returns it.
type Item backend.Content

// DateLayout is how the backend formats Date and UpdatedAt.
const DateLayout = "January 2, 2006"

// Teaser is the excerpt shown on cards: the author's excerpt when set,
// otherwise one derived from the first paragraph.
func (i Item) Teaser() string {
	if e := strings.TrimSpace(i.Excerpt); e != "" {
		return e
	}
	return blocks.Excerpt(blocks.Deserialize(i.Data), blocks.DefaultExcerptLength)
}

// Published parses Date. The zero time means the date was missing or
// unreadable.
func (i Item) Published() time.Time {
	t, err := time.Parse(DateLayout, strings.TrimSpace(i.Date))
	if err != nil {
		return time.Time{}
	}
	return t
}

// OwnedBy reports whether userID wrote the post.
func (i Item) OwnedBy(userID int) bool {
	return userID != 0 && i.AuthorID == userID
}

func toItems(in []backend.Content) []Item {
	out := make([]Item, len(in))
	for idx, c := range in {
		out[idx] = Item(c)
	}
	return out
}

// Fields are the editable parts of a post. Data is the serialized block
// document.
type Fields struct {
	Title   string `label:"Title" validate:"max=200"`
	Excerpt string `label:"Excerpt" validate:"max=500"`
	Data    string
	Image   *backend.Upload
}

// Validate rejects a missing title and oversized fields.
func (f *Fields) Validate() error {
	s.TrimStrings(&f.Title, &f.Excerpt)
	if f.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "Please enter a title for your post")
	}
	if err := validation.Validate(f); err != nil {
		return err
	}
	if len(f.Data) > validation.MaxDocumentBytes {
		return dErrors.New(dErrors.CodeValidation, "The post is too large to save")
	}
	return nil
}

func (f Fields) backend() backend.ContentFields {
	return backend.ContentFields{Title: f.Title, Excerpt: f.Excerpt, Data: f.Data, Image: f.Image}
}

// Sort orders for the public listing.
const (
	SortNewest       = "newest"
	SortOldest       = "oldest"
	SortAlphabetical = "alphabetical"
)

// Query narrows the public listing. The zero value shows everything,
// newest first.
type Query struct {
	Search string
	Author string
	Sort   string
}

// Normalize trims the inputs and replaces an unknown sort with the default.
func (q Query) Normalize() Query {
	q.Search = strings.TrimSpace(q.Search)
	if validation.CheckStringLength("search", q.Search, validation.MaxSearchLength) != nil {
		q.Search = string([]rune(q.Search)[:validation.MaxSearchLength])
	}
	q.Author = strings.TrimSpace(q.Author)
	switch q.Sort {
	case SortNewest, SortOldest, SortAlphabetical:
	default:
		q.Sort = SortNewest
	}
	return q
}

// Apply filters and sorts items without modifying the input. Search matches
// title or excerpt case-insensitively.
func Apply(items []Item, q Query) []Item {
	q = q.Normalize()
	needle := strings.ToLower(q.Search)

	out := make([]Item, 0, len(items))
	for _, it := range items {
		if needle != "" &&
			!strings.Contains(strings.ToLower(it.Title), needle) &&
			!strings.Contains(strings.ToLower(it.Excerpt), needle) {
			continue
		}
		if q.Author != "" && !strings.EqualFold(strings.TrimSpace(it.Author), q.Author) {
			continue
		}
		out = append(out, it)
	}

	switch q.Sort {
	case SortAlphabetical:
		sort.SliceStable(out, func(a, b int) bool {
			return strings.ToLower(out[a].Title) < strings.ToLower(out[b].Title)
		})
	case SortOldest:
		sort.SliceStable(out, func(a, b int) bool {
			return out[a].Published().Before(out[b].Published())
		})
	default:
		sort.SliceStable(out, func(a, b int) bool {
			return out[a].Published().After(out[b].Published())
		})
	}
	return out
}

// Authors lists the distinct author names in order of first appearance.
func Authors(items []Item) []string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Author
	}
	return s.DedupeAndTrim(names)
}
