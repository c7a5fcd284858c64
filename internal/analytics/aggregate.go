// Package analytics derives the admin overview figures from the users and
// content collections. It only reads.
package analytics

import (
	"sort"
	"strings"
	"time"

	"inkwell/internal/backend"
	"inkwell/internal/content"
)

const (
	// GrowthMonths is the length of the growth series, current month included.
	GrowthMonths = 6
	// RecentCount is how many of the newest posts the overview lists.
	RecentCount = 5
)

// Dashboard is everything the analytics pages show.
type Dashboard struct {
	TotalUsers   int
	TotalContent int

	Admins     int
	Regular    int
	Verified   int
	Unverified int

	Authors []AuthorCount
	Growth  []GrowthPoint
	// UndatedUsers counts accounts the backend sent without a creation date.
	// They are part of TotalUsers but of no growth bucket.
	UndatedUsers int

	Recent      []content.Item
	GeneratedAt time.Time
}

// AuthorCount is one bar of the content-by-author chart. Percent is relative
// to the most prolific author.
type AuthorCount struct {
	Author  string
	Count   int
	Percent int
}

// GrowthPoint is one month of the growth chart.
type GrowthPoint struct {
	Month      time.Time
	Label      string
	NewUsers   int
	NewContent int
	// TotalUsers counts dated accounts created up to the end of the month.
	TotalUsers int

	UsersPercent   int
	ContentPercent int
}

// Aggregate computes the dashboard from already fetched collections. It is
// pure: the same inputs and now give the same result.
func Aggregate(users []backend.User, posts []backend.Content, now time.Time) Dashboard {
	d := Dashboard{
		TotalUsers:   len(users),
		TotalContent: len(posts),
		Authors:      []AuthorCount{},
		Recent:       []content.Item{},
		GeneratedAt:  now,
	}

	for _, u := range users {
		if u.Admin {
			d.Admins++
		}
		if u.Verified {
			d.Verified++
		}
	}
	d.Regular = d.TotalUsers - d.Admins
	d.Unverified = d.TotalUsers - d.Verified

	d.Authors = authorCounts(posts)
	d.Growth, d.UndatedUsers = growth(users, posts, now)
	d.Recent = recent(posts)
	return d
}

func authorCounts(posts []backend.Content) []AuthorCount {
	counts := make(map[string]int)
	for _, p := range posts {
		name := strings.TrimSpace(p.Author)
		if name == "" {
			continue
		}
		counts[name]++
	}

	out := make([]AuthorCount, 0, len(counts))
	top := 0
	for name, n := range counts {
		out = append(out, AuthorCount{Author: name, Count: n})
		top = max(top, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Author < out[j].Author
	})
	for i := range out {
		out[i].Percent = percent(out[i].Count, top)
	}
	return out
}

func growth(users []backend.User, posts []backend.Content, now time.Time) ([]GrowthPoint, int) {
	loc := now.Location()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	first := current.AddDate(0, 1-GrowthMonths, 0)

	points := make([]GrowthPoint, GrowthMonths)
	for i := range points {
		m := first.AddDate(0, i, 0)
		points[i] = GrowthPoint{Month: m, Label: m.Format("Jan")}
	}
	// Dates are bucketed by their own calendar month.
	bucket := func(t time.Time) int {
		m := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
		if m.Before(first) || m.After(current) {
			return -1
		}
		return (m.Year()-first.Year())*12 + int(m.Month()-first.Month())
	}

	undated := 0
	before := 0
	for _, u := range users {
		created, ok := ParseTime(u.CreatedAt)
		if !ok {
			undated++
			continue
		}
		if i := bucket(created); i >= 0 {
			points[i].NewUsers++
		} else if created.Before(first) {
			before++
		}
	}
	for _, p := range posts {
		if published := content.Item(p).Published(); !published.IsZero() {
			if i := bucket(published); i >= 0 {
				points[i].NewContent++
			}
		}
	}

	running := before
	maxUsers, maxContent := 0, 0
	for i := range points {
		running += points[i].NewUsers
		points[i].TotalUsers = running
		maxUsers = max(maxUsers, points[i].NewUsers)
		maxContent = max(maxContent, points[i].NewContent)
	}
	for i := range points {
		points[i].UsersPercent = percent(points[i].NewUsers, maxUsers)
		points[i].ContentPercent = percent(points[i].NewContent, maxContent)
	}
	return points, undated
}

func recent(posts []backend.Content) []content.Item {
	items := make([]content.Item, 0, len(posts))
	for _, p := range posts {
		items = append(items, content.Item(p))
	}
	items = content.Apply(items, content.Query{Sort: content.SortNewest})
	if len(items) > RecentCount {
		items = items[:RecentCount]
	}
	return items
}

// timeLayouts are the creation-date shapes backends send: ISO instants,
// local date-times without a zone, bare dates and display dates.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
}

// ParseTime reads a backend date in any of the known layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func percent(n, of int) int {
	if of <= 0 {
		return 0
	}
	return n * 100 / of
}
