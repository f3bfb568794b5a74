package chat

import (
	"sort"
	"strings"
	"time"

	"github.com/kawaltani/kawaltani/internal/models"
)

// Category is a relative-date bucket for chat sessions.
type Category string

const (
	Today     Category = "Hari Ini"
	Yesterday Category = "Kemarin"
	Earlier   Category = "Hari Sebelumnya"
)

// Categories holds sessions bucketed by creation day, each sorted newest first.
type Categories struct {
	Today     []models.ChatSession
	Yesterday []models.ChatSession
	Earlier   []models.ChatSession
}

// Group is a named category for rendering.
type Group struct {
	Category Category
	Sessions []models.ChatSession
}

// Groups returns the categories in display order.
func (c Categories) Groups() []Group {
	return []Group{
		{Today, c.Today},
		{Yesterday, c.Yesterday},
		{Earlier, c.Earlier},
	}
}

func (c Categories) Len() int {
	return len(c.Today) + len(c.Yesterday) + len(c.Earlier)
}

// Find returns the session with title, if any category holds it.
func (c Categories) Find(title string) (models.ChatSession, bool) {
	for _, g := range c.Groups() {
		for _, s := range g.Sessions {
			if s.Title == title {
				return s, true
			}
		}
	}
	return models.ChatSession{}, false
}

// Sessions converts chat names from the backend. A missing id becomes the
// entry's position and a missing or unparseable creation time becomes now.
func Sessions(names []models.ChatName, now time.Time, loc *time.Location) []models.ChatSession {
	sessions := make([]models.ChatSession, 0, len(names))
	for i, n := range names {
		s := models.ChatSession{ID: int64(i), Title: n.Title, CreatedAt: now}
		if n.ID != nil && *n.ID != 0 {
			s.ID = *n.ID
		}
		if n.CreatedAt != nil {
			if t, ok := models.ParseTimestamp(*n.CreatedAt, loc); ok {
				s.CreatedAt = t
			}
		}
		sessions = append(sessions, s)
	}
	return sessions
}

// Categorize buckets sessions by the calendar day of CreatedAt in loc
// relative to now. Sessions with a blank title are left out.
func Categorize(sessions []models.ChatSession, now time.Time, loc *time.Location) Categories {
	if loc == nil {
		loc = time.UTC
	}
	today := dayOf(now, loc)
	yesterday := today.AddDate(0, 0, -1)

	var c Categories
	for _, s := range sessions {
		if strings.TrimSpace(s.Title) == "" {
			continue
		}
		switch day := dayOf(s.CreatedAt, loc); {
		case day.Equal(today):
			c.Today = append(c.Today, s)
		case day.Equal(yesterday):
			c.Yesterday = append(c.Yesterday, s)
		default:
			c.Earlier = append(c.Earlier, s)
		}
	}

	for _, list := range [][]models.ChatSession{c.Today, c.Yesterday, c.Earlier} {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		})
	}
	return c
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
