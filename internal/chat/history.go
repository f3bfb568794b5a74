package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kawaltani/kawaltani/internal/htmlutil"
	"github.com/kawaltani/kawaltani/internal/models"
)

// Store is the remote chat store.
type Store interface {
	ChatNames(ctx context.Context) ([]models.ChatName, error)
	RenameChat(ctx context.Context, oldTitle, newTitle string) error
	DeleteChat(ctx context.Context, title string) error
	ChatHistory(ctx context.Context, title string) ([]models.ChatExchange, error)
	SendChat(ctx context.Context, title, message string) (models.ChatReply, error)
}

// Auth reports whether an authenticated session exists.
type Auth interface {
	LoggedIn() bool
}

// History lists, renames and deletes a user's chat sessions. Every mutation
// is followed by a fresh list so callers always render the store's view.
type History struct {
	store Store
	auth  Auth
	loc   *time.Location
	now   func() time.Time
}

func NewHistory(store Store, auth Auth, loc *time.Location) *History {
	return &History{store: store, auth: auth, loc: loc, now: time.Now}
}

// List fetches and categorizes the user's sessions. Without a session it
// returns no sessions and no error.
func (h *History) List(ctx context.Context) (Categories, error) {
	if !h.auth.LoggedIn() {
		return Categories{}, nil
	}
	names, err := h.store.ChatNames(ctx)
	if err != nil {
		return Categories{}, fmt.Errorf("list chats: %w", err)
	}
	now := h.now()
	return Categorize(Sessions(names, now, h.loc), now, h.loc), nil
}

// Rename changes a session's title. A blank or unchanged title is a no-op.
// It returns the title the session now has.
func (h *History) Rename(ctx context.Context, oldTitle, newTitle string) (string, Categories, error) {
	if !h.auth.LoggedIn() {
		return oldTitle, Categories{}, &Error{Op: OpRename, Kind: ErrNotLoggedIn}
	}
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" || newTitle == oldTitle {
		c, err := h.List(ctx)
		return oldTitle, c, err
	}
	if err := h.store.RenameChat(ctx, oldTitle, newTitle); err != nil {
		return oldTitle, Categories{}, opError(OpRename, err)
	}
	c, err := h.List(ctx)
	return newTitle, c, err
}

// Delete removes a session and its messages.
func (h *History) Delete(ctx context.Context, title string) (Categories, error) {
	if !h.auth.LoggedIn() {
		return Categories{}, &Error{Op: OpDelete, Kind: ErrNotLoggedIn}
	}
	if err := h.store.DeleteChat(ctx, title); err != nil {
		return Categories{}, opError(OpDelete, err)
	}
	return h.List(ctx)
}

// Messages loads a session's full conversation as alternating user and bot
// messages.
func (h *History) Messages(ctx context.Context, title string) ([]models.ChatMessage, error) {
	exchanges, err := h.store.ChatHistory(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("load chat %q: %w", title, err)
	}
	messages := make([]models.ChatMessage, 0, len(exchanges)*2)
	for _, e := range exchanges {
		messages = append(messages,
			models.ChatMessage{Role: models.RoleUser, Text: e.Message},
			models.ChatMessage{Role: models.RoleBot, Text: htmlutil.ReplyText(e.Response)},
		)
	}
	return messages, nil
}

// Send posts a message. An empty title starts a new session whose title
// the store assigns and returns in the reply.
func (h *History) Send(ctx context.Context, title, message string) (models.ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return models.ChatReply{Title: title}, nil
	}
	reply, err := h.store.SendChat(ctx, title, message)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("send chat: %w", err)
	}
	if reply.Title == "" {
		reply.Title = title
	}
	reply.Response = htmlutil.ReplyText(reply.Response)
	return reply, nil
}
