package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kawaltani/kawaltani/internal/models"
)

func (c *Client) ChatNames(ctx context.Context) ([]models.ChatName, error) {
	var names []models.ChatName
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/chat/names",
		endpoint: "chat/names",
	}, &names)
	if err != nil {
		return nil, fmt.Errorf("list chat names: %w", err)
	}
	return names, nil
}

func (c *Client) ChatHistory(ctx context.Context, title string) ([]models.ChatExchange, error) {
	var exchanges []models.ChatExchange
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/chat/history/" + escape(title),
		endpoint: "chat/history/:title",
	}, &exchanges)
	if err != nil {
		return nil, fmt.Errorf("fetch chat history: %w", err)
	}
	return exchanges, nil
}

func (c *Client) DeleteChat(ctx context.Context, title string) error {
	err := c.do(ctx, request{
		method:   http.MethodDelete,
		path:     "/api/chat/history/" + escape(title),
		endpoint: "chat/history/:title",
	}, nil)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

// RenameChat renames a session. A clash with another of the user's titles
// matches ErrDuplicate.
func (c *Client) RenameChat(ctx context.Context, oldTitle, newTitle string) error {
	err := c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/api/chat/rename-chat/" + escape(oldTitle),
		endpoint: "chat/rename-chat/:title",
		body:     map[string]string{"newName": newTitle},
	}, nil)
	if err != nil {
		return fmt.Errorf("rename chat: %w", err)
	}
	return nil
}

// SendChat posts a message. An empty title starts a new session.
func (c *Client) SendChat(ctx context.Context, title, message string) (models.ChatReply, error) {
	path, endpoint := "/api/chat/send", "chat/send"
	if title == "" {
		path, endpoint = "/api/chat/new", "chat/new"
	}
	var reply models.ChatReply
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     path,
		endpoint: endpoint,
		body: map[string]any{
			"message":   message,
			"name_chat": nullable(title),
		},
	}, &reply)
	if err != nil {
		return models.ChatReply{}, fmt.Errorf("send chat: %w", err)
	}
	return reply, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
