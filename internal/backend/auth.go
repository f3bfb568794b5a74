package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kawaltani/kawaltani/internal/models"
)

// Credentials are what a successful login returns. User is kept raw so it
// can be stored and handed back unchanged.
type Credentials struct {
	Token string
	User  json.RawMessage
}

// Login exchanges a username and password for a token. It is sent without
// the current token.
func (c *Client) Login(ctx context.Context, username, password string) (Credentials, error) {
	var body struct {
		Token   string          `json:"token"`
		User    json.RawMessage `json:"user"`
		Message string          `json:"message"`
	}
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/login",
		endpoint: "login",
		body: map[string]string{
			"user_name": username,
			"user_pass": password,
		},
		anonymous: true,
	}, &body)
	if err != nil {
		return Credentials{}, fmt.Errorf("login: %w", err)
	}
	// The session only counts as logged in with both a token and a user.
	if body.Token == "" || len(body.User) == 0 || string(body.User) == "null" {
		return Credentials{}, fmt.Errorf("login: %w", &APIError{Status: http.StatusOK, Message: body.Message})
	}
	return Credentials{Token: body.Token, User: body.User}, nil
}

// Logout revokes the current token on the backend.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/logout",
		endpoint: "logout",
	}, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

type profileResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    models.User `json:"data"`
}

func (c *Client) Profile(ctx context.Context) (models.User, error) {
	var body profileResponse
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/profile",
		endpoint: "profile",
	}, &body)
	if err != nil {
		return models.User{}, fmt.Errorf("fetch profile: %w", err)
	}
	if !body.Success {
		return models.User{}, fmt.Errorf("fetch profile: %w", &APIError{Status: http.StatusOK, Message: body.Message})
	}
	return body.Data, nil
}

// UpdateProfile saves profile fields and returns the backend's confirmation
// message. Passwords are only sent when both the current and the new
// password are given.
func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (string, error) {
	if update.CurrentPassword == "" || update.NewPassword == "" {
		update.CurrentPassword = ""
		update.NewPassword = ""
		update.NewPasswordConfirmation = ""
	}
	var body profileResponse
	err := c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/api/profile",
		endpoint: "profile",
		body:     update,
	}, &body)
	if err != nil {
		return "", fmt.Errorf("update profile: %w", err)
	}
	if !body.Success {
		return "", fmt.Errorf("update profile: %w", &APIError{Status: http.StatusOK, Message: body.Message})
	}
	return body.Message, nil
}
