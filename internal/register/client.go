package register

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RegisterReply is the registration endpoint's response body.
type RegisterReply struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	FirstLogin bool   `json:"first_login,omitempty"`
}

type validityReply struct {
	IsValid bool `json:"isValid"`
}

// Client talks to the registration and validation endpoints. It doubles as
// the flow's Validator.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient builds a client against the given base URL.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// Register posts the aggregated form as JSON. Both success and rejection
// arrive as a parsed reply; only transport and decoding problems are errors.
func (c *Client) Register(ctx context.Context, form Form) (*RegisterReply, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("encode registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/register", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post registration: %w", err)
	}
	defer resp.Body.Close()

	var reply RegisterReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode registration reply: %w", err)
	}
	return &reply, nil
}

// ValidateEmail checks the email with the server. The endpoint speaks
// form-encoded bodies.
func (c *Client) ValidateEmail(ctx context.Context, email string) (bool, error) {
	return c.postValidity(ctx, "/validate_email", url.Values{"email": {email}})
}

// ValidateUsername checks the username with the server.
func (c *Client) ValidateUsername(ctx context.Context, userName string) (bool, error) {
	return c.postValidity(ctx, "/validate_username", url.Values{"userName": {userName}})
}

func (c *Client) postValidity(ctx context.Context, path string, values url.Values) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(values.Encode()))
	if err != nil {
		return false, fmt.Errorf("build validation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("post validation: %w", err)
	}
	defer resp.Body.Close()

	var reply validityReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return false, fmt.Errorf("decode validation reply: %w", err)
	}
	return reply.IsValid, nil
}
