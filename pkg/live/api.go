package live

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sharad1666/Discoursify/pkg/model"
)

// APIClient talks to the session REST API. Every call returns the full
// updated session object, which callers treat as authoritative.
type APIClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewAPIClient creates an API client for the given base URL
// (e.g. http://localhost:8085).
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is a non-2xx response from the session API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("session api: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the session API.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(raw, &payload)
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListSessions fetches all sessions.
func (c *APIClient) ListSessions(ctx context.Context) ([]*model.Session, error) {
	var out []*model.Session
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession fetches one session by id.
func (c *APIClient) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var out model.Session
	if err := c.do(ctx, http.MethodGet, "/sessions/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSessionByCode fetches a session by its 6-digit join code.
func (c *APIClient) GetSessionByCode(ctx context.Context, code string) (*model.Session, error) {
	var out model.Session
	if err := c.do(ctx, http.MethodGet, "/sessions/code/"+code, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession creates a session.
func (c *APIClient) CreateSession(ctx context.Context, req *model.CreateSessionRequest) (*model.Session, error) {
	var out model.Session
	if err := c.do(ctx, http.MethodPost, "/sessions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JoinSession joins a session; the server applies the waiting-room gate.
func (c *APIClient) JoinSession(ctx context.Context, id string, req *model.JoinSessionRequest) (*model.Session, error) {
	var out model.Session
	if err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/join", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartSession moves a session to LIVE.
func (c *APIClient) StartSession(ctx context.Context, id string) (*model.Session, error) {
	var out model.Session
	if err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/start", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LockSession locks a session; the server also starts it when not yet live.
func (c *APIClient) LockSession(ctx context.Context, id string) (*model.Session, error) {
	var out model.Session
	if err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/lock", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EndSession completes a session, submitting the merged transcript.
func (c *APIClient) EndSession(ctx context.Context, id string, transcript []string) (*model.Session, error) {
	var out model.Session
	req := model.EndSessionRequest{Transcript: transcript}
	if err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/end", &req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdmitParticipant moves a waiting-list entry onto the participant list.
func (c *APIClient) AdmitParticipant(ctx context.Context, id, participantID string) (*model.Session, error) {
	var out model.Session
	if err := c.do(ctx, http.MethodPost, "/sessions/"+id+"/admit/"+participantID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
