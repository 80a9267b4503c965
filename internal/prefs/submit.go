package prefs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/companionlabs/companion/internal/notify"
)

// fallbackErrorMessage is shown when the server provides no message of its own.
const fallbackErrorMessage = "Failed to update preferences. Please try again."

// serverReply is the JSON body returned by the preferences endpoint.
type serverReply struct {
	Message string `json:"message"`
}

// Submitter posts sparse preference updates to the backend and routes the
// outcome to the shared toast.
type Submitter struct {
	client  *http.Client
	baseURL string
	toaster *notify.Toaster
}

// NewSubmitter creates a submitter. A nil client falls back to
// http.DefaultClient.
func NewSubmitter(client *http.Client, baseURL string, toaster *notify.Toaster) *Submitter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Submitter{client: client, baseURL: baseURL, toaster: toaster}
}

// Submit validates the form and, if it passes, posts the sparse field map.
// A password mismatch aborts with an error toast before any request is
// issued. Network and server failures surface as error toasts with the
// server message when one exists.
func (s *Submitter) Submit(ctx context.Context, form *SettingsForm) error {
	if err := form.Validate(); err != nil {
		s.toaster.Notify("New password and confirmation do not match.", notify.KindError)
		return err
	}

	fields := form.Serialize()
	if len(fields) == 0 {
		slog.Debug("Preference submit skipped, no changed fields")
		return nil
	}

	reply, err := s.UpdatePreferences(ctx, fields)
	if err != nil {
		msg := fallbackErrorMessage
		if reply != nil && reply.Message != "" {
			msg = reply.Message
		}
		s.toaster.Notify(msg, notify.KindError)
		return err
	}

	msg := "Preferences updated."
	if reply.Message != "" {
		msg = reply.Message
	}
	s.toaster.Notify(msg, notify.KindSuccess)
	return nil
}

// UpdatePreferences posts the sparse field map to /update_preferences and
// decodes the reply. It implements persona.PreferenceWriter's shape for the
// quiz via the Writer adapter below.
func (s *Submitter) UpdatePreferences(ctx context.Context, fields map[string]string) (*serverReply, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal preference update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/update_preferences", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build preference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post preference update: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close preference response body", "error", closeErr)
		}
	}()

	var reply serverReply
	if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&reply); decodeErr != nil {
		reply = serverReply{}
	}

	if resp.StatusCode != http.StatusOK {
		return &reply, fmt.Errorf("preference update rejected: status %d", resp.StatusCode)
	}
	return &reply, nil
}

// Writer adapts the submitter to the quiz's PreferenceWriter interface,
// discarding the toast-facing reply.
type Writer struct {
	Submitter *Submitter
}

// UpdatePreferences implements persona.PreferenceWriter.
func (w Writer) UpdatePreferences(ctx context.Context, fields map[string]string) error {
	_, err := w.Submitter.UpdatePreferences(ctx, fields)
	return err
}

// GetPreferences fetches the current server-side preference state. Clients
// re-request state after a save instead of mutating their local snapshot.
func (s *Submitter) GetPreferences(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/get_preferences", nil)
	if err != nil {
		return nil, fmt.Errorf("build preferences request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close preferences response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get preferences: status %d", resp.StatusCode)
	}

	var prefs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&prefs); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return prefs, nil
}
