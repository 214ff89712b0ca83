// Package mailer dispatches invitation emails through the external mail
// service. Delivery is fire-and-forget from the engine's perspective.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Mailer interface {
	SendPlaylistInvitation(ctx context.Context, toEmail, playlistName, inviterName, deepLink string) error
}

// HTTPMailer posts invitation requests to the mail service.
type HTTPMailer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPMailer(baseURL string) *HTTPMailer {
	return &HTTPMailer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (m *HTTPMailer) SendPlaylistInvitation(ctx context.Context, toEmail, playlistName, inviterName, deepLink string) error {
	body, err := json.Marshal(map[string]string{
		"template":     "playlist-invitation",
		"to":           toEmail,
		"playlistName": playlistName,
		"inviterName":  inviterName,
		"deepLink":     deepLink,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/internal/mail/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail service returned %d", resp.StatusCode)
	}
	return nil
}

// Noop drops mail on the floor; used when no mail service is configured.
type Noop struct{}

func (Noop) SendPlaylistInvitation(ctx context.Context, toEmail, playlistName, inviterName, deepLink string) error {
	return nil
}
