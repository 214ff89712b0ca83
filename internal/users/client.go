// Package users is a thin client for the external account service. Account
// management itself lives outside this repository; the engine only needs to
// check that a user exists, resolve an email to an account, and fetch a
// display name for presence lists.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Account is the subset of the account record the engine cares about.
type Account struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

var ErrNotFound = errors.New("user not found")

// Directory resolves user identities against the account service.
type Directory interface {
	Exists(ctx context.Context, userID string) (bool, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	DisplayName(ctx context.Context, userID string) (string, error)
}

// HTTPDirectory talks to the user service over its internal HTTP surface.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 3 * time.Second},
	}
}

func (d *HTTPDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return false, err
	}
	u.Path = "/internal/users/" + url.PathEscape(userID) + "/exists"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("user service returned %d", resp.StatusCode)
	}
}

func (d *HTTPDirectory) FindByEmail(ctx context.Context, email string) (*Account, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path = "/internal/users/by-email"
	u.RawQuery = url.Values{"email": {email}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var acc Account
		if err := json.NewDecoder(resp.Body).Decode(&acc); err != nil {
			return nil, err
		}
		return &acc, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("user service returned %d", resp.StatusCode)
	}
}

func (d *HTTPDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return "", err
	}
	u.Path = "/internal/users/" + url.PathEscape(userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("user service returned %d", resp.StatusCode)
	}

	var acc Account
	if err := json.NewDecoder(resp.Body).Decode(&acc); err != nil {
		return "", err
	}
	return acc.DisplayName, nil
}

// Permissive is the fallback when no user service is configured: every user
// id is taken at face value and nothing resolves, so presence falls back to
// placeholder names and email invitations only dispatch mail.
type Permissive struct{}

func (Permissive) Exists(ctx context.Context, userID string) (bool, error) { return true, nil }

func (Permissive) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return nil, ErrNotFound
}

func (Permissive) DisplayName(ctx context.Context, userID string) (string, error) {
	return "", ErrNotFound
}

// StaticDirectory serves fixed accounts; used in tests.
type StaticDirectory struct {
	Accounts []Account
}

func (d *StaticDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	for _, acc := range d.Accounts {
		if acc.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (d *StaticDirectory) FindByEmail(ctx context.Context, email string) (*Account, error) {
	for _, acc := range d.Accounts {
		if acc.Email == email {
			a := acc
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (d *StaticDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	for _, acc := range d.Accounts {
		if acc.ID == userID {
			return acc.DisplayName, nil
		}
	}
	return "", ErrNotFound
}
