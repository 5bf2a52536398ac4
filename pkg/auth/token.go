package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mchmarny/agape/pkg/net"
)

const (
	DeviceCodeURL = "https://github.com/login/device/code"
	AccessCodeURL = "https://github.com/login/oauth/access_token"

	deviceScopes = "" // no scopes requested (read-only public access)
	grantType    = "urn:ietf:params:oauth:grant-type:device_code"

	defaultInterval = 5 * time.Second
	slowDownBackoff = 5 * time.Second

	errPending  = "authorization_pending"
	errSlowDown = "slow_down"
	errExpired  = "expired_token"
	errDenied   = "access_denied"
)

var (
	ErrAccessDenied = errors.New("access denied by user")
	ErrCodeExpired  = errors.New("device code expired")
)

type DeviceCode struct {
	// The device verification code is 40 characters and used to verify the device.
	DeviceCode string `json:"device_code,omitempty"`
	// The user verification code is displayed on the device so the user
	// can enter the code in a browser. This code is 8 characters with a
	// hyphen in the middle.
	UserCode string `json:"user_code,omitempty"`
	// The verification URL where users need to enter the user_code
	VerificationURL string `json:"verification_uri,omitempty"`
	// The number of seconds before the device_code and user_code expire.
	ExpiresInSec int `json:"expires_in,omitempty"`
	// The minimum number of seconds between access token requests.
	Interval int `json:"interval,omitempty"`
}

type AccessTokenResponse struct {
	AccessToken      string `json:"access_token,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
	Scope            string `json:"scope,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// DeviceFlow runs the OAuth device authorization grant. Zero URL fields
// default to the GitHub endpoints.
type DeviceFlow struct {
	ClientID       string
	DeviceCodeURL  string
	AccessTokenURL string
	Client         *http.Client
	// Interval overrides the polling interval sent by the server.
	Interval time.Duration
}

// NewDeviceFlow returns a GitHub device flow for clientID.
func NewDeviceFlow(clientID string) *DeviceFlow {
	return &DeviceFlow{
		ClientID:       clientID,
		DeviceCodeURL:  DeviceCodeURL,
		AccessTokenURL: AccessCodeURL,
	}
}

func (f *DeviceFlow) client() (*http.Client, error) {
	if f.Client != nil {
		return f.Client, nil
	}
	c, err := net.GetHTTPClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get http client: %w", err)
	}
	return c, nil
}

// GetDeviceCode starts the flow.
func (f *DeviceFlow) GetDeviceCode(ctx context.Context) (*DeviceCode, error) {
	if f == nil || f.ClientID == "" {
		return nil, errors.New("clientID is required")
	}

	client, err := f.client()
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"client_id": {f.ClientID},
		"scope":     {deviceScopes},
	}

	var dc DeviceCode
	if err := net.PostFormJSON(ctx, client, orDefault(f.DeviceCodeURL, DeviceCodeURL), form, &dc); err != nil {
		return nil, fmt.Errorf("failed to get device code: %w", err)
	}
	if dc.DeviceCode == "" || dc.UserCode == "" {
		return nil, errors.New("device code response missing codes")
	}

	return &dc, nil
}

// PollToken waits for the user to authorize code and returns the token.
// It honors the server interval and slow_down responses and stops when the
// code expires or ctx is done.
func (f *DeviceFlow) PollToken(ctx context.Context, code *DeviceCode) (*AccessTokenResponse, error) {
	if f == nil || f.ClientID == "" {
		return nil, errors.New("clientID is required")
	}
	if code == nil {
		return nil, errors.New("device code is nil")
	}

	client, err := f.client()
	if err != nil {
		return nil, err
	}

	interval := time.Duration(code.Interval) * time.Second
	if f.Interval > 0 {
		interval = f.Interval
	}
	if interval <= 0 {
		interval = defaultInterval
	}

	var deadline <-chan time.Time
	if code.ExpiresInSec > 0 {
		t := time.NewTimer(time.Duration(code.ExpiresInSec) * time.Second)
		defer t.Stop()
		deadline = t.C
	}

	form := url.Values{
		"client_id":   {f.ClientID},
		"device_code": {code.DeviceCode},
		"grant_type":  {grantType},
	}

	for {
		var t AccessTokenResponse
		if err := net.PostFormJSON(ctx, client, orDefault(f.AccessTokenURL, AccessCodeURL), form, &t); err != nil {
			return nil, fmt.Errorf("failed to get token: %w", err)
		}

		switch t.Error {
		case "":
			if t.AccessToken == "" {
				return nil, errors.New("access token is empty")
			}
			return &t, nil
		case errPending:
		case errSlowDown:
			interval += slowDownBackoff
		case errExpired:
			return nil, ErrCodeExpired
		case errDenied:
			return nil, ErrAccessDenied
		default:
			return nil, fmt.Errorf("device flow error %s: %s", t.Error, t.ErrorDescription)
		}

		slog.Debug("waiting for device authorization", "status", t.Error, "interval", interval)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, ErrCodeExpired
		case <-time.After(interval):
		}
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
