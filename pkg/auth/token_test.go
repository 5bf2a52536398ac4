package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFlow(t *testing.T, tokenReplies ...string) *DeviceFlow {
	t.Helper()
	var calls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /device", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "test-client", r.Form.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"device_code":"dc_test","user_code":"ABCD-1234","verification_uri":"https://github.com/login/device","expires_in":900,"interval":5}`))
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "dc_test", r.Form.Get("device_code"))
		assert.Equal(t, grantType, r.Form.Get("grant_type"))
		i := int(calls.Add(1)) - 1
		if i >= len(tokenReplies) {
			i = len(tokenReplies) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tokenReplies[i]))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &DeviceFlow{
		ClientID:       "test-client",
		DeviceCodeURL:  srv.URL + "/device",
		AccessTokenURL: srv.URL + "/token",
		Client:         srv.Client(),
		Interval:       10 * time.Millisecond,
	}
}

func TestDeviceFlow(t *testing.T) {
	f := newTestFlow(t,
		`{"error":"authorization_pending"}`,
		`{"error":"authorization_pending"}`,
		`{"access_token":"gho_test123","token_type":"bearer","scope":""}`,
	)
	ctx := context.Background()

	code, err := f.GetDeviceCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABCD-1234", code.UserCode)

	token, err := f.PollToken(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "gho_test123", token.AccessToken)
}

func TestDeviceFlow_Denied(t *testing.T) {
	f := newTestFlow(t, `{"error":"access_denied"}`)
	_, err := f.PollToken(context.Background(), &DeviceCode{DeviceCode: "dc_test"})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestDeviceFlow_Expired(t *testing.T) {
	f := newTestFlow(t, `{"error":"expired_token"}`)
	_, err := f.PollToken(context.Background(), &DeviceCode{DeviceCode: "dc_test"})
	assert.ErrorIs(t, err, ErrCodeExpired)
}

func TestDeviceFlow_UnknownError(t *testing.T) {
	f := newTestFlow(t, `{"error":"incorrect_client_credentials","error_description":"bad client"}`)
	_, err := f.PollToken(context.Background(), &DeviceCode{DeviceCode: "dc_test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad client")
}

func TestDeviceFlow_Canceled(t *testing.T) {
	f := newTestFlow(t, `{"error":"authorization_pending"}`)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.PollToken(ctx, &DeviceCode{DeviceCode: "dc_test"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetDeviceCode_EmptyClientID(t *testing.T) {
	_, err := NewDeviceFlow("").GetDeviceCode(context.Background())
	assert.Error(t, err)
}

func TestPollToken_EmptyClientID(t *testing.T) {
	_, err := NewDeviceFlow("").PollToken(context.Background(), &DeviceCode{})
	assert.Error(t, err)
}

func TestPollToken_NilCode(t *testing.T) {
	_, err := NewDeviceFlow("test-client").PollToken(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewDeviceFlow_Defaults(t *testing.T) {
	f := NewDeviceFlow("id")
	assert.Equal(t, DeviceCodeURL, f.DeviceCodeURL)
	assert.Equal(t, AccessCodeURL, f.AccessTokenURL)
}

func TestAccessTokenResponse_Unmarshal(t *testing.T) {
	raw := `{"access_token":"gho_test123","token_type":"bearer","scope":""}`
	var atr AccessTokenResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &atr))
	assert.Equal(t, "gho_test123", atr.AccessToken)
	assert.Equal(t, "bearer", atr.TokenType)
	assert.Empty(t, atr.Error)
}

func TestDeviceCode_Unmarshal(t *testing.T) {
	raw := `{"device_code":"dc_test","user_code":"ABCD-1234","verification_uri":"https://github.com/login/device","expires_in":900,"interval":5}`
	var dc DeviceCode
	require.NoError(t, json.Unmarshal([]byte(raw), &dc))
	assert.Equal(t, "dc_test", dc.DeviceCode)
	assert.Equal(t, "ABCD-1234", dc.UserCode)
	assert.Equal(t, "https://github.com/login/device", dc.VerificationURL)
	assert.Equal(t, 900, dc.ExpiresInSec)
	assert.Equal(t, 5, dc.Interval)
}
