package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bookline/notifier/internal/channel"
	"github.com/bookline/notifier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enabledConfig(apiURL string) Config {
	return Config{
		Enabled:    true,
		APIURL:     apiURL,
		APIKey:     "key",
		FromNumber: "+34911000111",
	}
}

func TestNewSender_Defaults(t *testing.T) {
	sender := NewSender(Config{})

	assert.Equal(t, defaultTimeout, sender.config.Timeout)
	assert.NotNil(t, sender.httpClient)
}

func TestSender_Type(t *testing.T) {
	sender := NewSender(Config{})
	assert.Equal(t, domain.ChannelTypeSMS, sender.Type())
}

func TestSender_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var payload gatewayRequest
		err := json.NewDecoder(r.Body).Decode(&payload)
		require.NoError(t, err)
		assert.Equal(t, "+34600111222", payload.To)
		assert.Equal(t, "+34911000111", payload.From)
		assert.Equal(t, "Reminder: haircut at 10:00", payload.Text)

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewSender(enabledConfig(server.URL))
	err := sender.Send(context.Background(), domain.Message{
		Recipient: "+34600111222",
		Subject:   "dropped for sms",
		Body:      "Reminder: haircut at 10:00",
	})

	assert.NoError(t, err)
}

func TestSender_Send_Disabled(t *testing.T) {
	sender := NewSender(Config{Enabled: false})
	err := sender.Send(context.Background(), domain.Message{
		Recipient: "+34600111222",
		Body:      "hello",
	})

	require.Error(t, err)
	var cfgErr *channel.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.False(t, cfgErr.IsRetryable())
}

func TestSender_Send_EmptyRecipient(t *testing.T) {
	sender := NewSender(enabledConfig("http://unused"))
	err := sender.Send(context.Background(), domain.Message{Body: "hello"})

	require.Error(t, err)
	var valErr *channel.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.False(t, valErr.IsRetryable())
}

func TestSender_Send_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	sender := NewSender(enabledConfig(server.URL))
	err := sender.Send(context.Background(), domain.Message{
		Recipient: "+34600111222",
		Body:      "hello",
	})

	require.Error(t, err)
	var retryErr *channel.RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, http.StatusTooManyRequests, retryErr.Code)
	assert.True(t, retryErr.IsRetryable())
}

func TestSender_Send_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	sender := NewSender(enabledConfig(server.URL))
	err := sender.Send(context.Background(), domain.Message{
		Recipient: "+34600111222",
		Body:      "hello",
	})

	require.Error(t, err)
	var retryErr *channel.RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.Contains(t, retryErr.Message, "upstream unavailable")
}

func TestSender_Send_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	sender := NewSender(enabledConfig(server.URL))
	err := sender.Send(context.Background(), domain.Message{
		Recipient: "+34600111222",
		Body:      "hello",
	})

	require.Error(t, err)
	var permErr *channel.PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, http.StatusUnauthorized, permErr.Code)
	assert.False(t, permErr.IsRetryable())
}

func TestSender_Send_BadRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid number"))
	}))
	defer server.Close()

	sender := NewSender(enabledConfig(server.URL))
	err := sender.Send(context.Background(), domain.Message{
		Recipient: "+34600111222",
		Body:      "hello",
	})

	require.Error(t, err)
	var permErr *channel.PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.Contains(t, permErr.Message, "invalid number")
}

func TestSender_HealthCheck(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		status := NewSender(Config{}).HealthCheck()
		assert.False(t, status.Healthy)
	})

	t.Run("missing key", func(t *testing.T) {
		status := NewSender(Config{Enabled: true, APIURL: "http://gateway"}).HealthCheck()
		assert.False(t, status.Healthy)
	})

	t.Run("configured", func(t *testing.T) {
		status := NewSender(enabledConfig("http://gateway")).HealthCheck()
		assert.True(t, status.Healthy)
	})
}

func TestMaskRecipient(t *testing.T) {
	assert.Equal(t, "+346***22", maskRecipient("+34600111222"))
	assert.Equal(t, "+12345", maskRecipient("+12345"))
}
