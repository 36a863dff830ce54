package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledWithoutConfig(t *testing.T) {
	t.Parallel()

	m, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, m.IsEnabled())

	// Sends succeed silently so environments without SMTP still boot.
	assert.NoError(t, m.Send("alice@x.com", "subject", "body"))
}

func TestNew_PartialConfigDisabled(t *testing.T) {
	t.Parallel()

	m, err := New(Config{Host: "smtp.example.com:465"})
	require.NoError(t, err)
	assert.False(t, m.IsEnabled())
}

func TestNew_InvalidFromAddress(t *testing.T) {
	t.Parallel()

	_, err := New(Config{
		Host: "smtp.example.com:465",
		User: "user",
		Pass: "pass",
		From: "not an address",
	})
	assert.Error(t, err)
}
