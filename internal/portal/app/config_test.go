package app

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigInviteExpiry(t *testing.T) {
	fallback, err := time.Parse(time.RFC3339, defaultInviteHorizon)
	require.NoError(t, err)

	t.Run("unset uses the default horizon", func(t *testing.T) {
		t.Setenv("PORTAL_INVITE_EXPIRY", "")

		cfg := LoadConfig()
		require.True(t, cfg.InviteExpiry.Equal(fallback))
	})

	t.Run("valid override is honoured", func(t *testing.T) {
		t.Setenv("PORTAL_INVITE_EXPIRY", "2027-01-15T00:00:00Z")

		cfg := LoadConfig()
		want, err := time.Parse(time.RFC3339, "2027-01-15T00:00:00Z")
		require.NoError(t, err)
		require.True(t, cfg.InviteExpiry.Equal(want))
	})

	t.Run("malformed override falls back and warns", func(t *testing.T) {
		t.Setenv("PORTAL_INVITE_EXPIRY", "next tuesday")

		var buf bytes.Buffer
		prev := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
		t.Cleanup(func() { slog.SetDefault(prev) })

		cfg := LoadConfig()
		require.True(t, cfg.InviteExpiry.Equal(fallback))
		require.Contains(t, buf.String(), "invalid PORTAL_INVITE_EXPIRY")
	})
}
