package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsRequireDatabaseURL(t *testing.T) {
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("REALTIME_MAILBOX_SIZE", "8")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, ":9100", cfg.Server.Addr())
	assert.Equal(t, 8, cfg.Realtime.MailboxSize)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Realtime.BroadcastByDefault)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "mongo")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(LoggerConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = NewLogger(LoggerConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
