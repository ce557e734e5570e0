package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "@every 1h", cfg.AuditSchedule)
	require.True(t, cfg.BankInitialReserve.Equal(decimal.NewFromInt(50_000_000_000)))
}

func TestNewConfigRejectsBadReserve(t *testing.T) {
	t.Setenv("BANK_INITIAL_RESERVE", "not-a-number")
	_, err := NewConfig()
	require.Error(t, err)
}

func TestNewConfigRejectsBadSenderEmail(t *testing.T) {
	t.Setenv("SENDER_EMAIL", "not-an-email")
	_, err := NewConfig()
	require.Error(t, err)
}
