package mempool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfig_ValidateRejectsEmptyBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = ""
	require.ErrorIs(t, cfg.Validate(), errEmptyBaseURL)
}

func TestConfig_ValidateRejectsNonPositiveRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 0
	require.ErrorIs(t, cfg.Validate(), errInvalidRateLimit)
}
