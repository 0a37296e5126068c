package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contractwatch/contract-fetcher/internal/config"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		SAM: config.SAMConfig{
			APIKey:         "test-key",
			OrgCodes:       []string{"070"},
			Limit:          200,
			TimeoutSeconds: 5,
		},
		Output: config.OutputConfig{Dir: t.TempDir()},
	}
}

func TestNewWithOptionalSinksDisabled(t *testing.T) {
	a, err := New(context.Background(), baseConfig(t))
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Logger())
	require.NotNil(t, a.Pipeline())
	require.Equal(t, []string{"070"}, a.Config().SAM.OrgCodes)
}

func TestNewFailsWithoutOrgCodes(t *testing.T) {
	cfg := baseConfig(t)
	cfg.SAM.OrgCodes = nil

	_, err := New(context.Background(), cfg)
	require.ErrorContains(t, err, "initializing fetcher")
}
