package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_DisabledSkipsConnection(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)
	assert.False(t, m.Enabled())
	assert.Nil(t, m.Snaps)
	assert.Nil(t, m.Pattern)
	assert.Nil(t, m.Attrib)
	assert.NoError(t, m.Close())
}

func TestNewManager_EnabledRequiresDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	_, err := NewManager(cfg)
	assert.Error(t, err)
}

func TestDefaultConfig_ConservativePoolSettings(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.False(t, cfg.Enabled)
}
