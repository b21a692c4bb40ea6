package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Agent.MaxSteps)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, int64(137), cfg.Chain.ChainID)
	assert.Equal(t, "data", cfg.Chat.StreamFormat)
	assert.False(t, cfg.Chat.ClassifyBadRequest)
}

func TestLoadBareEnvAliases(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WALLET_PRIVATE_KEY", "abc")
	t.Setenv("RPC_PROVIDER_URL", "https://rpc.example")
	t.Setenv("POLYMARKET_API_KEY", "k")
	t.Setenv("POLYMARKET_SECRET", "s")
	t.Setenv("POLYMARKET_PASSPHRASE", "p")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("POLYCHAT_AGENT_MAX_STEPS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Wallet.PrivateKey)
	assert.Equal(t, "https://rpc.example", cfg.Chain.RPCURL)
	assert.Equal(t, "k", cfg.Polymarket.ApiKey)
	assert.Equal(t, "s", cfg.Polymarket.ApiSecret)
	assert.Equal(t, "p", cfg.Polymarket.ApiPassphrase)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.Agent.MaxSteps)
}

func TestValidate(t *testing.T) {
	base := Config{
		Agent: AgentConfig{MaxSteps: 5},
		Chat:  ChatConfig{StreamFormat: "sse"},
		Chain: ChainConfig{ChainID: 137},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Agent.MaxSteps = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.Chat.StreamFormat = "ndjson"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Chain.ChainID = 0
	assert.Error(t, bad.Validate())
}
