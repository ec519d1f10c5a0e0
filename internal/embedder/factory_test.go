package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvOpenAIAPIKey, "")
	t.Setenv(EnvOllamaHost, "")
}

func TestNewFromEnv_ExplicitProvider(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv(EnvProvider, "static")

	provider, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderStatic, provider.Name())
}

func TestNewFromEnv_ExplicitOpenAI(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv(EnvProvider, "openai")
	t.Setenv(EnvOpenAIAPIKey, "sk-test")

	provider, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, provider.Name())
}

func TestNewFromEnv_UnknownProvider(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv(EnvProvider, "bogus")

	_, err := NewFromEnv()
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestNewFromEnv_AutoDetectOpenAI(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv(EnvOpenAIAPIKey, "sk-test")

	provider, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, provider.Name())
}

func TestNewFromEnv_AutoDetectOllama(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv(EnvOllamaHost, "http://localhost:11434")

	provider, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, provider.Name())
}

func TestNewFromEnv_FallbackStatic(t *testing.T) {
	clearProviderEnv(t)

	provider, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderStatic, provider.Name())
}

func TestNew_ExplicitConfig(t *testing.T) {
	provider, err := New(Config{Provider: "static", CacheSize: 100})
	require.NoError(t, err)
	assert.Equal(t, ProviderStatic, provider.Name())

	_, err = New(Config{Provider: "nope"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestDetectProvider(t *testing.T) {
	clearProviderEnv(t)
	assert.Equal(t, ProviderStatic, DetectProvider())

	t.Setenv(EnvOllamaHost, "http://localhost:11434")
	assert.Equal(t, ProviderOllama, DetectProvider())

	t.Setenv(EnvOpenAIAPIKey, "sk-test")
	assert.Equal(t, ProviderOpenAI, DetectProvider())

	t.Setenv(EnvProvider, "STATIC")
	assert.Equal(t, ProviderStatic, DetectProvider())
}
