package llmprovider

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_RejectsUnknownBackend(t *testing.T) {
	_, err := New(Backend("cohere"), "")
	require.Error(t, err)
}

func TestNew_MissingCredentialOpenAI(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(BackendOpenAI, "")
	require.Error(t, err)
}

func TestNew_MissingCredentialAnthropic(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := New(BackendAnthropic, "")
	require.Error(t, err)
}

func TestNew_OpenAISucceedsWithCredential(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	llm, err := New(BackendOpenAI, "gpt-4o-mini")
	require.NoError(t, err)
	require.Equal(t, "openai", llm.Backend())
}

func TestNew_AnthropicSucceedsWithCredential(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	llm, err := New(BackendAnthropic, "claude-sonnet-4-5")
	require.NoError(t, err)
	require.Equal(t, "anthropic", llm.Backend())
}
