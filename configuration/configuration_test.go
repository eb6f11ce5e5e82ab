package configuration

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configYaml = `
loglevel: debug
http:
  addr: :8080
redis:
  url: redis://cache.internal:6379/2
storage:
  prefix: "staging:"
thumbnails:
  disabled: true
`

func TestParse(t *testing.T) {
	config, err := Parse(strings.NewReader(configYaml))
	require.NoError(t, err)

	assert.Equal(t, Loglevel("debug"), config.Loglevel)
	assert.Equal(t, ":8080", config.HTTP.Addr)
	assert.Equal(t, "redis://cache.internal:6379/2", config.Redis.URL)
	assert.Equal(t, "staging:", config.Storage.Prefix)
	assert.True(t, config.Thumbnails.Disabled)
}

func TestParseDefaults(t *testing.T) {
	config, err := Parse(strings.NewReader("loglevel: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, Loglevel("warn"), config.Loglevel)
	assert.Equal(t, ":6060", config.HTTP.Addr)
	assert.Equal(t, "redis://localhost:6379/0", config.Redis.URL)
	assert.Empty(t, config.Storage.Prefix)
	assert.False(t, config.Thumbnails.Disabled)
}

func TestParseInvalidLoglevel(t *testing.T) {
	_, err := Parse(strings.NewReader("loglevel: derp\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid loglevel")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DECKSTORE_LOGLEVEL", "ERROR")
	t.Setenv("DECKSTORE_HTTP_ADDR", ":9999")
	t.Setenv("DECKSTORE_REDIS_URL", "redis://override:6379/1")
	t.Setenv("DECKSTORE_STORAGE_PREFIX", "env:")
	t.Setenv("DECKSTORE_THUMBNAILS_DISABLED", "true")

	config, err := Parse(strings.NewReader(configYaml))
	require.NoError(t, err)

	assert.Equal(t, Loglevel("error"), config.Loglevel)
	assert.Equal(t, ":9999", config.HTTP.Addr)
	assert.Equal(t, "redis://override:6379/1", config.Redis.URL)
	assert.Equal(t, "env:", config.Storage.Prefix)
	assert.True(t, config.Thumbnails.Disabled)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DECKSTORE_HTTP_ADDR", ":7070")

	config := FromEnv()
	assert.Equal(t, ":7070", config.HTTP.Addr)
	assert.Equal(t, "redis://localhost:6379/0", config.Redis.URL)
	assert.Equal(t, Loglevel("info"), config.Loglevel)
}

func TestThumbnailsDisabledBadBoolIgnored(t *testing.T) {
	t.Setenv("DECKSTORE_THUMBNAILS_DISABLED", "maybe")

	config := FromEnv()
	assert.False(t, config.Thumbnails.Disabled)
}
