package utils

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("with nil values", func(t *testing.T) {
		config := NewConfig(nil)
		require.NotNil(t, config)
		assert.Len(t, config.Keys(), 0)
	})

	t.Run("with values", func(t *testing.T) {
		values := map[string]string{
			"key1": "value1",
			"key2": "value2",
		}
		config := NewConfig(values)

		assert.Equal(t, "value1", config.Get("key1"))
		assert.Equal(t, "value2", config.Get("key2"))

		// Verify it's a copy, not a reference
		values["key1"] = "modified"
		assert.NotEqual(t, "modified", config.Get("key1"))
	})
}

func TestNewConfigFromEnv(t *testing.T) {
	// Create a temporary .env file for testing
	envContent := "USSD_TEST_KEY1=test_value1\nUSSD_TEST_KEY2=test_value2\n"
	tmpFile, err := os.CreateTemp("", "test_env_*.env")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(envContent)
	require.NoError(t, err)
	tmpFile.Close()

	config := NewConfigFromEnv(tmpFile.Name())
	require.NotNil(t, config)

	assert.Equal(t, "test_value1", config.Get("USSD_TEST_KEY1"))
	assert.Equal(t, "test_value2", config.Get("USSD_TEST_KEY2"))
}

func TestConfigGetWithDefault(t *testing.T) {
	config := NewConfig(map[string]string{
		"existing": "value",
		"empty":    "",
	})

	t.Run("existing key", func(t *testing.T) {
		assert.Equal(t, "value", config.GetWithDefault("existing", "default"))
	})

	t.Run("non-existing key", func(t *testing.T) {
		assert.Equal(t, "default", config.GetWithDefault("missing", "default"))
	})

	t.Run("empty value key", func(t *testing.T) {
		assert.Equal(t, "default", config.GetWithDefault("empty", "default"))
	})
}

func TestConfigGetInt(t *testing.T) {
	config := NewConfig(map[string]string{
		"valid":   "42",
		"invalid": "not_a_number",
		"empty":   "",
	})

	assert.Equal(t, 42, config.GetInt("valid"))
	assert.Equal(t, 0, config.GetInt("invalid"))
	assert.Equal(t, 0, config.GetInt("empty"))
	assert.Equal(t, 7, config.GetIntWithDefault("missing", 7))
	assert.Equal(t, 42, config.GetIntWithDefault("valid", 7))
}

func TestConfigGetDurationWithDefault(t *testing.T) {
	config := NewConfig(map[string]string{
		"duration": "2m",
		"seconds":  "90",
		"invalid":  "soon",
	})

	assert.Equal(t, 2*time.Minute, config.GetDurationWithDefault("duration", time.Second))
	assert.Equal(t, 90*time.Second, config.GetDurationWithDefault("seconds", time.Second))
	assert.Equal(t, time.Second, config.GetDurationWithDefault("invalid", time.Second))
	assert.Equal(t, time.Second, config.GetDurationWithDefault("missing", time.Second))
}

func TestConfigSetAndHas(t *testing.T) {
	config := NewConfig(nil)

	assert.False(t, config.Has("key"))
	config.Set("key", "value")
	assert.True(t, config.Has("key"))
	assert.Equal(t, "value", config.Get("key"))
}
