package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "test_value")
	assert.Equal(t, "test_value", GetEnv("TEST_ENV_VAR", "default_value"))

	assert.Equal(t, "default_value", GetEnv("NON_EXISTENT_VAR", "default_value"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	assert.Equal(t, 42, GetEnvInt("TEST_INT", 7))

	t.Setenv("TEST_INT", "forty-two")
	assert.Equal(t, 7, GetEnvInt("TEST_INT", 7))

	t.Setenv("TEST_INT", "-3")
	assert.Equal(t, 7, GetEnvInt("TEST_INT", 7))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "250ms")
	assert.Equal(t, 250*time.Millisecond, GetEnvDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "3000")
	assert.Equal(t, 3*time.Second, GetEnvDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "soon")
	assert.Equal(t, time.Second, GetEnvDuration("TEST_DURATION", time.Second))

	assert.Equal(t, time.Minute, GetEnvDuration("UNSET_DURATION", time.Minute))
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, "eventsource", Topic)
	assert.Equal(t, 10, Partitions)
	assert.Equal(t, 10*1024, PaddingBytes)
}
