package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("CHANALYTICS_TEST_STR", "")
	t.Setenv("CHANALYTICS_TEST_INT", "-4")
	t.Setenv("CHANALYTICS_TEST_DUR", "nonsense")
	t.Setenv("CHANALYTICS_TEST_BOOL", "maybe")

	assert.Equal(t, "def", Env("CHANALYTICS_TEST_STR", "def"))
	assert.Equal(t, 1000, EnvInt("CHANALYTICS_TEST_INT", 1000))
	assert.Equal(t, time.Minute, EnvDuration("CHANALYTICS_TEST_DUR", time.Minute))
	assert.True(t, EnvBool("CHANALYTICS_TEST_BOOL", true))
}

func TestEnvParsesValues(t *testing.T) {
	t.Setenv("CHANALYTICS_TEST_STR", "value")
	t.Setenv("CHANALYTICS_TEST_INT", "5000")
	t.Setenv("CHANALYTICS_TEST_DUR", "90s")
	t.Setenv("CHANALYTICS_TEST_BOOL", "TRUE")

	assert.Equal(t, "value", Env("CHANALYTICS_TEST_STR", "def"))
	assert.Equal(t, 5000, EnvInt("CHANALYTICS_TEST_INT", 1000))
	assert.Equal(t, 90*time.Second, EnvDuration("CHANALYTICS_TEST_DUR", time.Minute))
	assert.True(t, EnvBool("CHANALYTICS_TEST_BOOL", false))
}
