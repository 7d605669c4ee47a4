package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateConfigPath(t *testing.T) {
	assert.Error(t, validateConfigPath(""))
	assert.Error(t, validateConfigPath("/etc/toozalink/config.ini"))
	assert.Error(t, validateConfigPath("../../outside.json"))
	assert.NoError(t, validateConfigPath("/etc/toozalink/config.yaml"))
	assert.NoError(t, validateConfigPath("configs/dev.json"))
}

func TestValidateJSONDepth(t *testing.T) {
	assert.NoError(t, validateJSONDepth([]byte(`{"a": {"b": ["{not a bracket"]}}`)))
	assert.Error(t, validateJSONDepth([]byte(strings.Repeat("[", 101)+strings.Repeat("]", 101))))
	assert.Error(t, validateJSONDepth([]byte(`{"a": 1`)))
	assert.Error(t, validateJSONDepth([]byte(`}`)))
}

func TestValidateEnvVar(t *testing.T) {
	assert.NoError(t, validateEnvVar("K", ""))
	assert.NoError(t, validateEnvVar("K", "value"))
	assert.Error(t, validateEnvVar("K", "bad\x00value"))
	assert.Error(t, validateEnvVar("K", strings.Repeat("x", 10001)))
}
