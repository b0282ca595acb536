package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret-value")

	assert.Equal(t, "***", s.String())
	assert.Equal(t, "***", fmt.Sprintf("%s", s))
	assert.Equal(t, "***", fmt.Sprintf("%v", s))

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"***"`, string(data))
}

func TestSecretEmptyStaysEmpty(t *testing.T) {
	s := Secret("")

	assert.Equal(t, "", s.String())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `""`, string(data))
}

func TestSecretUnmarshalEnvRef(t *testing.T) {
	t.Setenv("TEST_SECRET_VALUE", "resolved-value")

	var s Secret
	err := json.Unmarshal([]byte(`{"$env": "TEST_SECRET_VALUE"}`), &s)
	require.NoError(t, err)
	assert.Equal(t, "resolved-value", string(s))
}

func TestSecretUnmarshalRejectsPlainString(t *testing.T) {
	var s Secret
	err := json.Unmarshal([]byte(`"inline-secret"`), &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$env")
}

func TestSecretUnmarshalMissingEnvVar(t *testing.T) {
	var s Secret
	err := json.Unmarshal([]byte(`{"$env": "SINONAME_TEST_UNSET_VAR"}`), &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SINONAME_TEST_UNSET_VAR")
}
