package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noteSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "path": {"type": "string", "minLength": 1},
    "recursive": {"type": "boolean"}
  },
  "required": ["path"],
  "additionalProperties": false
}`

func TestValidator(t *testing.T) {
	v, err := NewValidator("note.json", []byte(noteSchema))
	require.NoError(t, err)

	assert.NoError(t, v.Validate(map[string]interface{}{"path": "a/b"}))
	assert.NoError(t, v.ValidateJSON([]byte(`{"path":"a","recursive":true}`)))

	err = v.ValidateJSON([]byte(`{"recursive":"yes"}`))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "schema validation failed"))
	assert.Contains(t, err.Error(), "/recursive")

	assert.Error(t, v.ValidateJSON([]byte(`{"path":"a","extra":1}`)))
	assert.Error(t, v.ValidateJSON(nil), "empty input validates as null")
}

func TestNewValidatorRejectsBadSchema(t *testing.T) {
	_, err := NewValidator("bad.json", []byte(`{"type": 12}`))
	assert.Error(t, err)
}
