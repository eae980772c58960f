package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaDescribesState(t *testing.T) {
	data, err := json.Marshal(Schema())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok, "schema should list properties")
	for _, field := range []string{"schema_version", "total_bytes", "read_count", "categories", "directories", "files"} {
		assert.Contains(t, props, field)
	}

	cats, ok := props["categories"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", cats["type"])
	assert.Contains(t, cats, "additionalProperties")
}
