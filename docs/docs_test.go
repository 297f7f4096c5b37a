package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestReadDoc_RendersRegisteredDocument(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var doc struct {
		Swagger     string                    `json:"swagger"`
		Host        string                    `json:"host"`
		Schemes     []string                  `json:"schemes"`
		Paths       map[string]map[string]any `json:"paths"`
		Definitions map[string]any            `json:"definitions"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, "2.0", doc.Swagger)
	assert.Equal(t, "localhost:8080", doc.Host)
	assert.Equal(t, []string{"http", "https"}, doc.Schemes)

	routes := map[string]string{
		"/events":       "post",
		"/events/bulk":  "post",
		"/classify":     "post",
		"/sessions/run": "post",
		"/channels":     "get",
		"/health":       "get",
	}
	for path, method := range routes {
		require.Contains(t, doc.Paths, path)
		assert.Contains(t, doc.Paths[path], method, path)
	}
	assert.Contains(t, doc.Definitions, "dto.PublishEventRequest")
	assert.Contains(t, doc.Definitions, "dto.ChannelReportResponse")
}
