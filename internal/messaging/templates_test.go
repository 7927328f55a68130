package messaging

import (
	"encoding/json"
	"testing"

	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateSendContent(t *testing.T) {
	tpl := &domain.Template{Name: "order_update", Language: "en_US"}

	var got struct {
		Name     string `json:"name"`
		Language struct {
			Code string `json:"code"`
		} `json:"language"`
	}
	require.NoError(t, json.Unmarshal(templateSendContent(tpl), &got))
	assert.Equal(t, "order_update", got.Name)
	assert.Equal(t, "en_US", got.Language.Code)
}
