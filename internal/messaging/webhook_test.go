package messaging

import (
	"encoding/json"
	"testing"

	"github.com/hyrelay/hyrelay/internal/domain"
	"github.com/hyrelay/hyrelay/internal/whatsapp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapProviderStatus(t *testing.T) {
	cases := map[string]struct {
		want domain.MessageStatus
		ok   bool
	}{
		"sent":      {domain.StatusSent, true},
		"delivered": {domain.StatusDelivered, true},
		"read":      {domain.StatusRead, true},
		"failed":    {domain.StatusFailed, true},
		"deleted":   {"", false},
		"":          {"", false},
	}
	for in, tc := range cases {
		got, ok := mapProviderStatus(in)
		assert.Equal(t, tc.ok, ok, "status %q", in)
		assert.Equal(t, tc.want, got, "status %q", in)
	}
}

func TestInboundContent(t *testing.T) {
	body := "hello there"
	in := whatsapp.InboundMessage{
		ID:   "wamid.1",
		Type: "text",
		Text: &struct {
			Body string `json:"body"`
		}{Body: body},
	}
	msgType, content := inboundContent(in)
	assert.Equal(t, domain.MessageText, msgType)
	assert.JSONEq(t, `{"body":"hello there"}`, string(content))

	in = whatsapp.InboundMessage{
		ID:    "wamid.2",
		Type:  "image",
		Image: &whatsapp.MediaRef{ID: "media-1", MimeType: "image/jpeg", Caption: "pic"},
	}
	msgType, content = inboundContent(in)
	assert.Equal(t, domain.MessageMedia, msgType)
	var ref whatsapp.MediaRef
	require.NoError(t, json.Unmarshal(content, &ref))
	assert.Equal(t, "media-1", ref.ID)

	in = whatsapp.InboundMessage{ID: "wamid.3", Type: "location"}
	msgType, content = inboundContent(in)
	assert.Equal(t, domain.MessageType("location"), msgType)
	assert.JSONEq(t, `{"type":"location"}`, string(content))
}
