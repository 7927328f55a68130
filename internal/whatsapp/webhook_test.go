package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)

	assert.True(t, VerifySignature("s3cret", body, sign("s3cret", body)))
	assert.False(t, VerifySignature("s3cret", body, sign("wrong", body)))
	assert.False(t, VerifySignature("s3cret", []byte("tampered"), sign("s3cret", body)))
	assert.False(t, VerifySignature("s3cret", body, "md5=abcdef"))
	assert.False(t, VerifySignature("s3cret", body, ""))
}

func TestWebhookPayload_ParsesStatusesAndMessages(t *testing.T) {
	raw := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "1234",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"metadata": {"display_phone_number": "15550001111", "phone_number_id": "phn_1"},
					"contacts": [{"wa_id": "15557772222", "profile": {"name": "Ada"}}],
					"messages": [{"id": "wamid.in1", "from": "15557772222", "timestamp": "1700000000", "type": "text", "text": {"body": "hi"}}],
					"statuses": [{"id": "wamid.out1", "recipient_id": "15557772222", "status": "delivered", "timestamp": "1700000001"}]
				}
			}]
		}]
	}`)

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.Len(t, payload.Entry, 1)
	require.Len(t, payload.Entry[0].Changes, 1)

	value := payload.Entry[0].Changes[0].Value
	assert.Equal(t, "phn_1", value.Metadata.PhoneNumberID)
	require.Len(t, value.Messages, 1)
	assert.Equal(t, "hi", value.Messages[0].Text.Body)
	require.Len(t, value.Statuses, 1)
	assert.Equal(t, "delivered", value.Statuses[0].Status)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsRateLimited(130429))
	assert.True(t, IsRateLimited(80007))
	assert.False(t, IsRateLimited(190))

	assert.True(t, IsAuthError(190))
	assert.False(t, IsAuthError(130429))

	assert.True(t, IsSuspension(131031))
	assert.False(t, IsSuspension(4))
}
