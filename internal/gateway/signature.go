package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

func sign(secret []byte, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret []byte, payload []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), want)
}

// SignPayment produces the checkout callback signature over "orderID|paymentID".
func SignPayment(keySecret, gatewayOrderID, paymentID string) string {
	return sign([]byte(keySecret), []byte(gatewayOrderID+"|"+paymentID))
}

func VerifyPaymentSignature(keySecret, gatewayOrderID, paymentID, signature string) bool {
	return verify([]byte(keySecret), []byte(gatewayOrderID+"|"+paymentID), signature)
}

func SignWebhook(webhookSecret string, body []byte) string {
	return sign([]byte(webhookSecret), body)
}

func VerifyWebhookSignature(webhookSecret string, body []byte, signature string) bool {
	return verify([]byte(webhookSecret), body, signature)
}

const (
	EventPaymentCaptured   = "payment.captured"
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentFailed     = "payment.failed"
)

type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity Payment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

func (e *WebhookEvent) Payment() Payment {
	return e.Payload.Payment.Entity
}

func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if evt.Event == "" {
		return nil, fmt.Errorf("decode webhook: missing event")
	}
	return &evt, nil
}
