package config

import "log"

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}

// MustGateway guards the payment provider credentials needed for online payments.
func MustGateway(g GatewayConfig) {
	MustNonEmpty(g.KeyID, "PAYMENT_KEY_ID")
	MustNonEmpty(g.KeySecret, "PAYMENT_KEY_SECRET")
	MustNonEmpty(g.WebhookSecret, "PAYMENT_WEBHOOK_SECRET")
}
