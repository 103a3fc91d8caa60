package fulfillmentops

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"checkoutgo/internal/application/checkout/fulfillment"
	"checkoutgo/internal/shared/logger"
)

// RegisterBuiltins wires the fulfillment operations that ship with the
// server. Embedding applications register their own handlers on top.
func RegisterBuiltins(reg *fulfillment.Registry, log logger.Interface) {
	client := &http.Client{Timeout: 30 * time.Second}

	reg.MustRegister("merchant_webhook", NewMerchantWebhookOp(client, log))
	reg.MustRegister("log_only", NewLogOnlyOp(log))
}

// NewMerchantWebhookOp posts the fulfillment args as JSON to the merchant
// URL in args["url"]. When args["secret"] is set, the body is signed with
// HMAC-SHA256 into X-Checkout-Signature so the merchant can authenticate
// the delivery; the secret itself is stripped from the payload. A non-2xx
// response is an error so the retry sweep picks the checkout up again.
func NewMerchantWebhookOp(client *http.Client, log logger.Interface) fulfillment.Handler {
	return func(ctx context.Context, args map[string]interface{}) error {
		url, _ := args["url"].(string)
		if url == "" {
			return fmt.Errorf("merchant_webhook requires a url argument")
		}

		secret, _ := args["secret"].(string)
		body := args
		if secret != "" {
			body = make(map[string]interface{}, len(args))
			for k, v := range args {
				if k != "secret" {
					body[k] = v
				}
			}
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode fulfillment payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build fulfillment request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			mac := hmac.New(sha256.New, []byte(secret))
			mac.Write(payload)
			req.Header.Set("X-Checkout-Signature", hex.EncodeToString(mac.Sum(nil)))
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("fulfillment delivery failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("fulfillment endpoint returned status %d", resp.StatusCode)
		}

		log.Infow("fulfillment delivered", "url", url, "status", resp.StatusCode)
		return nil
	}
}

// NewLogOnlyOp records the fulfillment without side effects. Useful for
// checkouts whose delivery happens out of band.
func NewLogOnlyOp(log logger.Interface) fulfillment.Handler {
	return func(ctx context.Context, args map[string]interface{}) error {
		log.Infow("fulfillment recorded", "args", args)
		return nil
	}
}
