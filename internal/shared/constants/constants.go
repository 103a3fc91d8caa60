// Package constants holds values shared across layers.
package constants

const (
	// Environment names
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	// Context keys
	ContextKeyMerchantID = "merchant_id"
	ContextKeyRequestID  = "request_id"

	// HTTP headers
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"
)
