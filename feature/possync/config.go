package possync

// Config holds configuration for the external POS API.
type Config struct {
	// BaseURL is the POS API root, e.g. https://pos.example.com/api/v2.
	BaseURL string `mapstructure:"base_url" default:""`
	// Token is the bearer token for API calls.
	Token string `mapstructure:"token" default:""`
	// TimeoutSeconds bounds every outbound API call.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// Currency is the listing currency code.
	Currency string `mapstructure:"currency" default:"USD"`
	// DeliveryType is the listing delivery method.
	DeliveryType string `mapstructure:"delivery_type" default:"eticket"`
}
