package server

// Config holds configuration for the HTTP status surface.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	// Empty leaves the status endpoints unprotected.
	ApiKey string `mapstructure:"api_key" default:""`
}
