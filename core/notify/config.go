package notify

// Config holds configuration for the outbound event publisher.
type Config struct {
	// URL is the AMQP broker URL. Empty disables publishing.
	URL string `mapstructure:"url" default:""`
	// Queue is the durable queue sync events are published to.
	Queue string `mapstructure:"queue" default:"pack-sync-events"`
}
