// Package config provides configuration management for the pack sync service.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP status surface settings (port, API key)
//   - Database: MySQL connection details
//   - Storage: S3/MinIO credentials and bucket settings for snapshot archiving
//   - Log: Logging level and format
//   - Notify: AMQP event publisher settings
//   - POS: external point-of-sale API settings
//   - Sync: reconciliation engine tunables (batch size, retries, lease age)
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.POS.BaseURL)
package config
