package reconcile

import (
	"time"

	"packsync/feature/packs/generator"
	"packsync/feature/packs/lock"
	"packsync/feature/possync"
)

// Config holds the reconciliation and sync engine tunables.
type Config struct {
	// Source identifies the scrape source; Prefix namespaces pack ids.
	Source string `mapstructure:"source" default:"tm"`
	Prefix string `mapstructure:"prefix" default:"tm"`

	// MinPackSize is the smallest pack the generator emits.
	MinPackSize int `mapstructure:"min_pack_size" default:"2"`
	// Strategy is maximal or exhaustive.
	Strategy string `mapstructure:"strategy" default:"maximal"`

	// MarkupType is percentage, flat, or empty for none. MarkupValue is
	// the percentage or flat amount applied to each pack total.
	MarkupType  string  `mapstructure:"markup_type" default:""`
	MarkupValue float64 `mapstructure:"markup_value" default:"0"`

	// BatchSize and BatchDelaySeconds pace the POS sync queue.
	BatchSize         int `mapstructure:"batch_size" default:"50"`
	BatchDelaySeconds int `mapstructure:"batch_delay_seconds" default:"1"`

	// MaxSyncAttempts is the per-pack retry budget.
	MaxSyncAttempts int `mapstructure:"max_sync_attempts" default:"5"`

	// LeaseStaleMinutes is the age past which a lease is swept.
	LeaseStaleMinutes int `mapstructure:"lease_stale_minutes" default:"30"`

	// OperationStaleMinutes is the age past which a started POS operation
	// is considered abandoned.
	OperationStaleMinutes int `mapstructure:"operation_stale_minutes" default:"60"`
}

// GeneratorConfig maps the sync config onto generator parameters.
func (c Config) GeneratorConfig() generator.Config {
	return generator.Config{
		Source:      c.Source,
		Prefix:      c.Prefix,
		MinPackSize: c.MinPackSize,
		Strategy:    generator.Strategy(c.Strategy),
		Markup: generator.Markup{
			Type:  generator.MarkupType(c.MarkupType),
			Value: c.MarkupValue,
		},
	}
}

// EngineOptions maps the sync config onto POS engine options.
func (c Config) EngineOptions() possync.Options {
	return possync.Options{
		BatchSize:         c.BatchSize,
		BatchDelay:        time.Duration(c.BatchDelaySeconds) * time.Second,
		MaxAttempts:       c.MaxSyncAttempts,
		OperationStaleAge: time.Duration(c.OperationStaleMinutes) * time.Minute,
	}
}

// LockConfig maps the sync config onto lock manager settings.
func (c Config) LockConfig() lock.Config {
	return lock.Config{
		StaleAge: time.Duration(c.LeaseStaleMinutes) * time.Minute,
	}
}
