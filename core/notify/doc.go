// Package notify emits sync progress events to an external message channel.
//
// Events are fire-and-forget: a publish failure is logged and swallowed,
// never surfaced to the reconciliation that produced it. When no broker URL
// is configured, NopPublisher stands in.
package notify
