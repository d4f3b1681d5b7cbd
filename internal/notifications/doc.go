// Package notifications delivers batch events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when no topic is set. Each event kind
// can be switched off individually; batch code depends only on the Service
// interface.
package notifications
