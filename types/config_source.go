package types

// ConfigSource provides a live, change-notified subscription configuration.
//
// Implementations can back the configuration with various stores:
//   - Static: fixed value updated programmatically (see the source package)
//   - File or registry watchers: reload on change
//
// The client calls Current during every resync and installs one change callback
// per registration.
type ConfigSource interface {
	// Current returns the current configuration value.
	//
	// Implementations should return a value the caller may retain; the client never
	// mutates the returned maps.
	Current() SubscriptionConfig

	// OnChange installs a callback invoked after every configuration update.
	//
	// Parameters:
	//   - fn: Callback receiving the new configuration value
	//
	// Returns:
	//   - func(): Unsubscribe function; safe to call more than once
	OnChange(fn func(SubscriptionConfig)) func()
}
