// Package config loads and validates the core's runtime configuration:
// system-wide defaults, the queue/worker-pool tuning knobs, and the LLM
// provider registry. Configuration is threaded explicitly through the
// orchestrator and its task handlers — nothing here is a package-level
// global.
package config

// Config is the umbrella configuration object returned by Initialize()
// and threaded through the orchestrator, agent runtime, and services.
type Config struct {
	configDir string

	Defaults            *Defaults
	Queue               *QueueConfig
	LLMProviderRegistry *LLMProviderRegistry
}

// Initialize is defined in loader.go

// ConfigStats contains statistics about loaded configuration, useful for
// a one-line startup log.
type ConfigStats struct {
	LLMProviders int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		LLMProviders: len(c.LLMProviderRegistry.GetAll()),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetLLMProvider retrieves an LLM provider configuration by name.
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}
