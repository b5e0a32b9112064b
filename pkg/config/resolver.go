package config

import "time"

// ConfigResolver resolves configuration values from multiple sources with precedence.
// Sources are consulted in order; the first one holding a key wins.
type ConfigResolver struct {
	sources []ConfigSource
}

func NewConfigResolver(sources ...ConfigSource) *ConfigResolver {
	return &ConfigResolver{sources: sources}
}

// ResolveString resolves string value from sources in order of precedence
func (r *ConfigResolver) ResolveString(key, defaultValue string) string {
	for _, source := range r.sources {
		if value, found := source.GetString(key); found {
			return value
		}
	}
	return defaultValue
}

// ResolveInt resolves int value from sources in order of precedence
func (r *ConfigResolver) ResolveInt(key string, defaultValue int) int {
	for _, source := range r.sources {
		if value, found := source.GetInt(key); found {
			return value
		}
	}
	return defaultValue
}

// ResolveFloat resolves float value from sources in order of precedence
func (r *ConfigResolver) ResolveFloat(key string, defaultValue float64) float64 {
	for _, source := range r.sources {
		if value, found := source.GetFloat(key); found {
			return value
		}
	}
	return defaultValue
}

// ResolveSeconds resolves a value given in (possibly fractional) seconds.
func (r *ConfigResolver) ResolveSeconds(key string, defaultSeconds float64) time.Duration {
	return seconds(r.ResolveFloat(key, defaultSeconds))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
