package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ConfigSource represents a source of configuration values
type ConfigSource interface {
	GetString(key string) (string, bool)
	GetInt(key string) (int, bool)
	GetFloat(key string) (float64, bool)
}

// EnvSource implements ConfigSource for environment variables
type EnvSource struct{}

func (e *EnvSource) GetString(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

func (e *EnvSource) GetInt(key string) (int, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	if i, err := cast.ToIntE(value); err == nil {
		return i, true
	}
	return 0, false
}

func (e *EnvSource) GetFloat(key string) (float64, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	if f, err := cast.ToFloat64E(value); err == nil {
		return f, true
	}
	return 0, false
}

// FlagSource implements ConfigSource for command-line flags
type FlagSource struct {
	values map[string]interface{}
}

func NewFlagSource() *FlagSource {
	return &FlagSource{values: make(map[string]interface{})}
}

func (f *FlagSource) Set(key string, value interface{}) {
	f.values[key] = value
}

// Has reports whether key was set, whatever its value.
func (f *FlagSource) Has(key string) bool {
	_, exists := f.values[key]
	return exists
}

func (f *FlagSource) GetString(key string) (string, bool) {
	if value, exists := f.values[key]; exists {
		if str, ok := value.(string); ok && str != "" {
			return str, true
		}
	}
	return "", false
}

func (f *FlagSource) GetInt(key string) (int, bool) {
	if value, exists := f.values[key]; exists {
		if i, ok := value.(int); ok {
			return i, true
		}
	}
	return 0, false
}

func (f *FlagSource) GetFloat(key string) (float64, bool) {
	if value, exists := f.values[key]; exists {
		if fl, ok := value.(float64); ok {
			return fl, true
		}
	}
	return 0, false
}

// ViperSource implements ConfigSource for a config file read by viper.
type ViperSource struct {
	v *viper.Viper
}

// NewViperSource reads path when it is set. With an empty path it looks for
// latency.{yaml,toml,json} in the working directory and in
// $HOME/.config/pushstream-latency; finding none is not an error.
func NewViperSource(path string) (*ViperSource, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		return &ViperSource{v: v}, nil
	}

	v.SetConfigName("latency")
	v.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "pushstream-latency"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return &ViperSource{v: v}, nil
}

// File returns the config file in use, empty when none was found.
func (s *ViperSource) File() string {
	return s.v.ConfigFileUsed()
}

func (s *ViperSource) lookup(key string) (interface{}, bool) {
	name := fileKey(key)
	if !s.v.IsSet(name) {
		return nil, false
	}
	return s.v.Get(name), true
}

func (s *ViperSource) GetString(key string) (string, bool) {
	raw, ok := s.lookup(key)
	if !ok {
		return "", false
	}
	str, err := cast.ToStringE(raw)
	if err != nil || str == "" {
		return "", false
	}
	return str, true
}

func (s *ViperSource) GetInt(key string) (int, bool) {
	raw, ok := s.lookup(key)
	if !ok {
		return 0, false
	}
	i, err := cast.ToIntE(raw)
	if err != nil {
		return 0, false
	}
	return i, true
}

func (s *ViperSource) GetFloat(key string) (float64, bool) {
	raw, ok := s.lookup(key)
	if !ok {
		return 0, false
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, false
	}
	return f, true
}

// fileKey maps LATENCY_PUBLISH_DELAY to publish_delay.
func fileKey(key string) string {
	return strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
}
