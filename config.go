package vizn

import (
	"fmt"
	"strconv"
	"strings"
)

// Default capability settings.
// These match the values the image tool has always been registered with.
const (
	// DefaultHandle is the plugin handle resolved when Config.Handle is empty.
	DefaultHandle = "dall-e"

	// DefaultOutputCount is the number of images requested per call.
	DefaultOutputCount = 1

	// DefaultOutputSize is the requested pixel dimensions, formatted WIDTHxHEIGHT.
	DefaultOutputSize = "256x256"
)

// Config holds the fixed options a capability is resolved with.
// It is applied once at construction and never mutated afterwards.
type Config struct {
	Handle      string // Plugin handle, defaults to "dall-e"
	OutputCount int    // Images per request, defaults to 1
	OutputSize  string // Pixel dimensions, defaults to "256x256"
}

// DefaultConfig returns the standard image tool configuration.
func DefaultConfig() Config {
	return Config{
		Handle:      DefaultHandle,
		OutputCount: DefaultOutputCount,
		OutputSize:  DefaultOutputSize,
	}
}

// withDefaults fills zero-valued fields.
func (c Config) withDefaults() Config {
	if c.Handle == "" {
		c.Handle = DefaultHandle
	}
	if c.OutputCount == 0 {
		c.OutputCount = DefaultOutputCount
	}
	if c.OutputSize == "" {
		c.OutputSize = DefaultOutputSize
	}
	return c
}

// Validate checks that the configuration can be sent to a provider.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Handle) == "" {
		return fmt.Errorf("%w: handle is required", ErrInvalidConfig)
	}
	if c.OutputCount < 1 {
		return fmt.Errorf("%w: output count must be at least 1, got %d", ErrInvalidConfig, c.OutputCount)
	}
	if _, _, err := c.Dimensions(); err != nil {
		return err
	}
	return nil
}

// Dimensions parses OutputSize into width and height.
func (c Config) Dimensions() (width, height int, err error) {
	w, h, ok := strings.Cut(c.OutputSize, "x")
	if !ok {
		return 0, 0, fmt.Errorf("%w: output size must be WIDTHxHEIGHT, got %q", ErrInvalidConfig, c.OutputSize)
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: output size must be WIDTHxHEIGHT, got %q", ErrInvalidConfig, c.OutputSize)
	}
	return width, height, nil
}

// PluginConfig renders the configuration in the form plugin hosts expect.
func (c Config) PluginConfig() map[string]any {
	return map[string]any{
		"n":    c.OutputCount,
		"size": c.OutputSize,
	}
}
