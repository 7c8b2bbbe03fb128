// Package config holds the settings of the face detection service.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/esimov/facefind"
	"github.com/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "FACED_"

// Config is the runtime configuration of faced.
type Config struct {
	Addr           string        // Listen address, eg ":5001"
	CascadeFile    string        // Path to a pigo cascade. Empty uses the bundled facefinder.
	BaseSize       int           // Smallest window side the cascade was trained for
	UploadDir      string        // Where uploads are kept. Empty disables saving.
	MaxUploadBytes int64         // Request bodies above this size are rejected with 413
	MaxPixels      int           // Images declaring a larger area are rejected with 413. 0 disables the check.
	ScaleFactor    float64       // Window growth between scan passes
	MinNeighbors   int           // Raw hits needed for a face to be reported
	MinSize        int           // Smallest window side, 0 for BaseSize
	MaxSize        int           // Largest window side, 0 for the image size
	ShiftFactor    float64       // Window step relative to its side
	RateLimit      int           // Requests per RateWindow and client IP. 0 disables limiting.
	RateWindow     time.Duration // Rate limiting window
}

// Default returns the configuration the service runs with when nothing is overridden.
func Default() Config {
	return Config{
		Addr:           ":5001",
		BaseSize:       facefind.DefaultBaseSize,
		UploadDir:      "uploads",
		MaxUploadBytes: 16 << 20,
		MaxPixels:      facefind.DefaultMaxPixels,
		ScaleFactor:    facefind.DefaultScaleFactor,
		MinNeighbors:   facefind.DefaultMinNeighbors,
		ShiftFactor:    facefind.DefaultShiftFactor,
		RateWindow:     time.Minute,
	}
}

// LoadEnv overrides c with the FACED_* environment variables that are set.
func (c *Config) LoadEnv() error {
	var err error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && err == nil {
			n, e := strconv.Atoi(v)
			if e != nil {
				err = errors.Wrapf(e, "invalid %v%v", EnvPrefix, key)
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && err == nil {
			f, e := strconv.ParseFloat(v, 64)
			if e != nil {
				err = errors.Wrapf(e, "invalid %v%v", EnvPrefix, key)
				return
			}
			*dst = f
		}
	}

	str("ADDR", &c.Addr)
	str("CASCADE", &c.CascadeFile)
	str("UPLOAD_DIR", &c.UploadDir)
	num("BASE_SIZE", &c.BaseSize)
	num("MIN_NEIGHBORS", &c.MinNeighbors)
	num("MIN_SIZE", &c.MinSize)
	num("MAX_SIZE", &c.MaxSize)
	num("RATE_LIMIT", &c.RateLimit)
	num("MAX_PIXELS", &c.MaxPixels)
	float("SCALE_FACTOR", &c.ScaleFactor)
	float("SHIFT_FACTOR", &c.ShiftFactor)

	if v, ok := os.LookupEnv(EnvPrefix + "MAX_UPLOAD_BYTES"); ok && err == nil {
		n, e := strconv.ParseInt(v, 10, 64)
		if e != nil {
			return errors.Wrapf(e, "invalid %vMAX_UPLOAD_BYTES", EnvPrefix)
		}
		c.MaxUploadBytes = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "RATE_WINDOW"); ok && err == nil {
		d, e := time.ParseDuration(v)
		if e != nil {
			return errors.Wrapf(e, "invalid %vRATE_WINDOW", EnvPrefix)
		}
		c.RateWindow = d
	}
	return err
}

// DetectionParams extracts the detector settings.
func (c *Config) DetectionParams() facefind.Params {
	return facefind.Params{
		ScaleFactor:  c.ScaleFactor,
		MinNeighbors: c.MinNeighbors,
		MinSize:      c.MinSize,
		MaxSize:      c.MaxSize,
		ShiftFactor:  c.ShiftFactor,
	}
}

// LoadCascade loads CascadeFile, or the bundled facefinder cascade when no
// file is configured.
func (c *Config) LoadCascade() (*facefind.Cascade, error) {
	if c.CascadeFile == "" {
		return facefind.LoadCascade(facefind.Facefinder, c.BaseSize)
	}
	return facefind.LoadCascadeFile(c.CascadeFile, c.BaseSize)
}

// NewProcessor wraps d in a processor honoring the pixel cap.
func (c *Config) NewProcessor(d *facefind.Detector) *facefind.Processor {
	p := facefind.NewProcessor(d)
	p.MaxPixels = c.MaxPixels
	return p
}

// Validate checks the configuration before the service starts.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("listen address is empty")
	}
	if c.BaseSize < 1 {
		return errors.Wrapf(facefind.ErrInvalidParameters, "base size must be positive, got %d", c.BaseSize)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.Errorf("max upload size must be positive, got %d", c.MaxUploadBytes)
	}
	if c.MaxPixels < 0 {
		return errors.Errorf("max pixels must not be negative, got %d", c.MaxPixels)
	}
	if c.RateLimit < 0 {
		return errors.Errorf("rate limit must not be negative, got %d", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateWindow <= 0 {
		return errors.Errorf("rate window must be positive, got %v", c.RateWindow)
	}
	p := c.DetectionParams()
	return p.Validate()
}
