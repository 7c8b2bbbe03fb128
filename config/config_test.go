package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/esimov/facefind"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":5001", cfg.Addr)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, int64(16<<20), cfg.MaxUploadBytes)
	assert.Equal(t, facefind.DefaultMaxPixels, cfg.MaxPixels)
	assert.Empty(t, cfg.CascadeFile)
	assert.Equal(t, facefind.DefaultParams(), cfg.DetectionParams())
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ShouldLoadEnv(t *testing.T) {
	t.Setenv("FACED_ADDR", ":8080")
	t.Setenv("FACED_CASCADE", "/opt/cascade")
	t.Setenv("FACED_UPLOAD_DIR", "")
	t.Setenv("FACED_SCALE_FACTOR", "1.25")
	t.Setenv("FACED_MIN_NEIGHBORS", "3")
	t.Setenv("FACED_MIN_SIZE", "30")
	t.Setenv("FACED_MAX_SIZE", "300")
	t.Setenv("FACED_MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("FACED_RATE_LIMIT", "10")
	t.Setenv("FACED_RATE_WINDOW", "30s")
	t.Setenv("FACED_MAX_PIXELS", "1000000")

	cfg := Default()
	require.NoError(t, cfg.LoadEnv())

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "/opt/cascade", cfg.CascadeFile)
	assert.Equal(t, "", cfg.UploadDir)
	assert.Equal(t, 1.25, cfg.ScaleFactor)
	assert.Equal(t, 3, cfg.MinNeighbors)
	assert.Equal(t, 30, cfg.MinSize)
	assert.Equal(t, 300, cfg.MaxSize)
	assert.Equal(t, facefind.DefaultShiftFactor, cfg.ShiftFactor)
	assert.Equal(t, int64(1<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.RateWindow)
	assert.Equal(t, 1000000, cfg.MaxPixels)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ShouldRejectMalformedEnv(t *testing.T) {
	for key, value := range map[string]string{
		"FACED_MIN_NEIGHBORS":    "five",
		"FACED_SCALE_FACTOR":     "1,1",
		"FACED_MAX_UPLOAD_BYTES": "16MB",
		"FACED_RATE_WINDOW":      "soon",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			cfg := Default()
			assert.Error(t, cfg.LoadEnv())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(c *Config)
		target error
	}{
		{name: "zero base size", modify: func(c *Config) { c.BaseSize = 0 }, target: facefind.ErrInvalidParameters},
		{name: "scale factor", modify: func(c *Config) { c.ScaleFactor = 1 }, target: facefind.ErrInvalidParameters},
		{name: "min neighbors", modify: func(c *Config) { c.MinNeighbors = -1 }, target: facefind.ErrInvalidParameters},
		{name: "no address", modify: func(c *Config) { c.Addr = "" }},
		{name: "upload size", modify: func(c *Config) { c.MaxUploadBytes = 0 }},
		{name: "max pixels", modify: func(c *Config) { c.MaxPixels = -1 }},
		{name: "rate window", modify: func(c *Config) { c.RateLimit, c.RateWindow = 5, 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tc.target != nil {
				assert.True(t, errors.Is(err, tc.target), "got %v", err)
			}
		})
	}
}

func TestConfig_ShouldLoadBundledCascade(t *testing.T) {
	cfg := Default()
	c, err := cfg.LoadCascade()
	require.NoError(t, err)
	assert.Equal(t, 6, c.Depth)
	assert.Equal(t, cfg.BaseSize, c.BaseSize)

	cfg.CascadeFile = filepath.Join(t.TempDir(), "missing")
	_, err = cfg.LoadCascade()
	assert.Error(t, err)
}

func TestConfig_NewProcessorShouldApplyPixelCap(t *testing.T) {
	cfg := Default()
	cfg.MaxPixels = 100
	c, err := cfg.LoadCascade()
	require.NoError(t, err)
	d, err := facefind.NewDetector(c, cfg.DetectionParams())
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.NewProcessor(d).MaxPixels)
}
