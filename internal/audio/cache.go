package audio

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"alert-delivery/internal/models"
)

// ToneNames is the fixed tone set.
var ToneNames = []string{"default", "chime", "bell", "alert", "success", "warning"}

// DefaultSources maps every tone in ToneNames to <dir>/<name>.wav.
func DefaultSources(dir string) map[string]string {
	out := make(map[string]string, len(ToneNames))
	for _, name := range ToneNames {
		out[name] = filepath.Join(dir, name+".wav")
	}
	return out
}

// Cache owns one Engine and the tones decoded with it.
// Buffers are decoded once in Initialize and never change afterwards.
type Cache struct {
	engine  Engine
	sources map[string]string
	logger  zerolog.Logger

	buffers atomic.Pointer[map[string]*Buffer]
	closed  atomic.Bool
	once    sync.Once
	stop    sync.Once
}

// NewCache creates a cache. A nil engine makes every Play a no-op.
func NewCache(engine Engine, sources map[string]string, logger zerolog.Logger) *Cache {
	return &Cache{
		engine:  engine,
		sources: sources,
		logger:  logger.With().Str("component", "audio").Logger(),
	}
}

// Initialize decodes every configured tone. Failures are logged and the
// tone is skipped; it never fails as a whole. Only the first call has effect.
func (c *Cache) Initialize(ctx context.Context) {
	c.once.Do(func() {
		loaded := make(map[string]*Buffer, len(c.sources))
		defer func() { c.buffers.Store(&loaded) }()

		if c.engine == nil || !c.engine.Available() {
			c.logger.Warn().Msg("Audio engine unavailable, sounds disabled")
			return
		}

		for name, source := range c.sources {
			buf, err := c.engine.Decode(ctx, name, source)
			if err != nil {
				c.logger.Warn().Err(err).Str("tone", name).Msg("Failed to load tone")
				continue
			}
			loaded[name] = buf
		}
		c.logger.Info().Int("tones", len(loaded)).Int("configured", len(c.sources)).Msg("Audio initialized")
	})
}

// Tones lists the loaded tone names in sorted order.
func (c *Cache) Tones() []string {
	m := c.buffers.Load()
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(*m))
	for name := range *m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Play plays a cached tone at volume, clamped to [0, 1]. An unavailable
// engine or an unknown tone is logged and treated as success; only an error
// from the engine's play call is returned.
func (c *Cache) Play(ctx context.Context, tone string, volume float64) error {
	if c.closed.Load() || c.engine == nil || !c.engine.Available() {
		c.logger.Warn().Str("tone", tone).Msg("Audio unavailable, skipping sound")
		return nil
	}
	m := c.buffers.Load()
	if m == nil {
		c.logger.Warn().Str("tone", tone).Msg("Audio not initialized, skipping sound")
		return nil
	}
	buf, ok := (*m)[tone]
	if !ok {
		c.logger.Warn().Str("tone", tone).Msg("Tone not cached, skipping sound")
		return nil
	}
	return c.engine.Play(ctx, buf, models.ClampVolume(volume))
}

// Shutdown releases the engine. Safe to call more than once.
func (c *Cache) Shutdown() error {
	var err error
	c.stop.Do(func() {
		c.closed.Store(true)
		if c.engine != nil {
			err = c.engine.Close()
		}
	})
	return err
}
