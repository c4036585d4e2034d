// Package audio loads alert tones once and plays them on demand.
package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Engine is the platform audio backend.
type Engine interface {
	Available() bool
	Decode(ctx context.Context, name, source string) (*Buffer, error)
	Play(ctx context.Context, buf *Buffer, gain float64) error
	Close() error
}

// Players probed in order when no player is configured.
var defaultPlayers = []string{"paplay", "afplay", "aplay"}

// playbackGrace is added to a tone's length when Close waits for its player.
const playbackGrace = 2 * time.Second

// CommandEngine plays decoded WAV buffers through an external player.
type CommandEngine struct {
	player  string
	path    string
	tempDir string
	logger  zerolog.Logger

	mu      sync.Mutex
	files   map[string]string       // tone name -> temp file handed to the player
	procs   map[*exec.Cmd]time.Time // running player -> expected end
	playing sync.WaitGroup
	closed  bool
	grace   time.Duration

	lookPath func(string) (string, error)
	command  func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewCommandEngine creates an engine around player. An empty player picks
// the first of paplay, afplay, aplay found on PATH.
func NewCommandEngine(player string, logger zerolog.Logger) *CommandEngine {
	e := &CommandEngine{
		player:   player,
		logger:   logger.With().Str("component", "audio").Logger(),
		files:    make(map[string]string),
		procs:    make(map[*exec.Cmd]time.Time),
		grace:    playbackGrace,
		lookPath: exec.LookPath,
		command:  exec.CommandContext,
	}
	e.resolve()
	return e
}

func (e *CommandEngine) resolve() {
	candidates := defaultPlayers
	if e.player != "" {
		candidates = []string{e.player}
	}
	for _, c := range candidates {
		if p, err := e.lookPath(c); err == nil {
			e.player = filepath.Base(c)
			e.path = p
			return
		}
	}
}

// Available reports whether a player binary was found.
func (e *CommandEngine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.path != "" && !e.closed
}

// Decode reads and validates a WAV file.
func (e *CommandEngine) Decode(ctx context.Context, name, source string) (*Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read tone %s: %w", name, err)
	}
	format, pcm, err := DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tone %s: %w", name, err)
	}
	return &Buffer{Name: name, Source: source, Format: format, Data: data, PCM: pcm}, nil
}

// Play starts the player and returns without waiting for playback to end.
func (e *CommandEngine) Play(ctx context.Context, buf *Buffer, gain float64) error {
	if buf == nil {
		return fmt.Errorf("nil buffer")
	}
	if gain <= 0 {
		return nil
	}

	file, err := e.fileFor(buf)
	if err != nil {
		return err
	}

	// Playback outlives the request that triggered it.
	cmd := e.command(context.WithoutCancel(ctx), e.path, e.args(file, gain)...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	cmd.WaitDelay = time.Second

	// Started players are registered before Close can begin waiting.
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("audio engine closed")
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", e.player, err)
	}
	e.procs[cmd] = time.Now().Add(buf.Duration() + e.grace)
	e.playing.Add(1)

	go func() {
		defer e.playing.Done()
		if err := cmd.Wait(); err != nil {
			e.logger.Debug().Err(err).Str("tone", buf.Name).Msg("Player exited with error")
		}
		e.mu.Lock()
		delete(e.procs, cmd)
		e.mu.Unlock()
	}()
	return nil
}

func (e *CommandEngine) args(file string, gain float64) []string {
	switch e.player {
	case "paplay":
		// paplay volume is linear 0..65536
		return []string{"--volume=" + strconv.Itoa(int(gain*65536)), file}
	case "afplay":
		return []string{"-v", strconv.FormatFloat(gain, 'f', 2, 64), file}
	default:
		// aplay and unknown players have no volume control
		return []string{"-q", file}
	}
}

// fileFor returns a file path holding buf. Sources on disk are used directly.
func (e *CommandEngine) fileFor(buf *Buffer) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return "", fmt.Errorf("audio engine closed")
	}
	if buf.Source != "" {
		if _, err := os.Stat(buf.Source); err == nil {
			return buf.Source, nil
		}
	}
	if f, ok := e.files[buf.Name]; ok {
		return f, nil
	}

	if e.tempDir == "" {
		dir, err := os.MkdirTemp("", "alertd-tones-")
		if err != nil {
			return "", fmt.Errorf("failed to create tone directory: %w", err)
		}
		e.tempDir = dir
	}
	f := filepath.Join(e.tempDir, buf.Name+".wav")
	if err := os.WriteFile(f, buf.Data, 0600); err != nil {
		return "", fmt.Errorf("failed to write tone %s: %w", buf.Name, err)
	}
	e.files[buf.Name] = f
	return f, nil
}

// Close lets running players finish, then removes temporary files. A player
// still running past its tone length plus a grace period is killed.
func (e *CommandEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	var until time.Time
	for _, end := range e.procs {
		if end.After(until) {
			until = end
		}
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.playing.Wait()
		close(done)
	}()

	timer := time.NewTimer(time.Until(until))
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		e.mu.Lock()
		for cmd := range e.procs {
			e.logger.Warn().Str("player", e.player).Msg("Player overran its tone, stopping it")
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		}
		e.mu.Unlock()
		<-done
	}

	if e.tempDir != "" {
		if err := os.RemoveAll(e.tempDir); err != nil {
			return fmt.Errorf("failed to remove tone directory: %w", err)
		}
	}
	return nil
}

// BellEngine rings the terminal bell. Every tone sounds the same.
type BellEngine struct {
	mu  sync.Mutex
	out io.Writer
}

// NewBellEngine creates a bell engine writing to out, os.Stderr when nil.
func NewBellEngine(out io.Writer) *BellEngine {
	if out == nil {
		out = os.Stderr
	}
	return &BellEngine{out: out}
}

// Available reports whether the engine is still open.
func (b *BellEngine) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.out != nil
}

// Decode accepts any source; a missing file still rings the bell.
func (b *BellEngine) Decode(ctx context.Context, name, source string) (*Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Buffer{Name: name, Source: source}, nil
}

// Play writes a BEL character. Zero gain is silent.
func (b *BellEngine) Play(_ context.Context, buf *Buffer, gain float64) error {
	if gain <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.out == nil {
		return fmt.Errorf("audio engine closed")
	}
	if _, err := io.WriteString(b.out, "\a"); err != nil {
		return fmt.Errorf("failed to ring bell: %w", err)
	}
	return nil
}

// Close detaches the writer.
func (b *BellEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.out = nil
	return nil
}

// NewEngine builds the engine named in configuration. "none" returns nil.
func NewEngine(kind, player string, logger zerolog.Logger) (Engine, error) {
	switch kind {
	case "command":
		return NewCommandEngine(player, logger), nil
	case "bell":
		return NewBellEngine(nil), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown audio engine: %s", kind)
	}
}
