package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"
)

// toneFormat is the layout of generated tones.
var toneFormat = Format{AudioFormat: 1, Channels: 1, SampleRate: 22050, BitsPerSample: 16}

type note struct {
	freq float64 // Hz, 0 is a rest
	dur  time.Duration
}

// builtinTones are short synthesized sounds, one per entry in ToneNames.
var builtinTones = map[string][]note{
	"default": {{880, 180 * time.Millisecond}},
	"chime":   {{1318.5, 120 * time.Millisecond}, {1046.5, 220 * time.Millisecond}},
	"bell":    {{1568, 400 * time.Millisecond}},
	"alert":   {{988, 100 * time.Millisecond}, {0, 60 * time.Millisecond}, {988, 100 * time.Millisecond}, {0, 60 * time.Millisecond}, {988, 100 * time.Millisecond}},
	"success": {{659.3, 100 * time.Millisecond}, {784, 100 * time.Millisecond}, {1046.5, 180 * time.Millisecond}},
	"warning": {{440, 200 * time.Millisecond}, {349.2, 260 * time.Millisecond}},
}

// WriteDefaultTones writes a WAV file for every built-in tone missing from dir.
// Existing files are left alone so user-supplied tones win.
func WriteDefaultTones(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create tones directory: %w", err)
	}
	for _, name := range ToneNames {
		path := filepath.Join(dir, name+".wav")
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to check tone %s: %w", name, err)
		}
		data := EncodeWAV(toneFormat, synthesize(builtinTones[name], toneFormat))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write tone %s: %w", name, err)
		}
	}
	return nil
}

// synthesize renders notes as 16-bit mono sine waves with a short linear
// attack and release so notes do not click.
func synthesize(notes []note, f Format) []byte {
	rate := float64(f.SampleRate)
	ramp := int(rate * 0.005)

	var pcm []byte
	for _, n := range notes {
		count := int(n.dur.Seconds() * rate)
		for i := 0; i < count; i++ {
			var v float64
			if n.freq > 0 {
				env := 1.0
				if i < ramp {
					env = float64(i) / float64(ramp)
				} else if count-i < ramp {
					env = float64(count-i) / float64(ramp)
				}
				v = 0.5 * env * math.Sin(2*math.Pi*n.freq*float64(i)/rate)
			}
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(v*math.MaxInt16)))
		}
	}
	return pcm
}
