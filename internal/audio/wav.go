package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Format describes PCM sample layout.
type Format struct {
	AudioFormat   uint16 // 1 = PCM
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// BytesPerSecond returns the data rate for this format.
func (f Format) BytesPerSecond() int {
	return int(f.SampleRate) * int(f.Channels) * int(f.BitsPerSample) / 8
}

// Buffer is a decoded tone held in memory.
type Buffer struct {
	Name   string
	Source string
	Format Format
	Data   []byte // raw file bytes, handed to the player as-is
	PCM    []byte // sample data section
}

// Duration returns the playback length of the sample data.
func (b *Buffer) Duration() time.Duration {
	bps := b.Format.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(len(b.PCM)) * time.Second / time.Duration(bps)
}

// DecodeWAV parses a RIFF/WAVE file and returns its format and sample data.
func DecodeWAV(data []byte) (Format, []byte, error) {
	r := bytes.NewReader(data)

	var riff struct {
		ID   [4]byte
		Size uint32
		Wave [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return Format{}, nil, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff.ID[:]) != "RIFF" || string(riff.Wave[:]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("not a WAVE file")
	}

	var (
		format    Format
		gotFormat bool
	)
	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return Format{}, nil, fmt.Errorf("missing data chunk")
			}
			return Format{}, nil, fmt.Errorf("failed to read chunk header: %w", err)
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			if chunk.Size < 16 {
				return Format{}, nil, fmt.Errorf("fmt chunk too short: %d bytes", chunk.Size)
			}
			var raw struct {
				AudioFormat   uint16
				Channels      uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
				return Format{}, nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			format = Format{
				AudioFormat:   raw.AudioFormat,
				Channels:      raw.Channels,
				SampleRate:    raw.SampleRate,
				BitsPerSample: raw.BitsPerSample,
			}
			if err := skip(r, int64(chunk.Size)-16+int64(chunk.Size%2)); err != nil {
				return Format{}, nil, err
			}
			gotFormat = true

		case "data":
			if !gotFormat {
				return Format{}, nil, fmt.Errorf("data chunk before fmt chunk")
			}
			if format.Channels == 0 || format.SampleRate == 0 || format.BitsPerSample == 0 {
				return Format{}, nil, fmt.Errorf("invalid format: %+v", format)
			}
			if int64(chunk.Size) > int64(r.Len()) {
				return Format{}, nil, fmt.Errorf("data chunk truncated: want %d bytes, have %d", chunk.Size, r.Len())
			}
			pcm := make([]byte, chunk.Size)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return Format{}, nil, fmt.Errorf("failed to read samples: %w", err)
			}
			return format, pcm, nil

		default:
			if err := skip(r, int64(chunk.Size)+int64(chunk.Size%2)); err != nil {
				return Format{}, nil, err
			}
		}
	}
}

func skip(r *bytes.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if n > int64(r.Len()) {
		return fmt.Errorf("chunk truncated")
	}
	_, err := r.Seek(n, io.SeekCurrent)
	return err
}

// EncodeWAV builds a PCM WAVE file. Odd-length sample data gets a pad byte.
func EncodeWAV(f Format, pcm []byte) []byte {
	var buf bytes.Buffer
	blockAlign := f.Channels * f.BitsPerSample / 8

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)+len(pcm)%2))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, f.AudioFormat)
	_ = binary.Write(&buf, binary.LittleEndian, f.Channels)
	_ = binary.Write(&buf, binary.LittleEndian, f.SampleRate)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.BytesPerSecond()))
	_ = binary.Write(&buf, binary.LittleEndian, blockAlign)
	_ = binary.Write(&buf, binary.LittleEndian, f.BitsPerSample)

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	if len(pcm)%2 == 1 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}
