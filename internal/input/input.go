// Package input implements the AVI input adapter: it bridges the host
// plugin contract to the container service, owning one session per
// opened file and serving frame-indexed video reads and sample-range
// audio reads from it.
package input

import (
	"encoding/binary"
	"errors"
)

// Handle is the opaque session token handed to the host. Tokens are
// validated on every call; an unknown or already-closed token is a
// detectable failure rather than undefined behavior.
type Handle string

// NilHandle is the zero token, returned by a failed Open.
const NilHandle Handle = ""

// Flag is the session capability set.
type Flag int

const (
	FlagVideo Flag = 1 << iota
	FlagAudio
)

// HasVideo reports whether the video capability is set.
func (f Flag) HasVideo() bool { return f&FlagVideo != 0 }

// HasAudio reports whether the audio capability is set.
func (f Flag) HasAudio() bool { return f&FlagAudio != 0 }

// Info is the host-visible metadata record for one session. The format
// blobs reference the session's cached descriptors; they are stable for
// the session's lifetime and must not be modified by the caller.
type Info struct {
	Flags Flag

	// Video: frame rate as an unreduced rate/scale ratio, total frame
	// count, and the bitmap-header-shaped format descriptor.
	Rate        uint32
	Scale       uint32
	FrameCount  int
	VideoFormat []byte

	// Audio: total sample count and the waveform-format-shaped format
	// descriptor.
	SampleCount int
	AudioFormat []byte
}

var (
	// ErrNotInitialized is returned when the adapter is used before
	// Initialize or after Shutdown.
	ErrNotInitialized = errors.New("input: adapter not initialized")

	// ErrInvalidHandle is returned for an unknown or closed session token.
	ErrInvalidHandle = errors.New("input: invalid session handle")

	// ErrTooManySessions is returned when the configured session limit
	// is reached.
	ErrTooManySessions = errors.New("input: session limit reached")

	// ErrNoVideoStream and ErrNoAudioStream are returned by reads on a
	// session lacking that capability.
	ErrNoVideoStream = errors.New("input: session has no video stream")
	ErrNoAudioStream = errors.New("input: session has no audio stream")

	// ErrOutOfRange is returned for a frame or sample index outside the
	// stream.
	ErrOutOfRange = errors.New("input: index out of range")
)

// waveFormatBlockAlign extracts the block-alignment size from a cached
// waveform-format-shaped descriptor blob (little-endian uint16 at byte
// offset 12). Returns 0 when the blob is too short.
func waveFormatBlockAlign(blob []byte) int {
	if len(blob) < 14 {
		return 0
	}
	return int(binary.LittleEndian.Uint16(blob[12:14]))
}
