// Package avi abstracts the AVI container subsystem the input adapter
// delegates to. All demuxing, stream enumeration and seeking happens
// behind the Service interface; the adapter never touches the container
// bytes itself.
package avi

import "errors"

// StreamKind classifies an elementary stream inside a container.
type StreamKind int

const (
	KindOther StreamKind = iota
	KindVideo
	KindAudio
)

func (k StreamKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "other"
	}
}

// StreamInfo carries the per-stream metadata gathered at open time.
// Rate/Scale express the video frame rate as an unreduced ratio; for
// audio streams Rate is the sample rate and Scale is 1. Length counts
// frames for video and samples for audio.
type StreamInfo struct {
	Kind   StreamKind
	Rate   uint32
	Scale  uint32
	Length int
}

// Service opens container files. Implementations own all parsing.
type Service interface {
	Open(path string) (File, error)
}

// File is one opened container. Close releases the underlying reader;
// streams obtained from the file must not be used afterwards.
type File interface {
	StreamCount() int
	Stream(index int) (Stream, error)
	Close() error
}

// Stream is one elementary stream of an open file.
type Stream interface {
	Info() StreamInfo

	// ReadFormat returns the stream's format descriptor blob: a
	// bitmap-header-shaped structure for video, a waveform-format-shaped
	// structure for audio. The blob is freshly allocated per call.
	ReadFormat() ([]byte, error)

	// FrameSize reports the encoded byte size of one video frame.
	FrameSize(frame int) (int, error)

	// ReadFrame copies the encoded bytes of one video frame into dst
	// and returns the byte count. dst must hold at least FrameSize(frame).
	ReadFrame(frame int, dst []byte) (int, error)

	// ReadSamples copies up to len(dst) bytes of audio starting at the
	// given sample index and returns the byte count. Requests past the
	// end of the stream are clamped.
	ReadSamples(start int, dst []byte) (int, error)

	// Release drops the stream handle. Streams not claimed by a session
	// are released during enumeration.
	Release()
}

var (
	// ErrStreamIndex is returned for a stream or frame index outside the
	// range the file reports.
	ErrStreamIndex = errors.New("avi: index out of range")

	// ErrNotVideo and ErrNotAudio guard the typed read paths.
	ErrNotVideo = errors.New("avi: not a video stream")
	ErrNotAudio = errors.New("avi: not an audio stream")

	// ErrNoFormat is returned when a usable format descriptor cannot be
	// produced for a stream (for audio: a zero block alignment).
	ErrNoFormat = errors.New("avi: no usable format descriptor")
)
