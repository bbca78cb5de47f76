package input

import (
	"time"

	"github.com/mantonx/avinput/internal/avi"
)

// session is the adapter-side record for one opened container file. It
// exclusively owns the service file handle, the claimed stream handles
// and the cached format descriptors. All fields are written during open
// and never mutated afterwards.
type session struct {
	path     string
	openedAt time.Time

	file  avi.File
	flags Flag

	video       avi.Stream
	videoInfo   avi.StreamInfo
	videoFormat []byte

	audio       avi.Stream
	audioInfo   avi.StreamInfo
	audioFormat []byte
	blockAlign  int
}

// classify walks every stream the service reports, claiming the first
// video and the first audio stream. A stream whose format descriptor
// cannot be produced is released and its capability stays unset; the
// session still opens with whatever remains (including nothing).
func (s *session) classify() {
	for i := 0; i < s.file.StreamCount(); i++ {
		stream, err := s.file.Stream(i)
		if err != nil {
			continue
		}
		info := stream.Info()

		switch {
		case info.Kind == avi.KindVideo && !s.flags.HasVideo():
			blob, err := stream.ReadFormat()
			if err != nil {
				stream.Release()
				continue
			}
			s.video = stream
			s.videoInfo = info
			s.videoFormat = blob
			s.flags |= FlagVideo

		case info.Kind == avi.KindAudio && !s.flags.HasAudio():
			blob, err := stream.ReadFormat()
			if err != nil {
				stream.Release()
				continue
			}
			align := waveFormatBlockAlign(blob)
			if align <= 0 {
				stream.Release()
				continue
			}
			s.audio = stream
			s.audioInfo = info
			s.audioFormat = blob
			s.blockAlign = align
			s.flags |= FlagAudio

		default:
			// Other-typed streams and duplicates of an already claimed
			// type are not retained.
			stream.Release()
		}
	}
}

// release frees the session's resources: audio side first, then video,
// then the underlying file.
func (s *session) release() {
	if s.flags.HasAudio() {
		s.audio.Release()
		s.audioFormat = nil
	}
	if s.flags.HasVideo() {
		s.video.Release()
		s.videoFormat = nil
	}
	s.file.Close()
	s.flags = 0
}

// info snapshots the cached metadata into a host-visible record.
func (s *session) info() Info {
	out := Info{Flags: s.flags}
	if s.flags.HasVideo() {
		out.Rate = s.videoInfo.Rate
		out.Scale = s.videoInfo.Scale
		out.FrameCount = s.videoInfo.Length
		out.VideoFormat = s.videoFormat
	}
	if s.flags.HasAudio() {
		out.SampleCount = s.audioInfo.Length
		out.AudioFormat = s.audioFormat
	}
	return out
}
