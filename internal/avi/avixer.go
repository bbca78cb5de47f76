package avi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	avix "github.com/charlescerisier/avixer/avi"
)

// avixerService backs the Service interface with the avixer demuxer.
// The demuxer hands out packets sequentially, so the whole packet index
// is materialized per stream at open time; frame-indexed and
// sample-range reads then resolve against that table.
type avixerService struct{}

// NewService returns the avixer-backed container service.
func NewService() Service {
	return &avixerService{}
}

func (s *avixerService) Open(path string) (File, error) {
	rd, ok := avix.NewDemuxer().(*avix.Reader)
	if !ok {
		return nil, fmt.Errorf("avi: unexpected demuxer implementation")
	}

	if err := rd.OpenFile(path); err != nil {
		return nil, fmt.Errorf("avi: open %s: %w", path, err)
	}

	streams, err := rd.GetStreams()
	if err != nil {
		rd.Close()
		return nil, fmt.Errorf("avi: enumerate streams: %w", err)
	}

	// Files without an idx1 chunk yield no packet table; the streams are
	// still enumerable, just empty.
	packets, err := rd.ReadAllPackets()
	if err != nil {
		packets = nil
	}

	byStream := make([][]avix.Packet, len(streams))
	for _, p := range packets {
		if p.StreamIndex >= 0 && p.StreamIndex < len(streams) {
			byStream[p.StreamIndex] = append(byStream[p.StreamIndex], p)
		}
	}

	return &avixerFile{rd: rd, streams: streams, packets: byStream}, nil
}

type avixerFile struct {
	rd      *avix.Reader
	streams []avix.Stream
	packets [][]avix.Packet
}

func (f *avixerFile) StreamCount() int {
	return len(f.streams)
}

func (f *avixerFile) Stream(index int) (Stream, error) {
	if index < 0 || index >= len(f.streams) {
		return nil, ErrStreamIndex
	}

	st := f.streams[index]
	as := &avixerStream{f: f, index: index}

	switch st.Type {
	case avix.StreamTypeVideo:
		as.info.Kind = KindVideo
		as.info.Rate, as.info.Scale = frameRate(st.Codec.FPS)
		as.info.Length = len(f.packets[index])
	case avix.StreamTypeAudio:
		as.info.Kind = KindAudio
		as.info.Rate = uint32(st.Codec.SampleRate)
		as.info.Scale = 1
		as.blockAlign = st.Codec.Channels * st.Codec.BitDepth / 8
		as.offsets = packetOffsets(f.packets[index])
		if as.blockAlign > 0 {
			total := as.offsets[len(as.offsets)-1]
			as.info.Length = int(total / int64(as.blockAlign))
		}
	default:
		as.info.Kind = KindOther
	}

	return as, nil
}

func (f *avixerFile) Close() error {
	return f.rd.Close()
}

// frameRate recovers an unreduced rate/scale ratio from the demuxer's
// floating-point FPS. Integral rates map to n/1, everything else to a
// millihertz ratio.
func frameRate(fps float64) (rate, scale uint32) {
	if fps <= 0 {
		return 0, 1
	}
	if math.Abs(fps-math.Round(fps)) < 1e-6 {
		return uint32(math.Round(fps)), 1
	}
	return uint32(math.Round(fps * 1000)), 1000
}

// packetOffsets returns cumulative byte offsets, one entry per packet
// plus a trailing total.
func packetOffsets(packets []avix.Packet) []int64 {
	offsets := make([]int64, len(packets)+1)
	for i, p := range packets {
		offsets[i+1] = offsets[i] + int64(p.Size)
	}
	return offsets
}

type avixerStream struct {
	f          *avixerFile
	index      int
	info       StreamInfo
	blockAlign int
	offsets    []int64
}

func (s *avixerStream) Info() StreamInfo {
	return s.info
}

func (s *avixerStream) ReadFormat() ([]byte, error) {
	codec := s.f.streams[s.index].Codec

	switch s.info.Kind {
	case KindVideo:
		bih := avix.BitmapInfoHeader{
			Size:        40,
			Width:       int32(codec.Width),
			Height:      int32(codec.Height),
			Planes:      1,
			BitCount:    24,
			Compression: codec.FourCC,
		}
		return marshalFormat(&bih)

	case KindAudio:
		if s.blockAlign <= 0 {
			return nil, ErrNoFormat
		}
		wfx := avix.WaveFormatEx{
			FormatTag:      1, // PCM
			Channels:       uint16(codec.Channels),
			SamplesPerSec:  uint32(codec.SampleRate),
			AvgBytesPerSec: uint32(codec.SampleRate * s.blockAlign),
			BlockAlign:     uint16(s.blockAlign),
			BitsPerSample:  uint16(codec.BitDepth),
		}
		return marshalFormat(&wfx)

	default:
		return nil, ErrNoFormat
	}
}

func marshalFormat(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("avi: marshal format descriptor: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *avixerStream) FrameSize(frame int) (int, error) {
	if s.info.Kind != KindVideo {
		return 0, ErrNotVideo
	}
	packets := s.f.packets[s.index]
	if frame < 0 || frame >= len(packets) {
		return 0, ErrStreamIndex
	}
	return packets[frame].Size, nil
}

func (s *avixerStream) ReadFrame(frame int, dst []byte) (int, error) {
	if _, err := s.FrameSize(frame); err != nil {
		return 0, err
	}
	pkt := s.f.packets[s.index][frame]
	data, err := s.f.rd.ReadPacketData(&pkt)
	if err != nil {
		return 0, fmt.Errorf("avi: read frame %d: %w", frame, err)
	}
	return copy(dst, data), nil
}

func (s *avixerStream) ReadSamples(start int, dst []byte) (int, error) {
	if s.info.Kind != KindAudio {
		return 0, ErrNotAudio
	}
	if s.blockAlign <= 0 {
		return 0, ErrNoFormat
	}
	if start < 0 {
		return 0, ErrStreamIndex
	}

	packets := s.f.packets[s.index]
	total := s.offsets[len(s.offsets)-1]
	from := int64(start) * int64(s.blockAlign)
	if from >= total || len(dst) == 0 {
		return 0, nil
	}
	to := from + int64(len(dst))
	if to > total {
		to = total
	}

	written := 0
	for i, pkt := range packets {
		pktFrom, pktTo := s.offsets[i], s.offsets[i+1]
		if pktTo <= from {
			continue
		}
		if pktFrom >= to {
			break
		}
		data, err := s.f.rd.ReadPacketData(&pkt)
		if err != nil {
			return written, fmt.Errorf("avi: read samples at %d: %w", start, err)
		}
		lo := int64(0)
		if from > pktFrom {
			lo = from - pktFrom
		}
		hi := pktTo - pktFrom
		if to < pktTo {
			hi = to - pktFrom
		}
		written += copy(dst[written:], data[lo:hi])
	}
	return written, nil
}

func (s *avixerStream) Release() {}
