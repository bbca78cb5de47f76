package input

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/avinput/internal/avi"
	"github.com/mantonx/avinput/internal/config"
	"github.com/mantonx/avinput/internal/events"
)

// fakeStream implements avi.Stream with canned data so classification
// and release behavior can be observed.
type fakeStream struct {
	info      avi.StreamInfo
	format    []byte
	formatErr error
	frames    [][]byte
	audio     []byte
	readErr   error
	released  bool
}

func (s *fakeStream) Info() avi.StreamInfo { return s.info }

func (s *fakeStream) ReadFormat() ([]byte, error) {
	if s.formatErr != nil {
		return nil, s.formatErr
	}
	return append([]byte(nil), s.format...), nil
}

func (s *fakeStream) FrameSize(frame int) (int, error) {
	if frame < 0 || frame >= len(s.frames) {
		return 0, avi.ErrStreamIndex
	}
	return len(s.frames[frame]), nil
}

func (s *fakeStream) ReadFrame(frame int, dst []byte) (int, error) {
	if s.readErr != nil {
		return 0, s.readErr
	}
	if frame < 0 || frame >= len(s.frames) {
		return 0, avi.ErrStreamIndex
	}
	return copy(dst, s.frames[frame]), nil
}

func (s *fakeStream) ReadSamples(start int, dst []byte) (int, error) {
	if s.readErr != nil {
		return 0, s.readErr
	}
	align := int(binary.LittleEndian.Uint16(s.format[12:14]))
	from := start * align
	if from >= len(s.audio) {
		return 0, nil
	}
	return copy(dst, s.audio[from:]), nil
}

func (s *fakeStream) Release() { s.released = true }

type fakeFile struct {
	streams []*fakeStream
	closed  bool
}

func (f *fakeFile) StreamCount() int { return len(f.streams) }

func (f *fakeFile) Stream(index int) (avi.Stream, error) {
	if index < 0 || index >= len(f.streams) {
		return nil, avi.ErrStreamIndex
	}
	return f.streams[index], nil
}

func (f *fakeFile) Close() error {
	f.closed = true
	return nil
}

type fakeService struct {
	files   map[string]*fakeFile
	openErr error
}

func (s *fakeService) Open(path string) (avi.File, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	f, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return f, nil
}

func waveBlob(channels, sampleRate, blockAlign, bits int) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bits))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	return buf.Bytes()
}

func testVideoStream() *fakeStream {
	frames := make([][]byte, 10)
	for i := range frames {
		frames[i] = bytes.Repeat([]byte{byte(i + 1)}, 32+i)
	}
	return &fakeStream{
		info:   avi.StreamInfo{Kind: avi.KindVideo, Rate: 30, Scale: 1, Length: 10},
		format: bytes.Repeat([]byte{0xAB}, 40),
		frames: frames,
	}
}

func testAudioStream() *fakeStream {
	audio := make([]byte, 4000)
	for i := range audio {
		audio[i] = byte(i)
	}
	return &fakeStream{
		info:   avi.StreamInfo{Kind: avi.KindAudio, Rate: 8000, Scale: 1, Length: 1000},
		format: waveBlob(2, 8000, 4, 16),
		audio:  audio,
	}
}

func newTestAdapter(t *testing.T, svc avi.Service) (*Adapter, events.EventBus) {
	t.Helper()

	bus := events.NewBus()
	adapter := New(svc, WithEventBus(bus), WithConfigManager(config.NewManager()))
	adapter.Initialize()
	t.Cleanup(adapter.Shutdown)
	return adapter, bus
}

func TestOpenClassifiesStreams(t *testing.T) {
	file := &fakeFile{streams: []*fakeStream{testVideoStream(), testAudioStream()}}
	adapter, _ := newTestAdapter(t, &fakeService{files: map[string]*fakeFile{"a.avi": file}})

	handle, err := adapter.Open("a.avi")
	require.NoError(t, err)
	require.NotEqual(t, NilHandle, handle)

	info, err := adapter.GetInfo(handle)
	require.NoError(t, err)
	assert.True(t, info.Flags.HasVideo())
	assert.True(t, info.Flags.HasAudio())
	assert.Equal(t, uint32(30), info.Rate)
	assert.Equal(t, uint32(1), info.Scale)
	assert.Equal(t, 10, info.FrameCount)
	assert.Len(t, info.VideoFormat, 40)
	assert.Equal(t, 1000, info.SampleCount)
	assert.Len(t, info.AudioFormat, 18)

	assert.True(t, adapter.Close(handle))
	assert.True(t, file.closed)
}

func TestOpenKeepsFirstStreamOfEachType(t *testing.T) {
	first, second := testVideoStream(), testVideoStream()
	firstAudio, secondAudio := testAudioStream(), testAudioStream()
	file := &fakeFile{streams: []*fakeStream{first, firstAudio, second, secondAudio}}
	adapter, _ := newTestAdapter(t, &fakeService{files: map[string]*fakeFile{"a.avi": file}})

	handle, err := adapter.Open("a.avi")
	require.NoError(t, err)
	defer adapter.Close(handle)

	assert.False(t, first.released)
	assert.False(t, firstAudio.released)
	assert.True(t, second.released, "duplicate video stream must be released")
	assert.True(t, secondAudio.released, "duplicate audio stream must be released")
}

func TestOpenWithNoClassifiableStreams(t *testing.T) {
	other := &fakeStream{info: avi.StreamInfo{Kind: avi.KindOther}}
	file := &fakeFile{streams: []*fakeStream{other}}
	adapter, _ := newTestAdapter(t, &fakeService{files: map[string]*fakeFile{"a.avi": file}})

	handle, err := adapter.Open("a.avi")
	require.NoError(t, err, "a file with no readable streams still opens")

	info, err := adapter.GetInfo(handle)
	require.NoError(t, err)
	assert.Equal(t, Flag(0), info.Flags)
	assert.True(t, other.released)

	assert.True(t, adapter.Close(handle))
}

func TestOpenFailureLeavesNoSession(t *testing.T) {
	adapter, _ := newTestAdapter(t, &fakeService{openErr: errors.New("boom")})

	handle, err := adapter.Open("a.avi")
	assert.Error(t, err)
	assert.Equal(t, NilHandle, handle)
	assert.Empty(t, adapter.Sessions())
}

func TestOpenFormatFailureDegradesCapability(t *testing.T) {
	video := testVideoStream()
	video.formatErr = errors.New("no format")
	audio := testAudioStream()
	file := &fakeFile{streams: []*fakeStream{video, audio}}
	adapter, _ := newTestAdapter(t, &fakeService{files: map[string]*fakeFile{"a.avi": file}})

	handle, err := adapter.Open("a.avi")
	require.NoError(t, err, "format failure degrades, it does not fail the open")

	info, err := adapter.GetInfo(handle)
	require.NoError(t, err)
	assert.False(t, info.Flags.HasVideo())
	assert.True(t, info.Flags.HasAudio())
	assert.True(t, video.released, "unclaimable stream must be released")

	assert.Zero(t, adapter.ReadVideoFrame(handle, 0, make([]byte, 64)))
	adapter.Close(handle)
}

func TestOpenRejectsZeroBlockAlign(t *testing.T) {
	audio := testAudioStream()
	audio.format = waveBlob(2, 8000, 0, 16)
	file := &fakeFile{streams: []*fakeStream{audio}}
	adapter, _ := newTestAdapter(t, &fakeService{files: map[string]*fakeFile{"a.avi": file}})

	handle, err := adapter.Open("a.avi")
	require.NoError(t, err)

	info, err := adapter.GetInfo(handle)
	require.NoError(t, err)
	assert.False(t, info.Flags.HasAudio())
	assert.True(t, audio.released)
	adapter.Close(handle)
}

func TestOpenBeforeInitialize(t *testing.T) {
	adapter := New(&fakeService{}, WithConfigManager(config.NewManager()))

	_, err := adapter.Open("a.avi")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestCloseIsSafeForNilAndUnknownHandles(t *testing.T) {
	adapter, _ := newTestAdapter(t, &fakeService{})

	assert.True(t, adapter.Close(NilHandle))
	assert.True(t, adapter.Close(Handle("not-a-session")))
}

func TestRepeatedOpenCloseLeaksNothing(t *testing.T) {
	svc := &fakeService{files: map[string]*fakeFile{}}
	adapter, _ := newTestAdapter(t, svc)

	for i := 0; i < 20; i++ {
		file := &fakeFile{streams: []*fakeStream{testVideoStream(), testAudioStream()}}
		svc.files["a.avi"] = file

		handle, err := adapter.Open("a.avi")
		require.NoError(t, err)
		_, err = adapter.GetInfo(handle)
		require.NoError(t, err)
		require.True(t, adapter.Close(handle))
		require.True(t, file.closed, "iteration %d left the file open", i)
	}
	assert.Empty(t, adapter.Sessions())
}

func TestGetInfoInvalidHandle(t *testing.T) {
	adapter, _ := newTestAdapter(t, &fakeService{})

	_, err := adapter.GetInfo(Handle("stale"))
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestReadVideoFrame(t *testing.T) {
	video := testVideoStream()
	file := &fakeFile{streams: []*fakeStream{video, testAudioStream()}}
	adapter, _ := newTestAdapter(t, &fakeService{files: map[string]*fakeFile{"a.avi": file}})

	handle, err := adapter.Open("a.avi")
	require.NoError(t, err)
	defer adapter.Close(handle)

	buf := make([]byte, 256)
	n := adapter.ReadVideoFrame(handle, 3, buf)
	assert.Equal(t, len(video.frames[3]), n)
	assert.Equal(t, video.frames[3], buf[:n])

	assert.Zero(t, adapter.ReadVideoFrame(handle, 10, buf), "past the frame count")
	assert.Zero(t, adapter.ReadVideoFrame(handle, -1, buf))
	assert.Zero(t, adapter.ReadVideoFrame(Handle("stale"), 0, buf))
}

func TestReadAudioRange(t *testing.T) {
	audio := testAudioStream()
	file := &fakeFile{streams: []*fakeStream{audio}}
	adapter, _ := newTestAdapter(t, &fakeService{files: map[string]*fakeFile{"a.avi": file}})

	handle, err := adapter.Open("a.avi")
	require.NoError(t, err)
	defer adapter.Close(handle)

	buf := make([]byte, 4096)
	n := adapter.ReadAudioRange(handle, 0, 100, buf)
	assert.Equal(t, 400, n, "100 samples at block align 4")
	assert.Equal(t, audio.audio[:400], buf[:400])

	assert.Zero(t, adapter.ReadAudioRange(handle, 1000, 10, buf), "past the sample count")
	assert.Zero(t, adapter.ReadAudioRange(handle, 0, 0, buf))
	assert.Zero(t, adapter.ReadAudioRange(Handle("stale"), 0, 10, buf))
}

func TestReadErrorTaxonomy(t *testing.T) {
	videoOnly := &fakeFile{streams: []*fakeStream{testVideoStream()}}
	audioOnly := &fakeFile{streams: []*fakeStream{testAudioStream()}}
	adapter, _ := newTestAdapter(t, &fakeService{files: map[string]*fakeFile{
		"v.avi": videoOnly,
		"a.avi": audioOnly,
	}})

	video, err := adapter.Open("v.avi")
	require.NoError(t, err)
	defer adapter.Close(video)
	audio, err := adapter.Open("a.avi")
	require.NoError(t, err)
	defer adapter.Close(audio)

	buf := make([]byte, 256)
	_, err = adapter.VideoFrame(Handle("stale"), 0, buf)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = adapter.VideoFrame(audio, 0, buf)
	assert.ErrorIs(t, err, ErrNoVideoStream)
	_, err = adapter.VideoFrame(video, 99, buf)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = adapter.AudioRange(Handle("stale"), 0, 10, buf)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = adapter.AudioRange(video, 0, 10, buf)
	assert.ErrorIs(t, err, ErrNoAudioStream)
	_, err = adapter.AudioRange(audio, -1, 10, buf)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = adapter.AudioRange(audio, 0, 0, buf)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestReadsAfterCloseReturnZero(t *testing.T) {
	file := &fakeFile{streams: []*fakeStream{testVideoStream(), testAudioStream()}}
	adapter, _ := newTestAdapter(t, &fakeService{files: map[string]*fakeFile{"a.avi": file}})

	handle, err := adapter.Open("a.avi")
	require.NoError(t, err)
	require.True(t, adapter.Close(handle))

	buf := make([]byte, 256)
	assert.Zero(t, adapter.ReadVideoFrame(handle, 0, buf))
	assert.Zero(t, adapter.ReadAudioRange(handle, 0, 10, buf))
	_, err = adapter.GetInfo(handle)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestSessionLimit(t *testing.T) {
	cfg := config.NewManager()
	cfg.Update(func(c *config.Config) { c.Adapter.MaxSessions = 1 })

	file := &fakeFile{streams: []*fakeStream{testVideoStream()}}
	adapter := New(&fakeService{files: map[string]*fakeFile{"a.avi": file}},
		WithConfigManager(cfg))
	adapter.Initialize()
	defer adapter.Shutdown()

	first, err := adapter.Open("a.avi")
	require.NoError(t, err)

	_, err = adapter.Open("a.avi")
	assert.ErrorIs(t, err, ErrTooManySessions)

	adapter.Close(first)
	_, err = adapter.Open("a.avi")
	assert.NoError(t, err)
}

func TestShutdownClosesLeakedSessions(t *testing.T) {
	file := &fakeFile{streams: []*fakeStream{testVideoStream()}}
	bus := events.NewBus()
	adapter := New(&fakeService{files: map[string]*fakeFile{"a.avi": file}},
		WithEventBus(bus), WithConfigManager(config.NewManager()))
	adapter.Initialize()

	_, err := adapter.Open("a.avi")
	require.NoError(t, err)

	adapter.Shutdown()
	assert.True(t, file.closed)
	assert.Empty(t, adapter.Sessions())

	var leaked bool
	for _, event := range bus.GetEvents(0) {
		if event.Type == events.EventSessionLeaked {
			leaked = true
		}
	}
	assert.True(t, leaked, "expected a session.leaked event")
}

func TestSessionLifecycleEvents(t *testing.T) {
	file := &fakeFile{streams: []*fakeStream{testVideoStream(), testAudioStream()}}
	adapter, bus := newTestAdapter(t, &fakeService{files: map[string]*fakeFile{"a.avi": file}})

	var opened, closed int
	bus.Subscribe(func(event events.Event) {
		switch event.Type {
		case events.EventSessionOpened:
			opened++
		case events.EventSessionClosed:
			closed++
		}
	}, events.EventSessionOpened, events.EventSessionClosed)

	handle, err := adapter.Open("a.avi")
	require.NoError(t, err)
	adapter.Close(handle)

	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestConfigurePersistsSettings(t *testing.T) {
	cfg := config.NewManager()
	cfg.SetPath(t.TempDir() + "/avinput.yaml")

	adapter := New(&fakeService{}, WithConfigManager(cfg))
	adapter.Initialize()
	defer adapter.Shutdown()

	assert.True(t, adapter.Configure())
	assert.FileExists(t, cfg.Path())
}

func TestConfigureAlwaysSucceeds(t *testing.T) {
	// No config path set: persistence fails internally, the host still
	// sees success.
	adapter := New(&fakeService{}, WithConfigManager(config.NewManager()))
	assert.True(t, adapter.Configure())
}
