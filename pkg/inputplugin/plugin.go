// Package inputplugin defines the host-facing contract of media input
// plugins: a capability-flagged plugin descriptor, the InputPlugin
// interface replacing the fixed function-pointer table of legacy hosts,
// a self-registration registry, and an out-of-process binding over
// hashicorp go-plugin.
package inputplugin

// Capability describes what a plugin can deliver.
type Capability int

const (
	CapVideo Capability = 1 << iota
	CapAudio
)

// Has reports whether all bits of c are set.
func (caps Capability) Has(c Capability) bool { return caps&c == c }

// PluginInfo describes a plugin to the host: display name, the file
// extensions it accepts, and a version string.
type PluginInfo struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	FileFilter   []string   `json:"file_filter"`
	Version      string     `json:"version"`
	Capabilities Capability `json:"capabilities"`
}

// Info is the per-file metadata record a plugin reports for an open
// session. Format blobs are opaque to the host-plugin boundary: the
// host parses the video blob as a standard bitmap-header-shaped
// structure and the audio blob as a waveform-format-shaped structure.
type Info struct {
	HasVideo bool `json:"has_video"`
	HasAudio bool `json:"has_audio"`

	Rate        uint32 `json:"rate"`
	Scale       uint32 `json:"scale"`
	FrameCount  int    `json:"frame_count"`
	VideoFormat []byte `json:"video_format,omitempty"`

	SampleCount int    `json:"sample_count"`
	AudioFormat []byte `json:"audio_format,omitempty"`
}

// InputPlugin is the polymorphic replacement of the fixed plugin table.
// The failure conventions mirror the legacy host ABI: Open reports an
// error, Close and Configure always succeed, reads return 0 bytes on
// any failure.
type InputPlugin interface {
	// Info returns the plugin descriptor.
	Info() PluginInfo

	// Initialize and Shutdown bound the plugin's process-wide lifetime.
	// The host calls Initialize exactly once before any Open and
	// Shutdown exactly once after all sessions are closed.
	Initialize()
	Shutdown()

	// Open opens a container file, returning an opaque session handle.
	Open(path string) (string, error)

	// Close releases the session. Always reports success, including for
	// an empty or unknown handle.
	Close(handle string) bool

	// GetInfo returns the session's cached metadata.
	GetInfo(handle string) (Info, error)

	// ReadVideo copies the encoded bytes of one frame into buf and
	// returns the byte count, 0 on failure. The host sizes buf from
	// GetInfo-derived limits.
	ReadVideo(handle string, frame int, buf []byte) int

	// ReadAudio copies count samples starting at start into buf and
	// returns the byte count, 0 on failure.
	ReadAudio(handle string, start, count int, buf []byte) int

	// Configure lets the plugin persist its settings. Always reports
	// success.
	Configure() bool
}
