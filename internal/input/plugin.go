package input

import (
	"github.com/mantonx/avinput/internal/avi"
	"github.com/mantonx/avinput/pkg/inputplugin"
)

// PluginID identifies the AVI reader in the plugin registry.
const PluginID = "avi_reader"

// PluginVersion is the host-visible version string.
const PluginVersion = "AVI File Reader v2.0.0"

// Plugin exposes the adapter through the inputplugin contract.
type Plugin struct {
	adapter *Adapter
}

// NewPlugin creates the AVI reader plugin over the default container
// service. Options are passed through to the adapter.
func NewPlugin(opts ...Option) *Plugin {
	return &Plugin{adapter: New(avi.NewService(), opts...)}
}

// Adapter returns the underlying adapter, for in-process hosts that
// want the richer error-typed surface.
func (p *Plugin) Adapter() *Adapter {
	return p.adapter
}

func (p *Plugin) Info() inputplugin.PluginInfo {
	return inputplugin.PluginInfo{
		ID:           PluginID,
		Name:         "AVI File Reader",
		FileFilter:   p.adapter.cfg.Get().Adapter.FileFilter,
		Version:      PluginVersion,
		Capabilities: inputplugin.CapVideo | inputplugin.CapAudio,
	}
}

func (p *Plugin) Initialize() {
	p.adapter.Initialize()
}

func (p *Plugin) Shutdown() {
	p.adapter.Shutdown()
}

func (p *Plugin) Open(path string) (string, error) {
	handle, err := p.adapter.Open(path)
	if err != nil {
		return "", err
	}
	return string(handle), nil
}

func (p *Plugin) Close(handle string) bool {
	return p.adapter.Close(Handle(handle))
}

func (p *Plugin) GetInfo(handle string) (inputplugin.Info, error) {
	info, err := p.adapter.GetInfo(Handle(handle))
	if err != nil {
		return inputplugin.Info{}, err
	}
	return inputplugin.Info{
		HasVideo:    info.Flags.HasVideo(),
		HasAudio:    info.Flags.HasAudio(),
		Rate:        info.Rate,
		Scale:       info.Scale,
		FrameCount:  info.FrameCount,
		VideoFormat: info.VideoFormat,
		SampleCount: info.SampleCount,
		AudioFormat: info.AudioFormat,
	}, nil
}

func (p *Plugin) ReadVideo(handle string, frame int, buf []byte) int {
	return p.adapter.ReadVideoFrame(Handle(handle), frame, buf)
}

func (p *Plugin) ReadAudio(handle string, start, count int, buf []byte) int {
	return p.adapter.ReadAudioRange(Handle(handle), start, count, buf)
}

func (p *Plugin) Configure() bool {
	return p.adapter.Configure()
}

func init() {
	inputplugin.RegisterPlugin(PluginID, func() inputplugin.InputPlugin {
		return NewPlugin()
	})
}
