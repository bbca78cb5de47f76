package inputplugin

import (
	"fmt"
	"net/rpc"
	"os/exec"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/mantonx/avinput/internal/logger"
)

// Handshake for input plugin communication. Host and plugin binaries
// must agree on it.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "AVINPUT_PLUGIN",
	MagicCookieValue: "avinput_input_v1",
}

// DispenseName is the key the input plugin is served under.
const DispenseName = "input"

// PluginMap is the plugin set served over the handshake.
func PluginMap(impl InputPlugin) map[string]goplugin.Plugin {
	return map[string]goplugin.Plugin{
		DispenseName: &GoPlugin{Impl: impl},
	}
}

// GoPlugin adapts an InputPlugin to hashicorp go-plugin's net/rpc
// transport.
type GoPlugin struct {
	Impl InputPlugin
}

func (p *GoPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &rpcServer{impl: p.Impl}, nil
}

func (p *GoPlugin) Client(b *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &rpcClient{client: c}, nil
}

// Serve runs the plugin side of the connection. It blocks until the
// host disconnects.
func Serve(impl InputPlugin) {
	impl.Initialize()
	defer impl.Shutdown()

	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginMap(impl),
		Logger:          logger.New(impl.Info().ID),
	})
}

// Load starts the plugin binary at path and returns the client-side
// InputPlugin plus a release function that kills the subprocess.
func Load(path string) (InputPlugin, func(), error) {
	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginMap(nil),
		Cmd:             exec.Command(path),
		Logger:          logger.New("inputplugin-host"),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("connect to plugin %s: %w", path, err)
	}

	raw, err := rpcClient.Dispense(DispenseName)
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("dispense %q from %s: %w", DispenseName, path, err)
	}

	plugin, ok := raw.(InputPlugin)
	if !ok {
		client.Kill()
		return nil, nil, fmt.Errorf("plugin %s does not implement the input contract", path)
	}
	return plugin, client.Kill, nil
}

// RPC request/reply records. Fields are exported for gob.

type OpenArgs struct {
	Path string
}

type OpenReply struct {
	Handle string
}

type HandleArgs struct {
	Handle string
}

type CloseReply struct {
	OK bool
}

type InfoReply struct {
	Info Info
}

type PluginInfoReply struct {
	Info PluginInfo
}

type ReadVideoArgs struct {
	Handle   string
	Frame    int
	Capacity int
}

type ReadAudioArgs struct {
	Handle   string
	Start    int
	Count    int
	Capacity int
}

type ReadReply struct {
	Data []byte
}

type ConfigureReply struct {
	OK bool
}

type rpcServer struct {
	impl InputPlugin
}

func (s *rpcServer) PluginInfo(args HandleArgs, reply *PluginInfoReply) error {
	reply.Info = s.impl.Info()
	return nil
}

func (s *rpcServer) Open(args OpenArgs, reply *OpenReply) error {
	handle, err := s.impl.Open(args.Path)
	if err != nil {
		return err
	}
	reply.Handle = handle
	return nil
}

func (s *rpcServer) Close(args HandleArgs, reply *CloseReply) error {
	reply.OK = s.impl.Close(args.Handle)
	return nil
}

func (s *rpcServer) GetInfo(args HandleArgs, reply *InfoReply) error {
	info, err := s.impl.GetInfo(args.Handle)
	if err != nil {
		return err
	}
	reply.Info = info
	return nil
}

func (s *rpcServer) ReadVideo(args ReadVideoArgs, reply *ReadReply) error {
	buf := make([]byte, args.Capacity)
	n := s.impl.ReadVideo(args.Handle, args.Frame, buf)
	reply.Data = buf[:n]
	return nil
}

func (s *rpcServer) ReadAudio(args ReadAudioArgs, reply *ReadReply) error {
	buf := make([]byte, args.Capacity)
	n := s.impl.ReadAudio(args.Handle, args.Start, args.Count, buf)
	reply.Data = buf[:n]
	return nil
}

func (s *rpcServer) Configure(args HandleArgs, reply *ConfigureReply) error {
	reply.OK = s.impl.Configure()
	return nil
}

type rpcClient struct {
	client *rpc.Client
}

var _ InputPlugin = (*rpcClient)(nil)

func (c *rpcClient) Info() PluginInfo {
	var reply PluginInfoReply
	if err := c.client.Call("Plugin.PluginInfo", HandleArgs{}, &reply); err != nil {
		logger.Warn("plugin info call failed: %v", err)
		return PluginInfo{}
	}
	return reply.Info
}

// Initialize and Shutdown are no-ops on the client: the plugin process
// bounds its own lifecycle in Serve.
func (c *rpcClient) Initialize() {}
func (c *rpcClient) Shutdown()   {}

func (c *rpcClient) Open(path string) (string, error) {
	var reply OpenReply
	if err := c.client.Call("Plugin.Open", OpenArgs{Path: path}, &reply); err != nil {
		return "", err
	}
	return reply.Handle, nil
}

func (c *rpcClient) Close(handle string) bool {
	var reply CloseReply
	if err := c.client.Call("Plugin.Close", HandleArgs{Handle: handle}, &reply); err != nil {
		// The host contract says close never fails.
		return true
	}
	return reply.OK
}

func (c *rpcClient) GetInfo(handle string) (Info, error) {
	var reply InfoReply
	if err := c.client.Call("Plugin.GetInfo", HandleArgs{Handle: handle}, &reply); err != nil {
		return Info{}, err
	}
	return reply.Info, nil
}

func (c *rpcClient) ReadVideo(handle string, frame int, buf []byte) int {
	var reply ReadReply
	args := ReadVideoArgs{Handle: handle, Frame: frame, Capacity: len(buf)}
	if err := c.client.Call("Plugin.ReadVideo", args, &reply); err != nil {
		return 0
	}
	return copy(buf, reply.Data)
}

func (c *rpcClient) ReadAudio(handle string, start, count int, buf []byte) int {
	var reply ReadReply
	args := ReadAudioArgs{Handle: handle, Start: start, Count: count, Capacity: len(buf)}
	if err := c.client.Call("Plugin.ReadAudio", args, &reply); err != nil {
		return 0
	}
	return copy(buf, reply.Data)
}

func (c *rpcClient) Configure() bool {
	var reply ConfigureReply
	if err := c.client.Call("Plugin.Configure", HandleArgs{}, &reply); err != nil {
		return true
	}
	return reply.OK
}
