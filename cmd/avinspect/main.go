// avinspect probes AVI files through the full input adapter stack and
// prints what a host would see. It can also dump raw frame or sample
// bytes and serve the diagnostics API.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/mantonx/avinput/internal/catalog"
	"github.com/mantonx/avinput/internal/config"
	"github.com/mantonx/avinput/internal/events"
	"github.com/mantonx/avinput/internal/input"
	"github.com/mantonx/avinput/internal/logger"
	"github.com/mantonx/avinput/internal/server"
	"github.com/mantonx/avinput/pkg/inputplugin"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file (YAML)")
		frame      = flag.Int("frame", -1, "dump the encoded bytes of this frame to -out")
		samples    = flag.String("samples", "", "dump a sample range as start:count to -out")
		outPath    = flag.String("out", "", "output file for -frame / -samples dumps")
		serve      = flag.Bool("serve", false, "serve the diagnostics API (blocks)")
		noCatalog  = flag.Bool("no-catalog", false, "skip recording the probe")
	)
	flag.Parse()

	cfg := config.GetManager()
	if *configPath != "" {
		if err := cfg.LoadFromFile(*configPath); err != nil {
			logger.Error("load config: %v", err)
			os.Exit(1)
		}
	}

	bus := events.NewBus()
	plugin := input.NewPlugin(input.WithEventBus(bus), input.WithConfigManager(cfg))
	plugin.Initialize()
	defer plugin.Shutdown()

	var store *catalog.Store
	if !*noCatalog && cfg.Get().Adapter.ProbeOnOpen {
		var err error
		store, err = catalog.Open(cfg.Get().Database)
		if err != nil {
			logger.Warn("probe catalog unavailable: %v", err)
		}
	}

	if path := flag.Arg(0); path != "" {
		if err := probe(plugin, store, path, *frame, *samples, *outPath); err != nil {
			logger.Error("%v", err)
			os.Exit(1)
		}
	} else if !*serve {
		flag.Usage()
		os.Exit(2)
	}

	if *serve {
		srv := cfg.Get().Server
		addr := net.JoinHostPort(srv.Host, strconv.Itoa(srv.Port))
		if err := server.New(plugin, store, bus).Run(addr); err != nil {
			logger.Error("diagnostics server: %v", err)
			os.Exit(1)
		}
	}
}

func probe(plugin *input.Plugin, store *catalog.Store, path string, frame int, samples, outPath string) error {
	handle, err := plugin.Open(path)
	if err != nil {
		return err
	}
	defer plugin.Close(handle)

	info, err := plugin.GetInfo(handle)
	if err != nil {
		return err
	}
	printInfo(path, info)

	if store != nil {
		rec := &catalog.ProbeRecord{
			Path:        path,
			HasVideo:    info.HasVideo,
			HasAudio:    info.HasAudio,
			Rate:        info.Rate,
			Scale:       info.Scale,
			FrameCount:  info.FrameCount,
			SampleCount: info.SampleCount,
			BlockAlign:  blockAlign(info.AudioFormat),
		}
		if err := store.Record(rec); err != nil {
			logger.Warn("recording probe failed: %v", err)
		}
	}

	if frame >= 0 {
		data, n := readFrame(plugin, handle, frame)
		if n == 0 {
			return fmt.Errorf("frame %d: no data", frame)
		}
		fmt.Printf("frame %d: %d bytes\n", frame, n)
		return dump(outPath, data[:n])
	}

	if samples != "" {
		start, count, err := parseRange(samples)
		if err != nil {
			return err
		}
		align := blockAlign(info.AudioFormat)
		if align == 0 {
			return fmt.Errorf("no audio stream to read samples from")
		}
		buf := make([]byte, count*align)
		n := plugin.ReadAudio(handle, start, count, buf)
		if n == 0 {
			return fmt.Errorf("samples %d:%d: no data", start, count)
		}
		fmt.Printf("samples %d:%d: %d bytes\n", start, count, n)
		return dump(outPath, buf[:n])
	}

	return nil
}

func printInfo(path string, info inputplugin.Info) {
	fmt.Printf("%s\n", path)
	if info.HasVideo {
		fps := 0.0
		if info.Scale != 0 {
			fps = float64(info.Rate) / float64(info.Scale)
		}
		fmt.Printf("  video: %d frames, %d/%d (%.3f fps), format %d bytes\n",
			info.FrameCount, info.Rate, info.Scale, fps, len(info.VideoFormat))
	}
	if info.HasAudio {
		fmt.Printf("  audio: %d samples, block align %d, format %d bytes\n",
			info.SampleCount, blockAlign(info.AudioFormat), len(info.AudioFormat))
	}
	if !info.HasVideo && !info.HasAudio {
		fmt.Printf("  no readable streams\n")
	}
}

// readFrame reads one frame into a one-shot buffer. The adapter itself
// performs the size-then-read protocol; here a generous buffer is
// enough.
func readFrame(plugin *input.Plugin, handle string, frame int) ([]byte, int) {
	const maxFrame = 16 << 20
	buf := make([]byte, maxFrame)
	n := plugin.ReadVideo(handle, frame, buf)
	return buf, n
}

func blockAlign(audioFormat []byte) int {
	if len(audioFormat) < 14 {
		return 0
	}
	return int(binary.LittleEndian.Uint16(audioFormat[12:14]))
}

func parseRange(s string) (start, count int, err error) {
	if _, err = fmt.Sscanf(s, "%d:%d", &start, &count); err != nil {
		return 0, 0, fmt.Errorf("bad sample range %q (want start:count)", s)
	}
	return start, count, nil
}

func dump(path string, data []byte) error {
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("wrote %d bytes to %s\n", len(data), path)
	return nil
}
