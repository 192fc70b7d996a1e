// embersyncd runs the location-sync service standalone, with a scripted
// in-process stand-in for the host disassembler. Useful for wiring up and
// exercising companions without the real host tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/emberhq/embersync/internal/addr"
	"github.com/emberhq/embersync/internal/config"
	"github.com/emberhq/embersync/internal/observability"
	"github.com/emberhq/embersync/internal/plugin"
	"github.com/emberhq/embersync/internal/program"
	"github.com/emberhq/embersync/internal/server"
)

// scriptedBridge stands in for the host tool. Navigation succeeds inside the
// program image and fails outside it, so companions can exercise both ack
// paths.
type scriptedBridge struct {
	low, high addr.Address
}

func (b *scriptedBridge) NavigateTo(a addr.Address) bool {
	if a < b.low || a >= b.high {
		return false
	}
	log.Info().Str("address", a.String()).Msg("scripted bridge navigated")
	return true
}

func (b *scriptedBridge) Log(msg string) {
	log.Info().Str("console", msg).Msg("host console")
}

func main() {
	configPath := flag.String("config", "", "path to daemon TOML config")
	writeConfig := flag.Bool("write-config", false, "write a config template to -config and exit")
	force := flag.Bool("force", false, "overwrite existing config with -write-config")
	listenAddr := flag.String("listen", "", "sync listen address (overrides config)")
	adminAddr := flag.String("admin", "", "admin HTTP address (overrides config)")
	programName := flag.String("program", "scripted", "name of the scripted program")
	imageBase := flag.String("image-base", "0x00400000", "image base of the scripted program")
	imageSize := flag.String("image-size", "0x00200000", "navigable span of the scripted program")
	width := flag.Int("width", 64, "address width of the scripted program: 32|64")
	flag.Parse()

	observability.InitLogger("embersyncd")

	if *writeConfig {
		if *configPath == "" {
			log.Fatal().Msg("-write-config requires -config")
		}
		if err := config.WriteTemplate(*configPath, *force); err != nil {
			log.Fatal().Err(err).Msg("failed to write config template")
		}
		log.Info().Str("path", *configPath).Msg("wrote config template")
		return
	}

	cfg := config.DefaultDaemonConfig()
	if *configPath != "" {
		loaded, err := config.LoadDaemonConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load daemon config")
		}
		cfg = loaded
		log.Info().Str("path", *configPath).Msg("loaded daemon config")
	}
	if *listenAddr != "" {
		cfg.SyncAddr = *listenAddr
	}
	if *adminAddr != "" {
		cfg.AdminAddr = *adminAddr
	}

	prog, span, err := scriptedProgram(*programName, *imageBase, *imageSize, *width)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid scripted program")
	}

	bridge := &scriptedBridge{low: prog.ImageBase, high: prog.ImageBase + span}
	p := plugin.New(bridge, plugin.Config{
		Server:             cfg.ServerConfig(),
		DispatchQueueDepth: cfg.DispatchQueueDepth,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p.ProgramActivated(prog)
	if p.Server().Phase() != server.PhaseListening {
		log.Fatal().Str("addr", cfg.SyncAddr).Msg("sync listener failed to start")
	}

	if cfg.AdminAddr != "" {
		admin := server.NewAdmin(cfg.Name, cfg.AdminAddr, p.Server(), p.Session(), p.State(), cfg.CorsOrigins)
		go func() {
			if err := admin.Serve(); err != nil {
				log.Error().Err(err).Msg("admin surface stopped")
			}
		}()
		log.Info().Str("addr", cfg.AdminAddr).Msg("admin surface started")
	}

	// The main goroutine plays the host's UI thread and pumps navigations.
	p.RunDispatcher(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.DrainTimeoutMS)*time.Millisecond+time.Second)
	defer cancel()
	if err := p.Shutdown(drainCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown incomplete")
		os.Exit(1)
	}
	log.Info().Msg("embersyncd stopped")
}

func scriptedProgram(name, base, size string, width int) (program.Program, addr.Address, error) {
	baseVal, err := strconv.ParseUint(base, 0, 64)
	if err != nil {
		return program.Program{}, 0, fmt.Errorf("image-base: %w", err)
	}
	sizeVal, err := strconv.ParseUint(size, 0, 64)
	if err != nil {
		return program.Program{}, 0, fmt.Errorf("image-size: %w", err)
	}
	if sizeVal == 0 {
		return program.Program{}, 0, fmt.Errorf("image-size must be positive")
	}

	var w addr.Width
	switch width {
	case 32:
		w = addr.Width32
	case 64:
		w = addr.Width64
	default:
		return program.Program{}, 0, fmt.Errorf("width must be 32 or 64, got %d", width)
	}

	return program.Program{
		Name:      name,
		ImageBase: addr.Address(baseVal),
		Width:     w,
	}, addr.Address(sizeVal), nil
}
