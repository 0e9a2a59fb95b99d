// Command ramsesd runs the RAMSES-II protocol engine: it owns a serial or
// MQTT transport, decodes inbound frames, and exposes a QoS-managed send
// queue for outbound commands.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/MatusOllah/slogcolor"
	"github.com/davecgh/go-spew/spew"

	"github.com/ramses-tx/engine/ramsestx"
)

var (
	configFile = flag.String("config", "config.yaml", "path to engine configuration")
	isVerbose  = flag.Bool("verbose", false, "enable DEBUG log messages")
)

func main() {
	flag.Parse()

	opts := slogcolor.DefaultOptions
	if *isVerbose {
		opts.Level = slog.LevelDebug
	} else {
		opts.Level = slog.LevelInfo
	}
	log := slog.New(slogcolor.NewHandler(os.Stderr, opts))
	slog.SetDefault(log)

	cfg, err := ramsestx.LoadConfig(*configFile)
	if err != nil {
		log.Error("cannot load configuration", "file", *configFile, "error", err)
		os.Exit(1)
	}

	filter, err := cfg.Filter()
	if err != nil {
		log.Error("invalid device-id filter", "error", err)
		os.Exit(1)
	}

	var packetLog *ramsestx.PacketLogWriter
	if cfg.PacketLog.File != "" {
		packetLog, err = ramsestx.NewPacketLogWriter(cfg.PacketLog.File, cfg.PacketLog.RotateBytes, cfg.PacketLog.RotateDaily)
		if err != nil {
			log.Error("cannot open packet log", "error", err)
			os.Exit(1)
		}
		defer packetLog.Close()
	}

	source, err := ramsestx.OpenSerial(cfg.Port, ramsestx.SerialConfig{Baud: cfg.PortConfig.Baud}, log)
	if err != nil {
		log.Error("cannot open port", "port", cfg.Port, "error", err)
		os.Exit(1)
	}
	defer source.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var activeHGI *ramsestx.Address
	if !cfg.DisableSending {
		sig, err := ramsestx.DiscoverSignature(ctx, source, mustHGI())
		if err != nil {
			log.Warn("active-gateway signature discovery failed", "error", err)
		} else {
			activeHGI, _ = ramsestx.ParseAddress(sig.DeviceID)
			log.Info("discovered active gateway", "device_id", sig.DeviceID, "is_hgi80", sig.IsHGI80)
		}
	}

	proto := ramsestx.NewProtocol(source, cfg.DisableQos.Mode(), log)
	proto.ConnectionMade(activeHGI)

	log.Info("engine started", "port", cfg.Port)

	lines := source.Lines(ctx)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				log.Warn("source closed")
				return
			}
			handleLine(line, proto, filter, packetLog, activeHGI, log)
		case <-ctx.Done():
			log.Info("shutting down")
			proto.ConnectionLost(ctx.Err())
			return
		}
	}
}

func handleLine(line string, proto *ramsestx.Protocol, filter *ramsestx.Filter, packetLog *ramsestx.PacketLogWriter, activeHGI *ramsestx.Address, log *slog.Logger) {
	pkt, err := ramsestx.ParsePacketLine(line)
	if err != nil {
		log.Warn("dropping invalid packet", "line", line, "error", err)
		return
	}
	if !filter.Allow(pkt.Frame.Src, pkt.Frame.Dst, activeHGI) {
		log.Debug("dropping filtered packet", "src", pkt.Frame.Src.ID(), "dst", pkt.Frame.Dst.ID())
		return
	}
	if packetLog != nil {
		if err := packetLog.Write(pkt); err != nil {
			log.Error("packet log write failed", "error", err)
		}
	}
	proto.Receive(pkt)

	msg, err := ramsestx.DecodeMessage(pkt)
	if err != nil {
		log.Warn("dropping unparseable payload", "code", pkt.Frame.Code, "error", err)
		return
	}
	log.Debug("received", "header", msg.Header(), "code", pkt.Frame.Code)
	if log.Enabled(context.Background(), slog.LevelDebug) {
		log.Debug(spew.Sprintf("decoded payload %#v", msg.Payload))
	}
}

// mustHGI returns the generic HGI placeholder address; used only as a
// fallback identity while the active gateway id is still undiscovered.
func mustHGI() *ramsestx.Address {
	addr, err := ramsestx.ParseAddress(ramsestx.HGIDeviceID)
	if err != nil {
		panic(err) // HGIDeviceID is a compile-time constant, always valid
	}
	return addr
}
