// Command p2p-bootnode runs a standalone DHT/relay/gossip vantage point:
// no role behaviour on top, just a substrate and generic transport kept
// alive so other nodes have somewhere stable to bootstrap from.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/libp2p/go-libp2p"

	"github.com/subsquid-network/p2p-transport/cli"
	"github.com/subsquid-network/p2p-transport/internal/identity"
	"github.com/subsquid-network/p2p-transport/internal/metrics"
	"github.com/subsquid-network/p2p-transport/internal/substrate"
	"github.com/subsquid-network/p2p-transport/internal/transport"
)

// Set via -ldflags at build time, matching every other binary in this module.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if len(os.Args) > 1 && (os.Args[1] == "version" || os.Args[1] == "--version") {
		fmt.Printf("p2p-bootnode %s (%s) built %s\n", version, commit, buildDate)
		fmt.Printf("Go %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return
	}

	fs := flag.NewFlagSet("p2p-bootnode", flag.ExitOnError)
	args := cli.Register(fs)
	metricsAddr := fs.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if err := args.Finish(); err != nil {
		slog.Error("invalid flags", "err", err)
		os.Exit(1)
	}

	priv, err := identity.LoadOrCreateIdentity(args.KeyFile)
	if err != nil {
		slog.Error("failed to load identity", "err", err)
		os.Exit(1)
	}

	announceAddrs, err := args.ParseAnnounceAddrs()
	if err != nil {
		slog.Error("invalid public address", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.Recorder(metrics.Noop{})
	var mm *metrics.Metrics
	if *metricsAddr != "" {
		mm = metrics.New()
		rec = mm
		go serveMetrics(*metricsAddr, mm)
	}

	sub, err := substrate.New(ctx, substrate.Config{
		PrivKeyOpt:    libp2p.Identity(priv),
		ListenAddrs:   args.ListenAddrs,
		AnnounceAddrs: announceAddrs,
		ForcePrivate:  args.ForcePrivate,
		BootNodes:     args.BootNodes,
		Gater:         substrate.NewBlockListGater(),
	}, transport.MsgIDFn)
	if err != nil {
		slog.Error("failed to build substrate", "err", err)
		os.Exit(1)
	}
	defer sub.Close()

	tr := transport.New(sub, transport.Config[[]byte]{
		Codec: transport.Codec[[]byte]{
			Encode: func(b []byte) ([]byte, error) { return b, nil },
			Decode: func(b []byte) ([]byte, error) { return b, nil },
		},
		BootstrapEnabled: args.Bootstrap,
		Recorder:         rec,
	})
	handle := tr.Start()
	defer handle.Close()

	slog.Info("bootnode running", "peer_id", sub.Host.ID(), "addrs", sub.Host.Addrs())
	<-ctx.Done()
	slog.Info("shutting down")
}

func serveMetrics(addr string, mm *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mm.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server exited", "err", err)
	}
}
