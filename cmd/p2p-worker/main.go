// Command p2p-worker stands up a worker node: a substrate swarm, the
// generic transport carrying worker.Envelope, and a worker.Behaviour
// wired to the configured scheduler and logs-collector peer ids.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/subsquid-network/p2p-transport/cli"
	"github.com/subsquid-network/p2p-transport/internal/identity"
	"github.com/subsquid-network/p2p-transport/internal/metrics"
	"github.com/subsquid-network/p2p-transport/internal/substrate"
	"github.com/subsquid-network/p2p-transport/internal/transport"
	"github.com/subsquid-network/p2p-transport/internal/worker"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if len(os.Args) > 1 && (os.Args[1] == "version" || os.Args[1] == "--version") {
		fmt.Printf("p2p-worker %s (%s) built %s\n", version, commit, buildDate)
		fmt.Printf("Go %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return
	}

	fs := flag.NewFlagSet("p2p-worker", flag.ExitOnError)
	args := cli.Register(fs)
	schedulerFlag := fs.String("scheduler", "", "scheduler peer id (required)")
	logsCollectorFlag := fs.String("logs-collector", "", "logs-collector peer id (required)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if err := args.Finish(); err != nil {
		slog.Error("invalid flags", "err", err)
		os.Exit(1)
	}
	if *schedulerFlag == "" || *logsCollectorFlag == "" {
		slog.Error("-scheduler and -logs-collector are both required")
		os.Exit(1)
	}
	scheduler, err := peer.Decode(*schedulerFlag)
	if err != nil {
		slog.Error("invalid -scheduler peer id", "err", err)
		os.Exit(1)
	}
	logsCollector, err := peer.Decode(*logsCollectorFlag)
	if err != nil {
		slog.Error("invalid -logs-collector peer id", "err", err)
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

	gater := substrate.NewBlockListGater()
	sub, err := substrate.New(ctx, substrate.Config{
		PrivKeyOpt:    libp2p.Identity(priv),
		ListenAddrs:   args.ListenAddrs,
		AnnounceAddrs: announceAddrs,
		ForcePrivate:  args.ForcePrivate,
		BootNodes:     args.BootNodes,
		Gater:         gater,
	}, transport.MsgIDFn)
	if err != nil {
		slog.Error("failed to build substrate", "err", err)
		os.Exit(1)
	}
	defer sub.Close()

	tr := transport.New(sub, transport.Config[worker.Envelope]{
		Codec:            worker.Codec,
		BootstrapEnabled: args.Bootstrap,
		Recorder:         metrics.Noop{},
	})
	handle := tr.Start()
	defer handle.Close()

	self := sub.Host.ID()
	wb := worker.New(worker.Config{
		Self:          self,
		Scheduler:     scheduler,
		LogsCollector: logsCollector,
	}, *handle, sub, gater)

	go wb.Run(ctx)
	go logEvents(ctx, wb)

	slog.Info("worker running", "peer_id", self, "scheduler", scheduler, "logs_collector", logsCollector)
	<-ctx.Done()
	slog.Info("shutting down")
}

func logEvents(ctx context.Context, wb *worker.Behaviour) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-wb.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case worker.EventPong:
				slog.Info("pong received")
			case worker.EventQuery:
				slog.Info("query received", "query_id", ev.QueryID, "sender", ev.QuerySender)
			case worker.EventLogsCollected:
				slog.Info("logs watermark updated", "workers", len(ev.LastSeqNo))
			}
		}
	}
}
