// Command solana-poller runs one forward-progress poller per
// configured chain, dispatching decoded program logs and slot/orphan
// notifications to in-process handler channels while exposing
// Prometheus metrics over HTTP.
package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/owizdom/solana-indexer/pkg/contracts"
	"github.com/owizdom/solana-indexer/pkg/decoder"
	"github.com/owizdom/solana-indexer/pkg/metrics"
	"github.com/owizdom/solana-indexer/pkg/poller"
	"github.com/owizdom/solana-indexer/pkg/rpc"
	"github.com/owizdom/solana-indexer/pkg/sink"
	"github.com/owizdom/solana-indexer/pkg/store"
	"github.com/owizdom/solana-indexer/pkg/xlog"
)

func main() {
	configPath := flag.String("config", "", "path to the solana-poller config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	if err := xlog.Init(cfg.Debug); err != nil {
		panic(err)
	}
	logger := xlog.Get()
	defer logger.Sync()

	contractStore := contracts.NewInMemoryStore(contractsFromConfig(cfg.Contracts))
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, chainCfg := range cfg.Chains {
		chainCfg := chainCfg
		p, channelSink, err := buildPoller(chainCfg, contractStore, collector, logger)
		if err != nil {
			logger.Fatalw("failed to build poller", "chain_id", chainCfg.ChainID, "error", err)
		}

		g.Go(func() error {
			return p.Start(gctx)
		})
		g.Go(func() error {
			drainSink(gctx, chainCfg.ChainID, channelSink, logger)
			return nil
		})
	}

	http.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: cfg.ListenAddress}
	g.Go(func() error {
		<-gctx.Done()
		return server.Close()
	})
	g.Go(func() error {
		logger.Infow("metrics server listening", "address", cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Errorw("solana-poller exited with error", "error", err)
	}
}

// buildPoller wires one poller.Poller for chainCfg: a SolanaClient RPC
// transport, an Anchor-aware decoder falling through to the baseline
// decoder, a process-local InMemoryStore, and a ChannelSink a caller
// drains into downstream consumers.
func buildPoller(
	chainCfg chainConfig,
	contractStore contracts.Store,
	collector *metrics.Collector,
	logger *zap.SugaredLogger,
) (*poller.Poller, *sink.ChannelSink, error) {
	info := poller.ChainInfo{
		ChainID: chainCfg.ChainID,
		Name:    chainCfg.Name,
		RPC:     rpc.NewSolanaClient(chainCfg.RPCEndpoint, chainCfg.commitment(), logger),
	}
	dec := decoder.NewAnchorDecoder(decoder.NewBaselineDecoder())
	st := store.NewInMemoryStore()

	bufferSize := chainCfg.LogBufferSize
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	channelSink := sink.NewChannelSink(bufferSize)
	fanout := sink.NewFanoutSink(channelSink)

	pcfg := chainCfg.pollerConfig()
	if len(pcfg.InterestingPrograms) == 0 {
		registered, err := contractStore.ListAddressesForChain(context.Background(), chainCfg.ChainID)
		if err != nil {
			return nil, nil, err
		}
		pcfg.InterestingPrograms = registered
		logger.Infow("no interesting_programs configured, falling back to contract registry",
			"chain_id", chainCfg.ChainID, "count", len(registered))
	}

	p := poller.NewPoller(info.RPC, dec, st, fanout, pcfg, collector, logger)
	return p, channelSink, nil
}

// drainSink consumes a chain's ChannelSink so its buffered channels
// never fill up and block the poller. A production deployment would
// replace this with real downstream fanout (a queue, a database
// writer); here it logs at debug level, matching how a thin reference
// binary exercises the channel contract without prescribing what
// consumers do with it.
func drainSink(ctx context.Context, chainID int64, cs *sink.ChannelSink, logger *zap.SugaredLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case slot := <-cs.Slots():
			logger.Debugw("observed slot", "chain_id", chainID, "slot", slot.Slot)
		case log := <-cs.Logs():
			logger.Debugw("observed log", "chain_id", chainID, "slot", log.Slot.Slot, "event", log.Log.EventName)
		case orphaned := <-cs.OrphanedSlots():
			logger.Warnw("slot orphaned", "chain_id", chainID, "slot", orphaned)
		}
	}
}
