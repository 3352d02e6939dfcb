// Package poller implements the forward-progress and reorg-reconciliation
// state machine described by spec §4.2–§4.6. It is grounded directly on
// the reference implementation's chain_pollers/solana.rs: one Poller
// drives exactly one chain, fetching slots and their program logs on a
// fixed tick, persisting a linear history, and walking backward to
// reconcile a reorg the instant a parent-linkage check fails.
package poller

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/owizdom/solana-indexer/pkg/decoder"
	"github.com/owizdom/solana-indexer/pkg/metrics"
	"github.com/owizdom/solana-indexer/pkg/rpc"
	"github.com/owizdom/solana-indexer/pkg/sink"
	"github.com/owizdom/solana-indexer/pkg/store"
	"github.com/owizdom/solana-indexer/pkg/types"
)

// Poller drives one chain's forward-progress loop and reorg
// reconciliation. Every blocking call takes a context so the owning
// goroutine (see cmd/solana-poller's errgroup fanout) can be cancelled
// cleanly.
type Poller struct {
	client  rpc.Client
	decoder decoder.Decoder
	store   store.Persistence
	sink    sink.Sink
	metrics *metrics.Collector
	logger  *zap.SugaredLogger

	config   Config
	programs []string
}

// NewPoller builds a Poller for one chain. The Poller keeps a
// normalized copy of cfg; the caller's own cfg value is not modified
// and does not reflect the applied defaults.
func NewPoller(client rpc.Client, dec decoder.Decoder, st store.Persistence, snk sink.Sink, cfg Config, m *metrics.Collector, logger *zap.SugaredLogger) *Poller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	normalized := normalize(cfg)
	return &Poller{
		client:   client,
		decoder:  dec,
		store:    st,
		sink:     snk,
		metrics:  m,
		logger:   logger.With("chain_id", normalized.ChainID),
		config:   normalized,
		programs: effectivePrograms(normalized.InterestingPrograms),
	}
}

// ChainInfo bundles the identity and RPC handle of one chain a poller
// runs against. cmd/solana-poller constructs one per configured chain
// and uses its RPC field to build the Poller for that chain, mirroring
// how the reference SDK's processor.ChainInfo carries {ChainId, Name,
// RPC} through to a single processor instance.
type ChainInfo struct {
	ChainID int64
	Name    string
	RPC     rpc.Client
}

func (p *Poller) chainLabel() string {
	return strconv.FormatInt(p.config.ChainID, 10)
}

// Start runs bootstrap then blocks in the forward-progress loop until
// ctx is cancelled. A bootstrap failure is returned immediately and
// fatally; once the loop is running, per-tick errors are logged and
// swallowed so a single bad tick never brings the chain down.
func (p *Poller) Start(ctx context.Context) error {
	if err := p.bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap chain %d: %w", p.config.ChainID, err)
	}
	return p.run(ctx)
}

// bootstrap seeds persistence with the current chain tip when no
// last-processed slot exists yet, per spec §4.2. It does not fetch or
// dispatch that tip's logs — the next tick picks up from it normally.
func (p *Poller) bootstrap(ctx context.Context) error {
	last, err := p.store.GetLastProcessedSlot(ctx, p.config.ChainID)
	if err != nil {
		return fmt.Errorf("read last processed slot: %w", err)
	}
	if last != nil {
		return nil
	}

	latestNum, err := p.client.GetLatestSlot(ctx)
	if err != nil {
		return fmt.Errorf("fetch latest slot: %w", err)
	}

	canonical, err := p.client.GetSlotByNumber(ctx, latestNum)
	if err != nil {
		return fmt.Errorf("fetch slot %d: %w", latestNum, err)
	}

	record := recordFromSlot(p.config.ChainID, canonical)
	if err := p.store.SaveSlot(ctx, record); err != nil {
		return fmt.Errorf("save bootstrap slot %d: %w", latestNum, err)
	}

	p.logger.Infow("bootstrapped chain tip", "slot", latestNum)
	return nil
}

func (p *Poller) run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.metrics.IncTick(p.chainLabel())
			if err := p.ProcessNextSlot(ctx); err != nil {
				p.logger.Errorw("tick failed", "error", err)
				p.metrics.IncTickError(p.chainLabel())
			}
		}
	}
}

// ProcessNextSlot runs exactly one forward-progress tick, per spec
// §4.3. It is exported so callers (tests, or a manual "catch up now"
// command) can drive a tick without waiting on the ticker.
func (p *Poller) ProcessNextSlot(ctx context.Context) error {
	last, err := p.store.GetLastProcessedSlot(ctx, p.config.ChainID)
	if err != nil {
		return fmt.Errorf("read last processed slot: %w", err)
	}
	if last == nil {
		return fmt.Errorf("no last processed slot for chain %d", p.config.ChainID)
	}

	latest, err := p.client.GetLatestSlot(ctx)
	if err != nil {
		return fmt.Errorf("fetch latest slot: %w", err)
	}
	if latest <= last.Slot {
		return nil
	}

	expectedParent := last.Slot
	for slotNum := last.Slot + 1; slotNum <= latest; slotNum++ {
		fetched, err := p.fetchSlot(ctx, slotNum)
		if err != nil {
			return fmt.Errorf("fetch slot %d: %w", slotNum, err)
		}

		parent := uint64(0)
		if fetched.Parent != nil {
			parent = *fetched.Parent
		}
		if parent != expectedParent {
			p.logger.Warnw("parent linkage mismatch, reconciling reorg",
				"slot", slotNum, "expected_parent", expectedParent, "actual_parent", parent)
			if err := p.reconcileReorg(ctx, fetched); err != nil {
				return fmt.Errorf("reconcile reorg at slot %d: %w", slotNum, err)
			}
			return nil
		}

		if err := p.sink.HandleSlot(ctx, fetched); err != nil {
			p.logger.Errorw("slot handler failed", "slot", slotNum, "error", err)
		}

		record, err := p.processSlotLogs(ctx, fetched)
		if err != nil {
			return fmt.Errorf("process logs for slot %d: %w", slotNum, err)
		}

		p.metrics.SetLastProcessedSlot(p.chainLabel(), record.Slot)
		p.pruneHistory(ctx, record.Slot)
		expectedParent = record.Slot
	}

	return nil
}

func (p *Poller) fetchSlot(ctx context.Context, slotNum uint64) (types.SolanaSlot, error) {
	start := time.Now()
	slot, err := p.client.GetSlotByNumber(ctx, slotNum)
	p.metrics.ObserveSlotFetch(p.chainLabel(), time.Since(start))
	return slot, err
}

// processSlotLogs fetches, decodes and dispatches every interesting
// program's logs for one slot, then persists the slot record, per spec
// §4.5. Any failure — fetch, decode, or handler — aborts the remaining
// work for this tick; slots already persisted earlier in the tick stay
// persisted.
func (p *Poller) processSlotLogs(ctx context.Context, slot types.SolanaSlot) (types.SlotRecord, error) {
	var logs []types.ProgramLog
	for _, program := range p.programs {
		programLogs, err := p.client.GetProgramLogs(ctx, program, slot.Slot, slot.Slot)
		if err != nil {
			return types.SlotRecord{}, fmt.Errorf("fetch logs for program %s: %w", program, err)
		}
		logs = append(logs, programLogs...)
	}

	for _, log := range logs {
		decoded, err := p.decoder.Decode(ctx, log.ProgramID, log)
		if err != nil {
			return types.SlotRecord{}, fmt.Errorf("decode log at index %d: %w", log.LogIndex, err)
		}
		lws := types.LogWithSlot{Log: decoded, RawLog: log, Slot: slot}
		if err := p.sink.HandleLog(ctx, lws); err != nil {
			return types.SlotRecord{}, fmt.Errorf("log handler: %w", err)
		}
	}

	record := recordFromSlot(p.config.ChainID, slot)
	if err := p.store.SaveSlot(ctx, record); err != nil {
		return types.SlotRecord{}, fmt.Errorf("save slot %d: %w", slot.Slot, err)
	}
	return record, nil
}

// pruneHistory deletes the single slot record exactly
// config.SlotHistorySize behind the newly processed slot; older records
// are not touched. A missing record is ignored; other failures are logged, not
// fatal — history retention is a bound, not a correctness requirement.
func (p *Poller) pruneHistory(ctx context.Context, processedSlot uint64) {
	if processedSlot <= p.config.SlotHistorySize {
		return
	}
	cutoff := processedSlot - p.config.SlotHistorySize
	if err := p.store.DeleteSlot(ctx, p.config.ChainID, cutoff); err != nil && !store.IsNotFound(err) {
		p.logger.Warnw("prune failed", "slot", cutoff, "error", err)
	}
}

// reconcileReorg walks back from startSlot.Slot-1 to find every
// orphaned ancestor, notifies the sink of each, and deletes them from
// persistence, per spec §4.4. Zero orphans found is itself an error —
// a failed parent-linkage check with nothing to reconcile means the
// search depth or the client's data is wrong — and it is returned to
// the caller as a tick error.
func (p *Poller) reconcileReorg(ctx context.Context, startSlot types.SolanaSlot) error {
	orphans, err := p.findOrphanedSlots(ctx, startSlot, p.config.MaxReorgDepth)
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		return fmt.Errorf("no orphaned slots found within max reorg depth %d", p.config.MaxReorgDepth)
	}

	p.metrics.IncReorg(p.chainLabel())
	p.metrics.AddOrphanedSlots(p.chainLabel(), len(orphans))

	for _, orphan := range orphans {
		p.sink.HandleReorgSlot(ctx, orphan.Slot)
		if err := p.store.DeleteSlot(ctx, p.config.ChainID, orphan.Slot); err != nil && !store.IsNotFound(err) {
			return fmt.Errorf("delete orphaned slot %d: %w", orphan.Slot, err)
		}
	}
	return nil
}

// findOrphanedSlots descends from startSlot.Slot-1 down to
// max(1, startSlot.Slot-maxDepth), comparing the canonical blockhash at
// each slot number against whatever is stored. A mismatch means the
// stored record was orphaned by the reorg; the walk continues past it.
// A match means the common ancestor has been found: the matching
// record is re-persisted idempotently and the walk stops.
func (p *Poller) findOrphanedSlots(ctx context.Context, startSlot types.SolanaSlot, maxDepth uint64) ([]types.SlotRecord, error) {
	var orphans []types.SlotRecord

	var lowerBound uint64 = 1
	if startSlot.Slot > maxDepth {
		lowerBound = startSlot.Slot - maxDepth
	}

	for n := startSlot.Slot - 1; n >= lowerBound; n-- {
		if n == 0 {
			break
		}

		canonical, err := p.client.GetSlotByNumber(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("fetch canonical slot %d: %w", n, err)
		}

		stored, err := p.store.GetSlot(ctx, p.config.ChainID, n)
		if err != nil {
			return nil, fmt.Errorf("read stored slot %d: %w", n, err)
		}

		var record types.SlotRecord
		if stored != nil {
			record = *stored
		} else {
			record = recordFromSlot(p.config.ChainID, canonical)
			if err := p.store.SaveSlot(ctx, record); err != nil {
				p.logger.Warnw("failed to materialize ancestor slot during reorg walk", "slot", n, "error", err)
			}
		}

		if canonical.Blockhash != record.Blockhash {
			orphans = append(orphans, record)
			if n == lowerBound {
				break
			}
			continue
		}

		record.Blockhash = canonical.Blockhash
		if err := p.store.SaveSlot(ctx, record); err != nil {
			return nil, fmt.Errorf("save common ancestor slot %d: %w", n, err)
		}
		return orphans, nil
	}

	p.logger.Warnw("reorg walk exhausted max depth without finding a common ancestor",
		"start_slot", startSlot.Slot, "max_depth", maxDepth)
	return orphans, nil
}

func recordFromSlot(chainID int64, slot types.SolanaSlot) types.SlotRecord {
	var parent, blockTime uint64
	if slot.Parent != nil {
		parent = *slot.Parent
	}
	if slot.BlockTime != nil {
		blockTime = *slot.BlockTime
	}
	return types.SlotRecord{
		ChainID:   chainID,
		Slot:      slot.Slot,
		Blockhash: slot.Blockhash,
		Parent:    parent,
		BlockTime: blockTime,
	}
}
