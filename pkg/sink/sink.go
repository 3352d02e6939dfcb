// Package sink defines the handler capability the poller core dispatches
// slot, log, and orphan-notification events to.
package sink

import (
	"context"

	"github.com/owizdom/solana-indexer/pkg/types"
)

// Sink is the handler capability required by the poller core, matching
// spec §6.3 exactly:
//   - HandleSlot errors are logged and swallowed by the core.
//   - HandleLog errors abort the current tick.
//   - HandleReorgSlot is infallible from the core's perspective.
type Sink interface {
	HandleSlot(ctx context.Context, slot types.SolanaSlot) error
	HandleLog(ctx context.Context, logWithSlot types.LogWithSlot) error
	HandleReorgSlot(ctx context.Context, slotNumber uint64)
}
