// Package rpc defines the chain-client capability the poller core needs
// and provides a concrete Solana JSON-RPC implementation with built-in
// retry. The package records no Prometheus metrics itself.
package rpc

import (
	"context"

	"github.com/owizdom/solana-indexer/pkg/types"
)

// Client is the chain-client capability required by the poller core.
// Test doubles implement this directly; production code uses
// SolanaClient, which retries every call internally.
type Client interface {
	// GetLatestSlot returns the latest committed slot number at the
	// client's configured commitment level.
	GetLatestSlot(ctx context.Context) (uint64, error)

	// GetSlotByNumber fetches the canonical slot at slotNumber. The
	// returned value's Slot field is guaranteed to equal slotNumber.
	GetSlotByNumber(ctx context.Context, slotNumber uint64) (types.SolanaSlot, error)

	// GetProgramLogs returns log lines emitted by programID within the
	// inclusive slot range [fromSlot, toSlot].
	GetProgramLogs(ctx context.Context, programID string, fromSlot, toSlot uint64) ([]types.ProgramLog, error)
}
