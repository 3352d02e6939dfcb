package sink

import (
	"context"
	"fmt"

	"github.com/owizdom/solana-indexer/pkg/types"
)

// ChannelSink buffers decoded logs and observed/orphaned slot
// notifications onto channels for a downstream consumer to drain,
// mirroring the teacher SDK's Processor.Logs(chainId) read-only-channel
// accessor.
type ChannelSink struct {
	logs   chan types.LogWithSlot
	slots  chan types.SolanaSlot
	orphan chan uint64
}

// NewChannelSink builds a ChannelSink with the given per-channel buffer
// size. A size of 0 yields unbuffered channels.
func NewChannelSink(bufferSize int) *ChannelSink {
	return &ChannelSink{
		logs:   make(chan types.LogWithSlot, bufferSize),
		slots:  make(chan types.SolanaSlot, bufferSize),
		orphan: make(chan uint64, bufferSize),
	}
}

// Logs returns the read-only channel of decoded logs.
func (c *ChannelSink) Logs() <-chan types.LogWithSlot {
	return c.logs
}

// Slots returns the read-only channel of observed slots.
func (c *ChannelSink) Slots() <-chan types.SolanaSlot {
	return c.slots
}

// OrphanedSlots returns the read-only channel of orphaned slot numbers.
func (c *ChannelSink) OrphanedSlots() <-chan uint64 {
	return c.orphan
}

func (c *ChannelSink) HandleSlot(ctx context.Context, slot types.SolanaSlot) error {
	select {
	case c.slots <- slot:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("handle slot %d: %w", slot.Slot, ctx.Err())
	}
}

func (c *ChannelSink) HandleLog(ctx context.Context, logWithSlot types.LogWithSlot) error {
	select {
	case c.logs <- logWithSlot:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("handle log at slot %d: %w", logWithSlot.Slot.Slot, ctx.Err())
	}
}

func (c *ChannelSink) HandleReorgSlot(ctx context.Context, slotNumber uint64) {
	select {
	case c.orphan <- slotNumber:
	case <-ctx.Done():
	}
}
