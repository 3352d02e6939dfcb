package sink

import (
	"context"

	"github.com/owizdom/solana-indexer/pkg/types"
)

// FanoutSink dispatches every event to a fixed, ordered list of
// sub-sinks. Iteration is a plain slice walk in registration order, not
// an errgroup fan-out: HandleLog errors must abort the pipeline per
// spec §4.5, so the first failing sub-sink must stop delivery to the
// rest rather than racing them.
type FanoutSink struct {
	sinks []Sink
}

// NewFanoutSink builds a FanoutSink dispatching to sinks in order.
func NewFanoutSink(sinks ...Sink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

func (f *FanoutSink) HandleSlot(ctx context.Context, slot types.SolanaSlot) error {
	for _, s := range f.sinks {
		if err := s.HandleSlot(ctx, slot); err != nil {
			return err
		}
	}
	return nil
}

func (f *FanoutSink) HandleLog(ctx context.Context, logWithSlot types.LogWithSlot) error {
	for _, s := range f.sinks {
		if err := s.HandleLog(ctx, logWithSlot); err != nil {
			return err
		}
	}
	return nil
}

func (f *FanoutSink) HandleReorgSlot(ctx context.Context, slotNumber uint64) {
	for _, s := range f.sinks {
		s.HandleReorgSlot(ctx, slotNumber)
	}
}
