// Package decoder turns raw program log lines into structured events.
package decoder

import (
	"context"

	"github.com/owizdom/solana-indexer/pkg/types"
)

// Decoder is the log-decoder capability the poller core needs.
type Decoder interface {
	Decode(ctx context.Context, programID string, log types.ProgramLog) (types.DecodedLog, error)
}
