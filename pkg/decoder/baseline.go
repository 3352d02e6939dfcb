package decoder

import (
	"context"
	"strings"

	"github.com/owizdom/solana-indexer/pkg/types"
)

const programLogPrefix = "Program log: "

// BaselineDecoder implements the decoder contract of spec §4.6:
// "Program log: " lines decode to a single string "message" argument
// named ProgramLog; everything else decodes to a single string "raw"
// argument named Unknown.
type BaselineDecoder struct{}

// NewBaselineDecoder builds the baseline decoder.
func NewBaselineDecoder() *BaselineDecoder {
	return &BaselineDecoder{}
}

func (d *BaselineDecoder) Decode(_ context.Context, programID string, log types.ProgramLog) (types.DecodedLog, error) {
	if rest, ok := strings.CutPrefix(log.LogMessage, programLogPrefix); ok {
		return types.DecodedLog{
			Address:   programID,
			LogIndex:  log.LogIndex,
			EventName: "ProgramLog",
			Arguments: []types.Argument{
				{Name: "message", Type: "string", Value: rest, Indexed: false},
			},
			OutputData: map[string]any{"message": rest},
		}, nil
	}

	return types.DecodedLog{
		Address:   programID,
		LogIndex:  log.LogIndex,
		EventName: "Unknown",
		Arguments: []types.Argument{
			{Name: "raw", Type: "string", Value: log.LogMessage, Indexed: false},
		},
		OutputData: map[string]any{"raw": log.LogMessage},
	}, nil
}
