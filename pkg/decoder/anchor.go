package decoder

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/owizdom/solana-indexer/pkg/types"
)

const programDataPrefix = "Program data: "

// EventField describes one field of a registered Anchor event, decoded
// in declaration order from the Borsh-encoded payload that follows the
// 8-byte discriminator.
type EventField struct {
	Name string
	Type string // one of: u8, u16, u32, u64, i64, bool, publicKey, string
}

type registeredEvent struct {
	name   string
	fields []EventField
}

// AnchorDecoder recognizes Anchor "Program data: " CPI event logs,
// matches the leading 8-byte discriminator against a registered event
// table, and decodes the Borsh payload. Anything it does not recognize
// (including every baseline "Program log: "/other line) falls through
// to a wrapped fallback decoder, so AnchorDecoder can compose with
// BaselineDecoder the same way rpc.RetryWithBackoff decorates a raw
// call.
//
// This supplements, rather than replaces, the baseline §4.6 contract:
// it never changes the event_name/arguments a "Program log: " line
// produces.
type AnchorDecoder struct {
	mu       sync.RWMutex
	fallback Decoder
	events   map[string]map[[8]byte]registeredEvent // programID -> discriminator -> event
}

// NewAnchorDecoder wraps fallback (use NewBaselineDecoder() for the
// spec-required baseline behavior on anything not a recognized Anchor
// event).
func NewAnchorDecoder(fallback Decoder) *AnchorDecoder {
	return &AnchorDecoder{
		fallback: fallback,
		events:   make(map[string]map[[8]byte]registeredEvent),
	}
}

// discriminator computes Anchor's 8-byte event-type tag: the leading 8
// bytes of sha256("event:" + name).
func discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("event:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// RegisterEvent registers the Borsh field layout for an Anchor event
// named name emitted by programID.
func (d *AnchorDecoder) RegisterEvent(programID, name string, fields []EventField) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.events[programID] == nil {
		d.events[programID] = make(map[[8]byte]registeredEvent)
	}
	d.events[programID][discriminator(name)] = registeredEvent{name: name, fields: fields}
}

func (d *AnchorDecoder) Decode(ctx context.Context, programID string, log types.ProgramLog) (types.DecodedLog, error) {
	rest, ok := strings.CutPrefix(log.LogMessage, programDataPrefix)
	if !ok {
		return d.fallback.Decode(ctx, programID, log)
	}

	payload, err := base64.StdEncoding.DecodeString(rest)
	if err != nil || len(payload) < 8 {
		return d.fallback.Decode(ctx, programID, log)
	}

	d.mu.RLock()
	byDisc := d.events[programID]
	d.mu.RUnlock()
	if byDisc == nil {
		return d.fallback.Decode(ctx, programID, log)
	}

	var disc [8]byte
	copy(disc[:], payload[:8])
	evt, ok := byDisc[disc]
	if !ok {
		return d.fallback.Decode(ctx, programID, log)
	}

	fields, err := decodeBorshFields(payload[8:], evt.fields)
	if err != nil {
		return types.DecodedLog{}, fmt.Errorf("decode anchor event %s: %w", evt.name, err)
	}

	args := make([]types.Argument, 0, len(evt.fields))
	output := make(map[string]any, len(evt.fields))
	for _, f := range evt.fields {
		v := fields[f.Name]
		args = append(args, types.Argument{Name: f.Name, Type: f.Type, Value: v, Indexed: false})
		output[f.Name] = v
	}
	output["event"] = types.Event{
		Address:   programID,
		LogIndex:  log.LogIndex,
		EventName: evt.name,
		Fields:    fields,
	}

	return types.DecodedLog{
		Address:    programID,
		LogIndex:   log.LogIndex,
		EventName:  evt.name,
		Arguments:  args,
		OutputData: output,
	}, nil
}

func decodeBorshFields(data []byte, fields []EventField) (types.EventFields, error) {
	out := make(types.EventFields, len(fields))
	offset := 0

	for _, f := range fields {
		switch f.Type {
		case "u8":
			if offset+1 > len(data) {
				return nil, fmt.Errorf("field %s: short u8", f.Name)
			}
			out[f.Name] = data[offset]
			offset += 1
		case "u16":
			if offset+2 > len(data) {
				return nil, fmt.Errorf("field %s: short u16", f.Name)
			}
			out[f.Name] = binary.LittleEndian.Uint16(data[offset:])
			offset += 2
		case "u32":
			if offset+4 > len(data) {
				return nil, fmt.Errorf("field %s: short u32", f.Name)
			}
			out[f.Name] = binary.LittleEndian.Uint32(data[offset:])
			offset += 4
		case "u64":
			if offset+8 > len(data) {
				return nil, fmt.Errorf("field %s: short u64", f.Name)
			}
			out[f.Name] = binary.LittleEndian.Uint64(data[offset:])
			offset += 8
		case "i64":
			if offset+8 > len(data) {
				return nil, fmt.Errorf("field %s: short i64", f.Name)
			}
			out[f.Name] = int64(binary.LittleEndian.Uint64(data[offset:]))
			offset += 8
		case "bool":
			if offset+1 > len(data) {
				return nil, fmt.Errorf("field %s: short bool", f.Name)
			}
			out[f.Name] = data[offset] != 0
			offset += 1
		case "publicKey":
			if offset+32 > len(data) {
				return nil, fmt.Errorf("field %s: short publicKey", f.Name)
			}
			out[f.Name] = solana.PublicKeyFromBytes(data[offset : offset+32]).String()
			offset += 32
		case "string":
			if offset+4 > len(data) {
				return nil, fmt.Errorf("field %s: short string length", f.Name)
			}
			l := binary.LittleEndian.Uint32(data[offset:])
			offset += 4
			if offset+int(l) > len(data) {
				return nil, fmt.Errorf("field %s: short string body", f.Name)
			}
			out[f.Name] = string(data[offset : offset+int(l)])
			offset += int(l)
		default:
			return nil, fmt.Errorf("field %s: unsupported type %q", f.Name, f.Type)
		}
	}

	return out, nil
}
