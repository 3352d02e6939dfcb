// Package types holds the wire and storage data model shared by every
// poller collaborator: the chain client, persistence, the log decoder and
// the handler sink.
package types

// SlotRecord is the unit of persisted chain state for a single chain_id.
//
// Persistence holds at most one SlotRecord per (ChainID, Slot). The
// invariant the poller relies on is that for any two consecutive records
// it advances through, the later record's Parent equals the earlier
// record's Slot at the time of write; a violation discovered on read is
// exactly the reorg trigger.
type SlotRecord struct {
	ChainID   int64
	Slot      uint64
	Blockhash string
	Parent    uint64
	BlockTime uint64
}

// SolanaSlot is the transient value returned by the chain client for a
// single slot. Parent and BlockTime may be absent on the wire; callers
// treat a nil pointer as "unknown" and default it to zero when building a
// SlotRecord from it.
type SolanaSlot struct {
	ChainID      int64
	Slot         uint64
	Blockhash    string
	Parent       *uint64
	BlockTime    *uint64
	Transactions []SolanaTransaction
}

// SolanaTransaction is a single transaction inside a fetched slot. The
// poller core never inspects transaction contents (spec Non-goal: no
// transaction-level introspection beyond per-program log lines) — this
// type exists only so SolanaSlot can round-trip what the RPC endpoint
// returns.
type SolanaTransaction struct {
	Signature   string
	Slot        uint64
	BlockTime   *uint64
	Fee         uint64
	Success     bool
	AccountKeys []string
	ProgramIDs  []string
	LogMessages []string
}

// ProgramLog is a single raw log line scoped to one program within one
// slot.
type ProgramLog struct {
	ProgramID        string
	Signature        string
	Slot             uint64
	LogIndex         uint64
	LogMessage       string
	InstructionIndex uint64
}

// Argument is one decoded field of a DecodedLog, in declaration order.
type Argument struct {
	Name    string
	Type    string
	Value   any
	Indexed bool
}

// DecodedLog is the structured output of a Decoder applied to one
// ProgramLog.
type DecodedLog struct {
	Address    string
	LogIndex   uint64
	EventName  string
	Arguments  []Argument
	OutputData map[string]any
}

// LogWithSlot is the handler dispatch envelope carrying a decoded log
// alongside the raw log and the slot it was observed in.
type LogWithSlot struct {
	Log    DecodedLog
	RawLog ProgramLog
	Slot   SolanaSlot
}

// EventFields is the name->value map produced by decoding an Anchor
// program-data log (see pkg/decoder's AnchorDecoder).
type EventFields map[string]any

// Event is the structured result of decoding an Anchor "Program data: "
// log line. It is carried inside DecodedLog.OutputData under the
// "event" key when the AnchorDecoder recognizes the payload; it is not
// part of the baseline §4.6 decoder contract.
type Event struct {
	Address   string
	LogIndex  uint64
	EventName string
	Fields    EventFields
}
