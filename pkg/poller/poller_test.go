package poller

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owizdom/solana-indexer/pkg/perrors"
	"github.com/owizdom/solana-indexer/pkg/types"
)

// fakeClient is a hand-built rpc.Client double. slots is keyed by slot
// number and mutated directly by tests to script reorgs.
type fakeClient struct {
	latest uint64
	slots  map[uint64]types.SolanaSlot
	logs   map[string][]types.ProgramLog

	getLatestErr  error
	getSlotErr    error
	getLogsErr    error
	getSlotCalls  int
	getLogsCalls  int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		slots: make(map[uint64]types.SolanaSlot),
		logs:  make(map[string][]types.ProgramLog),
	}
}

func (f *fakeClient) GetLatestSlot(context.Context) (uint64, error) {
	return f.latest, f.getLatestErr
}

func (f *fakeClient) GetSlotByNumber(_ context.Context, slotNumber uint64) (types.SolanaSlot, error) {
	f.getSlotCalls++
	if f.getSlotErr != nil {
		return types.SolanaSlot{}, f.getSlotErr
	}
	slot, ok := f.slots[slotNumber]
	if !ok {
		return types.SolanaSlot{}, errors.New("fake: unknown slot")
	}
	return slot, nil
}

func (f *fakeClient) GetProgramLogs(_ context.Context, programID string, fromSlot, _ uint64) ([]types.ProgramLog, error) {
	f.getLogsCalls++
	if f.getLogsErr != nil {
		return nil, f.getLogsErr
	}
	return f.logs[key(programID, fromSlot)], nil
}

func key(programID string, slot uint64) string {
	return programID + ":" + strconv.FormatUint(slot, 10)
}

func ptr(v uint64) *uint64 { return &v }

func addSlot(f *fakeClient, slotNum uint64, blockhash string, parent uint64) {
	f.slots[slotNum] = types.SolanaSlot{
		Slot:      slotNum,
		Blockhash: blockhash,
		Parent:    ptr(parent),
		BlockTime: ptr(slotNum * 1000),
	}
}

// fakeStore is a minimal in-memory store double, separate from
// pkg/store's InMemoryStore so poller tests don't depend on another
// package's internal persistence semantics beyond the Persistence
// interface itself.
type fakeStore struct {
	slots         map[uint64]types.SlotRecord
	lastProcessed uint64
	hasLast       bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{slots: make(map[uint64]types.SlotRecord)}
}

func (s *fakeStore) GetLastProcessedSlot(_ context.Context, _ int64) (*types.SlotRecord, error) {
	if !s.hasLast {
		return nil, nil
	}
	record := s.slots[s.lastProcessed]
	return &record, nil
}

func (s *fakeStore) SaveSlot(_ context.Context, record types.SlotRecord) error {
	s.slots[record.Slot] = record
	s.lastProcessed = record.Slot
	s.hasLast = true
	return nil
}

func (s *fakeStore) GetSlot(_ context.Context, _ int64, slotNumber uint64) (*types.SlotRecord, error) {
	record, ok := s.slots[slotNumber]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *fakeStore) DeleteSlot(_ context.Context, _ int64, slotNumber uint64) error {
	if _, ok := s.slots[slotNumber]; !ok {
		return perrors.ErrNotFound
	}
	delete(s.slots, slotNumber)
	return nil
}

func (s *fakeStore) Close(context.Context) error { return nil }

// fakeSink records every dispatched event.
type fakeSink struct {
	slots       []types.SolanaSlot
	logs        []types.LogWithSlot
	orphanSlots []uint64

	failOnLog  bool
	failOnSlot bool
}

func (s *fakeSink) HandleSlot(_ context.Context, slot types.SolanaSlot) error {
	s.slots = append(s.slots, slot)
	if s.failOnSlot {
		return errors.New("fake: handler rejected slot")
	}
	return nil
}

func (s *fakeSink) HandleLog(_ context.Context, lws types.LogWithSlot) error {
	if s.failOnLog {
		return errors.New("fake: handler rejected log")
	}
	s.logs = append(s.logs, lws)
	return nil
}

func (s *fakeSink) HandleReorgSlot(_ context.Context, slotNumber uint64) {
	s.orphanSlots = append(s.orphanSlots, slotNumber)
}

// passthroughDecoder returns a deterministic DecodedLog without
// inspecting the raw log, keeping poller tests focused on the state
// machine rather than decode semantics (covered in pkg/decoder).
type passthroughDecoder struct{ failOn uint64 }

func (d passthroughDecoder) Decode(_ context.Context, _ string, log types.ProgramLog) (types.DecodedLog, error) {
	if d.failOn != 0 && log.LogIndex == d.failOn {
		return types.DecodedLog{}, errors.New("fake: decode failed")
	}
	return types.DecodedLog{EventName: "Unknown", OutputData: map[string]any{"raw": log.LogMessage}}, nil
}

func baseConfig() Config {
	return Config{
		ChainID:             7,
		PollingInterval:     time.Millisecond,
		InterestingPrograms: []string{"ProgA"},
		MaxReorgDepth:       5,
		SlotHistorySize:     3,
	}
}

func TestNormalize_ZeroValueDefaults(t *testing.T) {
	cfg := normalize(Config{MaxReorgDepth: 0, SlotHistorySize: 0})
	assert.Equal(t, uint64(10), cfg.MaxReorgDepth)
	assert.Equal(t, uint64(100), cfg.SlotHistorySize)
	assert.True(t, cfg.ReorgCheckEnabled)
}

func TestNormalize_PreservesNonZero(t *testing.T) {
	cfg := normalize(Config{MaxReorgDepth: 2, SlotHistorySize: 50})
	assert.Equal(t, uint64(2), cfg.MaxReorgDepth)
	assert.Equal(t, uint64(50), cfg.SlotHistorySize)
}

func TestEffectivePrograms_DropsEmptyAndLowercases(t *testing.T) {
	got := effectivePrograms([]string{"ProgA", "", "progB"})
	assert.Equal(t, []string{"proga", "progb"}, got)
}

func TestPoller_Bootstrap_SeedsChainTip(t *testing.T) {
	client := newFakeClient()
	client.latest = 100
	addSlot(client, 100, "hash-100", 99)

	st := newFakeStore()
	p := NewPoller(client, passthroughDecoder{}, st, &fakeSink{}, baseConfig(), nil, nil)

	require.NoError(t, p.bootstrap(context.Background()))
	last, err := st.GetLastProcessedSlot(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, uint64(100), last.Slot)
}

func TestPoller_Bootstrap_NoOpWhenAlreadySeeded(t *testing.T) {
	client := newFakeClient()
	st := newFakeStore()
	require.NoError(t, st.SaveSlot(context.Background(), types.SlotRecord{ChainID: 7, Slot: 50, Blockhash: "h50"}))

	p := NewPoller(client, passthroughDecoder{}, st, &fakeSink{}, baseConfig(), nil, nil)
	require.NoError(t, p.bootstrap(context.Background()))
	assert.Zero(t, client.getSlotCalls)
}

func TestPoller_ProcessNextSlot_NoNewSlots(t *testing.T) {
	client := newFakeClient()
	client.latest = 50
	st := newFakeStore()
	require.NoError(t, st.SaveSlot(context.Background(), types.SlotRecord{ChainID: 7, Slot: 50, Blockhash: "h50"}))

	p := NewPoller(client, passthroughDecoder{}, st, &fakeSink{}, baseConfig(), nil, nil)
	require.NoError(t, p.ProcessNextSlot(context.Background()))
}

func TestPoller_ProcessNextSlot_AdvancesOneSlot(t *testing.T) {
	client := newFakeClient()
	client.latest = 51
	addSlot(client, 51, "h51", 50)
	client.logs[key("proga", 51)] = []types.ProgramLog{
		{ProgramID: "proga", Slot: 51, LogIndex: 1, LogMessage: "Program log: hi"},
	}

	st := newFakeStore()
	require.NoError(t, st.SaveSlot(context.Background(), types.SlotRecord{ChainID: 7, Slot: 50, Blockhash: "h50"}))

	snk := &fakeSink{}
	p := NewPoller(client, passthroughDecoder{}, st, snk, baseConfig(), nil, nil)

	require.NoError(t, p.ProcessNextSlot(context.Background()))
	last, err := st.GetLastProcessedSlot(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(51), last.Slot)
	assert.Len(t, snk.slots, 1)
	assert.Len(t, snk.logs, 1)
}

func TestPoller_ProcessNextSlot_HandleSlotErrorIsSwallowed(t *testing.T) {
	client := newFakeClient()
	client.latest = 51
	addSlot(client, 51, "h51", 50)

	st := newFakeStore()
	require.NoError(t, st.SaveSlot(context.Background(), types.SlotRecord{ChainID: 7, Slot: 50, Blockhash: "h50"}))

	snk := &fakeSink{failOnSlot: true}
	p := NewPoller(client, passthroughDecoder{}, st, snk, baseConfig(), nil, nil)
	// HandleSlot returns an error for slot 51; the tick must still
	// succeed and persist the record (no logs scripted for slot 51).
	require.NoError(t, p.ProcessNextSlot(context.Background()))
	last, err := st.GetLastProcessedSlot(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(51), last.Slot)
}

func TestPoller_ProcessNextSlot_HandleLogErrorAbortsTick(t *testing.T) {
	client := newFakeClient()
	client.latest = 51
	addSlot(client, 51, "h51", 50)
	client.logs[key("proga", 51)] = []types.ProgramLog{
		{ProgramID: "proga", Slot: 51, LogIndex: 1, LogMessage: "Program log: hi"},
	}

	st := newFakeStore()
	require.NoError(t, st.SaveSlot(context.Background(), types.SlotRecord{ChainID: 7, Slot: 50, Blockhash: "h50"}))

	snk := &fakeSink{failOnLog: true}
	p := NewPoller(client, passthroughDecoder{}, st, snk, baseConfig(), nil, nil)

	err := p.ProcessNextSlot(context.Background())
	require.Error(t, err)
	// the slot 51 record must not have been persisted since the log
	// handler aborted processSlotLogs before SaveSlot.
	last, lastErr := st.GetLastProcessedSlot(context.Background(), 7)
	require.NoError(t, lastErr)
	assert.Equal(t, uint64(50), last.Slot)
}

func TestPoller_ProcessNextSlot_ReorgDetectedAndReconciled(t *testing.T) {
	client := newFakeClient()
	// stored history: 48 <- 49 <- 50, all on the stale fork.
	st := newFakeStore()
	require.NoError(t, st.SaveSlot(context.Background(), types.SlotRecord{ChainID: 7, Slot: 48, Blockhash: "stale-48", Parent: 47}))
	require.NoError(t, st.SaveSlot(context.Background(), types.SlotRecord{ChainID: 7, Slot: 49, Blockhash: "stale-49", Parent: 48}))
	require.NoError(t, st.SaveSlot(context.Background(), types.SlotRecord{ChainID: 7, Slot: 50, Blockhash: "stale-50", Parent: 49}))

	// canonical fork: 48 is the common ancestor (same hash), 49 and 50
	// carry different content, and the new tip at 51 skipped straight
	// from 49 — the slot-number gap (51's parent is 49, not the
	// expected 50) is what the forward check trips on.
	client.latest = 51
	addSlot(client, 48, "stale-48", 47)
	addSlot(client, 49, "canon-49", 48)
	addSlot(client, 50, "canon-50", 49)
	addSlot(client, 51, "canon-51", 49)

	snk := &fakeSink{}
	cfg := baseConfig()
	cfg.MaxReorgDepth = 5
	p := NewPoller(client, passthroughDecoder{}, st, snk, cfg, nil, nil)

	require.NoError(t, p.ProcessNextSlot(context.Background()))

	assert.ElementsMatch(t, []uint64{49, 50}, snk.orphanSlots)
	rec49, err := st.GetSlot(context.Background(), 7, 49)
	require.NoError(t, err)
	assert.Nil(t, rec49)
	rec48, err := st.GetSlot(context.Background(), 7, 48)
	require.NoError(t, err)
	require.NotNil(t, rec48)
	assert.Equal(t, "stale-48", rec48.Blockhash)
}

func TestPoller_ReconcileReorg_NoOrphansIsError(t *testing.T) {
	client := newFakeClient()
	st := newFakeStore()
	// stored slot 50 already matches canonical, so a "reorg" trigger at
	// slot 51 that claims an unrelated parent (999) has nothing to
	// reconcile — this represents a client/data inconsistency and must
	// surface as an error.
	require.NoError(t, st.SaveSlot(context.Background(), types.SlotRecord{ChainID: 7, Slot: 50, Blockhash: "h50", Parent: 49}))
	addSlot(client, 50, "h50", 49)

	snk := &fakeSink{}
	cfg := baseConfig()
	cfg.MaxReorgDepth = 1
	p := NewPoller(client, passthroughDecoder{}, st, snk, cfg, nil, nil)

	start := types.SolanaSlot{Slot: 51, Blockhash: "new-51", Parent: ptr(999)}
	err := p.reconcileReorg(context.Background(), start)
	require.Error(t, err)
}

func TestPoller_FindOrphanedSlots_StopsAtSlotOne(t *testing.T) {
	client := newFakeClient()
	st := newFakeStore()
	addSlot(client, 1, "h1", 0)
	addSlot(client, 2, "h2", 1)

	p := NewPoller(client, passthroughDecoder{}, st, &fakeSink{}, baseConfig(), nil, nil)
	start := types.SolanaSlot{Slot: 2, Blockhash: "mismatch", Parent: ptr(0)}

	orphans, err := p.findOrphanedSlots(context.Background(), start, 100)
	require.NoError(t, err)
	// slot 1 has no stored record and matches canonical once
	// materialized, so it becomes the common ancestor with zero
	// orphans accumulated.
	assert.Empty(t, orphans)
}

func TestPoller_PruneHistory_DeletesBeyondWindow(t *testing.T) {
	client := newFakeClient()
	st := newFakeStore()
	require.NoError(t, st.SaveSlot(context.Background(), types.SlotRecord{ChainID: 7, Slot: 10, Blockhash: "h10"}))

	cfg := baseConfig()
	cfg.SlotHistorySize = 3
	p := NewPoller(client, passthroughDecoder{}, st, &fakeSink{}, cfg, nil, nil)

	p.pruneHistory(context.Background(), 13)
	_, err := st.GetSlot(context.Background(), 7, 10)
	require.NoError(t, err)
	rec, _ := st.GetSlot(context.Background(), 7, 10)
	assert.Nil(t, rec)
}
