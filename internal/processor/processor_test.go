package processor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/geekxflood/common/logging"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekxflood/ndpsdecode/internal/capture"
	"github.com/geekxflood/ndpsdecode/internal/ndps"
	"github.com/geekxflood/ndpsdecode/internal/storage"
)

// mockConfigProvider implements the config.Provider interface for testing.
type mockConfigProvider struct {
	values map[string]any
}

func newMockConfigProvider() *mockConfigProvider {
	return &mockConfigProvider{values: map[string]any{}}
}

func (m *mockConfigProvider) GetString(path string, defaultValue ...string) (string, error) {
	if val, ok := m.values[path].(string); ok {
		return val, nil
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return "", fmt.Errorf("key not found: %s", path)
}

func (m *mockConfigProvider) GetInt(path string, defaultValue ...int) (int, error) {
	if val, ok := m.values[path].(int); ok {
		return val, nil
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("key not found: %s", path)
}

func (m *mockConfigProvider) GetFloat(path string, defaultValue ...float64) (float64, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("key not found: %s", path)
}

func (m *mockConfigProvider) GetBool(path string, defaultValue ...bool) (bool, error) {
	if val, ok := m.values[path].(bool); ok {
		return val, nil
	}
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return false, fmt.Errorf("key not found: %s", path)
}

func (m *mockConfigProvider) GetDuration(path string, defaultValue ...time.Duration) (time.Duration, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("key not found: %s", path)
}

func (m *mockConfigProvider) GetStringSlice(path string, defaultValue ...[]string) ([]string, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return nil, fmt.Errorf("key not found: %s", path)
}

func (m *mockConfigProvider) GetMap(path string) (map[string]any, error) {
	return nil, fmt.Errorf("key not found: %s", path)
}

func (m *mockConfigProvider) Exists(path string) bool {
	_, ok := m.values[path]
	return ok
}

func (m *mockConfigProvider) Validate() error {
	return nil
}

type recorder struct {
	mu      sync.Mutex
	decodes map[string]int
	partial int
	unknown []uint32
	stores  int
}

func newRecorder() *recorder {
	return &recorder{decodes: make(map[string]int)}
}

func (r *recorder) ObserveDecode(grammar, outcome string, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decodes[grammar+"/"+outcome]++
}

func (r *recorder) ObservePartialSequences(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partial += n
}

func (r *recorder) ObserveUnknownSyntax(tag uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unknown = append(r.unknown, tag)
}

func (r *recorder) ObserveStore(time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores++
}

type memStore struct {
	mu      sync.Mutex
	records []*storage.Record
	err     error
}

func (s *memStore) StoreRecord(r *storage.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.records = append(s.records, r)
	return int64(len(s.records)), nil
}

func createTestLogger() logging.Logger {
	logger, _, _ := logging.NewLogger(logging.Config{Level: "error", Format: "json"})
	return logger
}

func u32s(vals ...uint32) []byte {
	var b []byte
	for _, v := range vals {
		b = binary.BigEndian.AppendUint32(b, v)
	}
	return b
}

func TestNewProcessor(t *testing.T) {
	cfg := newMockConfigProvider()
	cfg.values["decoder.max_items"] = 7
	cfg.values["decoder.enable_storage"] = false

	p, err := NewProcessor(cfg, createTestLogger(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, p.GetConfig().MaxItems)
	assert.Equal(t, ndps.DefaultMaxDepth, p.GetConfig().MaxDepth)
	assert.False(t, p.GetConfig().EnableStorage)

	_, err = NewProcessor(nil, createTestLogger(), nil, nil)
	assert.Error(t, err)

	_, err = NewProcessor(cfg, nil, nil, nil)
	assert.Error(t, err)
}

func TestProcessOutcomes(t *testing.T) {
	testCases := []struct {
		name     string
		grammar  string
		data     []byte
		outcome  string
		consumed int
	}{
		{"boolean", "attribute-value", u32s(0x22, 1), OutcomeOK, 8},
		{"over-declared sequence", "attribute-value", u32s(0x0c, 5000, 1, 2), OutcomePartial, 16},
		{"unknown syntax", "attribute-value", u32s(0x99, 0), OutcomeUnknown, 4},
		{"truncated", "attribute-value", []byte{0, 0}, OutcomeTruncated, 0},
		{"bad grammar", "nonsense", u32s(1), OutcomeError, 0},
		{"agentx ping", GrammarAgentX, []byte{1, 13, 0x10, 0, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 0}, OutcomeOK, 20},
		{"agentx bad version", GrammarAgentX, []byte{2, 13, 0x10, 0, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 0}, OutcomeError, 0},
	}

	p, err := NewProcessor(newMockConfigProvider(), createTestLogger(), nil, nil)
	require.NoError(t, err)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := p.Process(context.Background(), Input{Source: "test", Grammar: tc.grammar, Data: tc.data})
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, res.Outcome)
			assert.Equal(t, tc.consumed, res.Consumed)
			assert.Equal(t, len(tc.data), res.InputSize)
			if tc.outcome == OutcomeError || tc.outcome == OutcomeTruncated {
				assert.NotEmpty(t, res.Error)
			} else {
				assert.Empty(t, res.Error)
			}
		})
	}

	stats := p.GetStats()
	assert.Equal(t, int64(len(testCases)), stats.Processed)
	assert.Equal(t, int64(2), stats.Outcomes[OutcomeError])
}

func TestProcessTooDeep(t *testing.T) {
	cfg := newMockConfigProvider()
	cfg.values["decoder.max_depth"] = 1

	p, err := NewProcessor(cfg, createTestLogger(), nil, nil)
	require.NoError(t, err)

	// criteria: absent attribute id, operator, then an unnamed integer attribute
	data := u32s(0x3e, 0, 0, 0, 0x0b, 1)
	res, err := p.Process(context.Background(), Input{Grammar: "attribute-value", Data: data})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTooDeep, res.Outcome)
	assert.True(t, errors.Is(res.Err, ndps.ErrNestingTooDeep))
}

func TestProcessOffset(t *testing.T) {
	p, err := NewProcessor(newMockConfigProvider(), createTestLogger(), nil, nil)
	require.NoError(t, err)

	data := append([]byte{0xff, 0xff, 0xff, 0xff}, u32s(0x22, 1)...)
	res, err := p.Process(context.Background(), Input{Grammar: "attribute-value", Data: data, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, 8, res.Consumed)
}

func TestProcessRecordsAndStores(t *testing.T) {
	rec := newRecorder()
	store := &memStore{}

	p, err := NewProcessor(newMockConfigProvider(), createTestLogger(), rec, store)
	require.NoError(t, err)

	res, err := p.Process(context.Background(), Input{Source: "a.hex", Grammar: "attribute-value", Data: u32s(0x0c, 5000, 1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RecordID)

	_, err = p.Process(context.Background(), Input{Source: "b.hex", Grammar: "attribute-value", Data: u32s(0x70)})
	require.NoError(t, err)

	assert.Equal(t, 1, rec.decodes["attribute-value/partial"])
	assert.Equal(t, 1, rec.decodes["attribute-value/unknown"])
	assert.Equal(t, 1, rec.partial)
	assert.Equal(t, []uint32{0x70}, rec.unknown)
	assert.Equal(t, 2, rec.stores)

	require.Len(t, store.records, 2)
	assert.Equal(t, "a.hex", store.records[0].Source)
	assert.Equal(t, OutcomePartial, store.records[0].Outcome)
	assert.Equal(t, storage.HashInput(u32s(0x0c, 5000, 1)), store.records[0].InputHash)
	assert.Contains(t, store.records[0].Tree, `"kind":"composite"`)

	store.err = errors.New("database is locked")
	res, err = p.Process(context.Background(), Input{Grammar: "oid", Data: u32s(0)})
	require.NoError(t, err)
	assert.Zero(t, res.RecordID)
	assert.Equal(t, int64(1), p.GetStats().StoreErrors)
}

func TestProcessorReload(t *testing.T) {
	p, err := NewProcessor(newMockConfigProvider(), createTestLogger(), nil, nil)
	require.NoError(t, err)

	in := Input{Grammar: "attribute-value", Data: u32s(0x0c, 3, 1, 2, 3)}
	res, err := p.Process(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome)

	cfg := newMockConfigProvider()
	cfg.values["decoder.max_items"] = 2
	cfg.values["decoder.workers"] = 1
	require.NoError(t, p.Reload(cfg))
	assert.Equal(t, 2, p.GetConfig().MaxItems)
	assert.Equal(t, 1, p.GetConfig().Workers)

	res, err = p.Process(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, OutcomePartial, res.Outcome)

	assert.Error(t, p.Reload(nil))
	assert.Equal(t, 2, p.GetConfig().MaxItems)
}

type busyStore struct {
	memStore
	busy int
}

func (s *busyStore) StoreRecord(r *storage.Record) (int64, error) {
	s.mu.Lock()
	if s.busy > 0 {
		s.busy--
		s.mu.Unlock()
		return 0, sqlite3.Error{Code: sqlite3.ErrBusy}
	}
	s.mu.Unlock()
	return s.memStore.StoreRecord(r)
}

func TestProcessRetriesBusyStore(t *testing.T) {
	store := &busyStore{busy: 2}

	p, err := NewProcessor(newMockConfigProvider(), createTestLogger(), nil, store)
	require.NoError(t, err)

	res, err := p.Process(context.Background(), Input{Grammar: "attribute-value", Data: u32s(0x22, 1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RecordID)

	stats := p.GetStats()
	assert.Equal(t, int64(1), stats.Stored)
	assert.Zero(t, stats.StoreErrors)
	require.NotNil(t, stats.StoreRetry)
	assert.Equal(t, int64(2), stats.StoreRetry.Retries)
	assert.Equal(t, "closed", stats.StoreRetry.CircuitState)
}

func TestProcessAll(t *testing.T) {
	p, err := NewProcessor(newMockConfigProvider(), createTestLogger(), nil, nil)
	require.NoError(t, err)

	inputs := make([]Input, 20)
	for i := range inputs {
		inputs[i] = Input{Source: fmt.Sprintf("in-%d", i), Grammar: "attribute-value", Data: u32s(0x0b, uint32(i))}
	}

	results, err := p.ProcessAll(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, results, len(inputs))
	for i, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, inputs[i].Source, res.Source)
		inner, _ := res.Tree.Field("value")
		assert.Equal(t, uint64(i), inner.Num)
	}
}

func TestProcessCancelled(t *testing.T) {
	p, err := NewProcessor(newMockConfigProvider(), createTestLogger(), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Process(ctx, Input{Grammar: "oid", Data: u32s(0)})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = p.ProcessAll(ctx, []Input{{Grammar: "oid", Data: u32s(0)}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeOK, Classify(ndps.Value{Kind: ndps.KindBoolean}, nil))
	assert.Equal(t, OutcomePartial, Classify(ndps.Value{Kind: ndps.KindSequence, Partial: true}, nil))
	assert.Equal(t, OutcomeUnknown, Classify(ndps.Value{
		Kind:    ndps.KindSequence,
		Partial: true,
		Items:   []ndps.Value{{Kind: ndps.KindUnknown}},
	}, nil))
	assert.Equal(t, OutcomeTruncated, Classify(ndps.Value{}, &ndps.DecodeError{Err: ndps.ErrTruncatedInput}))
	assert.Equal(t, OutcomeTooDeep, Classify(ndps.Value{}, fmt.Errorf("x: %w", ndps.ErrNestingTooDeep)))
	assert.Equal(t, OutcomeError, Classify(ndps.Value{}, errors.New("boom")))
}

func TestInputsFromCapture(t *testing.T) {
	assert.Nil(t, InputsFromCapture(nil, ""))

	hexCapture := &capture.Capture{
		Name:     "value.hex",
		Format:   capture.FormatHex,
		Segments: []capture.Segment{{Data: u32s(0x22, 1)}},
	}
	inputs := InputsFromCapture(hexCapture, "")
	require.Len(t, inputs, 1)
	assert.Equal(t, Input{Source: "value.hex", Grammar: DefaultGrammar, Data: u32s(0x22, 1)}, inputs[0])

	inputs = InputsFromCapture(hexCapture, "oid")
	assert.Equal(t, "oid", inputs[0].Grammar)

	pcapCapture := &capture.Capture{
		Name:   "trace.pcap",
		Format: capture.FormatPcap,
		Segments: []capture.Segment{
			{Index: 0, Source: "10.0.0.1:40000->10.0.0.2:705", Data: []byte{1}},
			{Index: 1, Source: "10.0.0.2:705->10.0.0.1:40000", Data: []byte{2}},
		},
	}
	inputs = InputsFromCapture(pcapCapture, "")
	require.Len(t, inputs, 2)
	assert.Equal(t, GrammarAgentX, inputs[0].Grammar)
	assert.Equal(t, "trace.pcap#1 10.0.0.2:705->10.0.0.1:40000", inputs[1].Source)
}
