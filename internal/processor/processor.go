// Package processor runs inputs through the decoders and hands the results to
// metrics and the decode history.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"

	"github.com/geekxflood/ndpsdecode/internal/agentx"
	"github.com/geekxflood/ndpsdecode/internal/ndps"
	"github.com/geekxflood/ndpsdecode/internal/retry"
	"github.com/geekxflood/ndpsdecode/internal/storage"
)

// GrammarAgentX selects the AgentX PDU decoder instead of an NDPS grammar.
const GrammarAgentX = "agentx"

// Decode outcomes
const (
	OutcomeOK        = "ok"
	OutcomePartial   = "partial"
	OutcomeUnknown   = "unknown"
	OutcomeTruncated = "truncated"
	OutcomeTooDeep   = "too_deep"
	OutcomeError     = "error"
)

// Recorder receives decode observations.
type Recorder interface {
	ObserveDecode(grammar, outcome string, inputBytes int, elapsed time.Duration)
	ObservePartialSequences(n int)
	ObserveUnknownSyntax(tag uint32)
	ObserveStore(elapsed time.Duration, err error)
}

// Store persists decode records.
type Store interface {
	StoreRecord(r *storage.Record) (int64, error)
}

// ProcessorConfig holds configuration for the processor
type ProcessorConfig struct {
	MaxItems      int  `json:"max_items"`
	MaxDepth      int  `json:"max_depth"`
	MaxVarbinds   int  `json:"max_varbinds"`
	EnableStorage bool `json:"enable_storage"`
	StoreTrees    bool `json:"store_trees"`
	Workers       int  `json:"workers"`
}

// DefaultProcessorConfig returns a default processor configuration
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{
		MaxItems:      ndps.MaxItems,
		MaxDepth:      ndps.DefaultMaxDepth,
		MaxVarbinds:   agentx.MaxVarbinds,
		EnableStorage: true,
		StoreTrees:    true,
		Workers:       4,
	}
}

// Input is one byte string to decode.
type Input struct {
	Source  string `json:"source"`
	Grammar string `json:"grammar"`
	Data    []byte `json:"-"`
	Offset  int    `json:"offset"`
}

// Result is the outcome of decoding one Input.
type Result struct {
	Source    string        `json:"source"`
	Grammar   string        `json:"grammar"`
	Outcome   string        `json:"outcome"`
	Tree      ndps.Value    `json:"tree"`
	Offset    int           `json:"offset"`
	Consumed  int           `json:"consumed"`
	InputSize int           `json:"input_size"`
	Error     string        `json:"error,omitempty"`
	Err       error         `json:"-"`
	RecordID  int64         `json:"record_id,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// ProcessorStats tracks processor statistics
type ProcessorStats struct {
	Processed        int64             `json:"processed"`
	Stored           int64             `json:"stored"`
	StoreErrors      int64             `json:"store_errors"`
	Outcomes         map[string]int64  `json:"outcomes"`
	TotalProcessTime time.Duration     `json:"total_process_time"`
	StoreRetry       *retry.RetryStats `json:"store_retry,omitempty"`
}

// Processor decodes inputs and records the results.
type Processor struct {
	config   *ProcessorConfig
	logger   logging.Logger
	ndps     *ndps.Decoder
	agentx   *agentx.Decoder
	recorder Recorder
	store    Store
	retryer  *retry.Retryer
	stats    *ProcessorStats
	mu       sync.RWMutex
}

// NewProcessor creates a processor. recorder and store may be nil.
func NewProcessor(cfg config.Provider, logger logging.Logger, recorder Recorder, store Store) (*Processor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	processorConfig, err := loadProcessorConfig(cfg)
	if err != nil {
		return nil, err
	}

	retryer, err := retry.NewRetryer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create store retryer: %w", err)
	}

	return &Processor{
		config: processorConfig,
		logger: logger.With("component", "processor"),
		ndps: ndps.NewDecoder(ndps.Options{
			MaxItems: processorConfig.MaxItems,
			MaxDepth: processorConfig.MaxDepth,
		}),
		agentx:   agentx.NewDecoder(processorConfig.MaxVarbinds),
		recorder: recorder,
		store:    store,
		retryer:  retryer,
		stats:    &ProcessorStats{Outcomes: make(map[string]int64)},
	}, nil
}

func loadProcessorConfig(cfg config.Provider) (*ProcessorConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration provider cannot be nil")
	}

	processorConfig := DefaultProcessorConfig()

	if maxItems, err := cfg.GetInt("decoder.max_items", processorConfig.MaxItems); err == nil && maxItems > 0 {
		processorConfig.MaxItems = maxItems
	}

	if maxDepth, err := cfg.GetInt("decoder.max_depth", processorConfig.MaxDepth); err == nil && maxDepth > 0 {
		processorConfig.MaxDepth = maxDepth
	}

	if maxVarbinds, err := cfg.GetInt("decoder.max_varbinds", processorConfig.MaxVarbinds); err == nil && maxVarbinds > 0 {
		processorConfig.MaxVarbinds = maxVarbinds
	}

	if enable, err := cfg.GetBool("decoder.enable_storage", processorConfig.EnableStorage); err == nil {
		processorConfig.EnableStorage = enable
	}

	if trees, err := cfg.GetBool("decoder.store_trees", processorConfig.StoreTrees); err == nil {
		processorConfig.StoreTrees = trees
	}

	if workers, err := cfg.GetInt("decoder.workers", processorConfig.Workers); err == nil && workers > 0 {
		processorConfig.Workers = workers
	}

	return processorConfig, nil
}

// GetConfig returns the processor configuration
func (p *Processor) GetConfig() *ProcessorConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config
}

// Reload applies new decoder limits and storage settings. Inputs already
// being decoded finish with the previous limits.
func (p *Processor) Reload(cfg config.Provider) error {
	processorConfig, err := loadProcessorConfig(cfg)
	if err != nil {
		return err
	}

	nd := ndps.NewDecoder(ndps.Options{
		MaxItems: processorConfig.MaxItems,
		MaxDepth: processorConfig.MaxDepth,
	})
	ax := agentx.NewDecoder(processorConfig.MaxVarbinds)

	p.mu.Lock()
	p.config, p.ndps, p.agentx = processorConfig, nd, ax
	p.mu.Unlock()

	p.logger.Info("Processor configuration reloaded",
		"max_items", processorConfig.MaxItems,
		"max_depth", processorConfig.MaxDepth,
		"max_varbinds", processorConfig.MaxVarbinds,
		"workers", processorConfig.Workers)
	return nil
}

// Process decodes one input. Decode failures are reported in the Result;
// the returned error is non-nil only when ctx is done.
func (p *Processor) Process(ctx context.Context, in Input) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	cfg, nd, ax := p.config, p.ndps, p.agentx
	p.mu.RUnlock()

	start := time.Now()
	res := &Result{
		Source:    in.Source,
		Grammar:   in.Grammar,
		Offset:    in.Offset,
		InputSize: len(in.Data),
	}

	var end int
	res.Tree, end, res.Err = decode(nd, ax, in)
	if res.Err == nil {
		res.Consumed = end - in.Offset
	}
	res.Outcome = Classify(res.Tree, res.Err)
	if res.Err != nil {
		res.Error = res.Err.Error()
	}
	res.Duration = time.Since(start)

	p.observe(res)

	if cfg.EnableStorage && p.store != nil {
		p.persist(ctx, in, res, cfg.StoreTrees)
	}

	p.mu.Lock()
	p.stats.Processed++
	p.stats.Outcomes[res.Outcome]++
	p.stats.TotalProcessTime += res.Duration
	p.mu.Unlock()

	p.logger.Debug("Decoded input",
		"source", res.Source,
		"grammar", res.Grammar,
		"outcome", res.Outcome,
		"consumed", res.Consumed,
		"input_size", res.InputSize)

	return res, nil
}

func decode(nd *ndps.Decoder, ax *agentx.Decoder, in Input) (ndps.Value, int, error) {
	if in.Grammar == GrammarAgentX {
		if in.Offset < 0 || in.Offset > len(in.Data) {
			return ndps.Value{}, in.Offset, fmt.Errorf("offset %d outside input of %d bytes", in.Offset, len(in.Data))
		}
		pkt, err := ax.Decode(in.Data[in.Offset:])
		if err != nil {
			return ndps.Value{}, in.Offset, err
		}
		return pkt.Tree(), in.Offset + pkt.Length, nil
	}

	g, err := ndps.ParseGrammar(in.Grammar)
	if err != nil {
		return ndps.Value{}, in.Offset, err
	}
	return nd.Decode(g, in.Data, in.Offset)
}

// Classify maps a decode result to its outcome.
func Classify(tree ndps.Value, err error) string {
	switch {
	case errors.Is(err, ndps.ErrNestingTooDeep):
		return OutcomeTooDeep
	case errors.Is(err, ndps.ErrTruncatedInput):
		return OutcomeTruncated
	case err != nil:
		return OutcomeError
	case tree.HasUnknown():
		return OutcomeUnknown
	case tree.IsPartial():
		return OutcomePartial
	default:
		return OutcomeOK
	}
}

func (p *Processor) observe(res *Result) {
	if p.recorder == nil {
		return
	}

	p.recorder.ObserveDecode(res.Grammar, res.Outcome, res.InputSize, res.Duration)
	if res.Err != nil {
		return
	}

	partial := 0
	res.Tree.Walk(func(v ndps.Value) {
		switch {
		case v.Kind == ndps.KindSequence && v.Partial:
			partial++
		case v.Kind == ndps.KindUnknown:
			p.recorder.ObserveUnknownSyntax(v.Tag)
		}
	})
	p.recorder.ObservePartialSequences(partial)
}

func (p *Processor) persist(ctx context.Context, in Input, res *Result, storeTrees bool) {
	rec := &storage.Record{
		Source:    res.Source,
		Grammar:   res.Grammar,
		Outcome:   res.Outcome,
		InputHash: storage.HashInput(in.Data),
		InputSize: res.InputSize,
		Consumed:  res.Consumed,
		Error:     res.Error,
	}
	if storeTrees && res.Err == nil {
		tree, err := json.Marshal(res.Tree)
		if err != nil {
			p.logger.Warn("Failed to encode tree for storage", "source", res.Source, "error", err.Error())
		} else {
			rec.Tree = string(tree)
		}
	}

	var id int64
	start := time.Now()
	err := p.retryer.Do(ctx, func() error {
		var serr error
		id, serr = p.store.StoreRecord(rec)
		return serr
	})
	if p.recorder != nil {
		p.recorder.ObserveStore(time.Since(start), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.stats.StoreErrors++
		p.logger.Error("Failed to store decode record", "source", res.Source, "error", err.Error())
		return
	}
	p.stats.Stored++
	res.RecordID = id
}

// ProcessAll decodes inputs on the configured number of workers and returns
// the results in input order.
func (p *Processor) ProcessAll(ctx context.Context, inputs []Input) ([]*Result, error) {
	results := make([]*Result, len(inputs))
	jobs := make(chan int)

	workers := p.GetConfig().Workers
	if workers > len(inputs) {
		workers = len(inputs)
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := p.Process(ctx, inputs[i])
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					continue
				}
				results[i] = res
			}
		}()
	}

feed:
	for i := range inputs {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr == nil {
		firstErr = ctx.Err()
	}
	return results, firstErr
}

// GetStats returns processor statistics
func (p *Processor) GetStats() *ProcessorStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := *p.stats
	stats.Outcomes = make(map[string]int64, len(p.stats.Outcomes))
	for k, v := range p.stats.Outcomes {
		stats.Outcomes[k] = v
	}
	stats.StoreRetry = p.retryer.GetStats()
	return &stats
}
