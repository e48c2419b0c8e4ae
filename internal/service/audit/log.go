package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/domain/values"
)

// Config tunes the batched write path
type Config struct {
	// BatchSize triggers an immediate flush when the queue reaches it
	BatchSize int
	// FlushInterval is the wall-clock period of the background flush timer
	FlushInterval time.Duration
	// WriteTimeout bounds each bulk write
	WriteTimeout time.Duration
}

// DefaultConfig returns the configuration required by the audit contract
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		WriteTimeout:  5 * time.Second,
	}
}

// SequenceCheckpoint is an optional fast-path store for the latest assigned
// sequence number. Failures are never fatal; the repository is authoritative.
type SequenceCheckpoint interface {
	SetLatestSequence(ctx context.Context, seq int64) error
	GetLatestSequence(ctx context.Context) (int64, error)
}

// Log is the append-only, sequenced audit event store. Appends via the queued
// path never block beyond an in-memory lock; the queue flushes when it reaches
// BatchSize or when the flush timer fires, whichever comes first. Sequence
// numbers are assigned in a single serialized write path so they reflect write
// order.
type Log struct {
	config     Config
	repo       audit.EntryRepository
	checkpoint SequenceCheckpoint
	logger     *zap.Logger
	metrics    *Metrics

	seq *values.SequenceGenerator

	queueMu sync.Mutex
	queue   []*audit.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewLog builds the store, loads the latest sequence number, and starts the
// periodic flush timer. checkpoint may be nil.
func NewLog(ctx context.Context, config Config, repo audit.EntryRepository, checkpoint SequenceCheckpoint, logger *zap.Logger, metrics *Metrics) (*Log, error) {
	if repo == nil {
		return nil, errors.NewValidationError("MISSING_REPOSITORY", "audit entry repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultConfig().FlushInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}

	last, err := repo.GetLatestSequenceNumber(ctx)
	if err != nil {
		return nil, errors.NewDependencyError("audit repository",
			"could not load latest sequence number").WithCause(err)
	}

	gen, err := values.NewSequenceGenerator(uint64(last) + 1)
	if err != nil {
		return nil, err
	}

	logCtx, cancel := context.WithCancel(context.Background())

	l := &Log{
		config:     config,
		repo:       repo,
		checkpoint: checkpoint,
		logger:     logger,
		metrics:    metrics,
		seq:        gen,
		queue:      make([]*audit.Entry, 0, config.BatchSize),
		ctx:        logCtx,
		cancel:     cancel,
	}

	l.wg.Add(1)
	go l.flushLoop()

	logger.Info("audit log started",
		zap.Int64("last_sequence", last),
		zap.Int("batch_size", config.BatchSize),
		zap.Duration("flush_interval", config.FlushInterval),
	)

	return l, nil
}

// Append enqueues an entry for the next batched write. The entry's timestamp
// is stamped here; its sequence number is assigned at write time.
func (l *Log) Append(ctx context.Context, entry *audit.Entry) error {
	if entry == nil {
		return errors.NewValidationError("MISSING_ENTRY", "entry is required")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	entry.Timestamp = time.Now().UTC()

	l.queueMu.Lock()
	l.queue = append(l.queue, entry)
	var batch []*audit.Entry
	if len(l.queue) >= l.config.BatchSize {
		batch = l.takeQueueLocked()
	}
	l.queueMu.Unlock()

	l.metrics.Enqueued.Inc()

	if batch != nil {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.writeBatch(batch)
		}()
	}

	return nil
}

// AppendSync writes an entry immediately, bypassing the queue, and returns the
// persisted entry. Use for events needing write-before-acknowledge guarantees.
func (l *Log) AppendSync(ctx context.Context, entry *audit.Entry) (*audit.Entry, error) {
	if entry == nil {
		return nil, errors.NewValidationError("MISSING_ENTRY", "entry is required")
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	seq, err := l.seq.Next()
	if err != nil {
		return nil, err
	}

	entry.Timestamp = time.Now().UTC()
	entry.SequenceNum = int64(seq.Value())

	writeCtx, cancel := context.WithTimeout(ctx, l.config.WriteTimeout)
	defer cancel()

	if err := l.repo.Store(writeCtx, entry); err != nil {
		l.metrics.WriteErrors.Inc()
		return nil, errors.NewDependencyError("audit repository",
			"synchronous audit write failed").WithCause(err)
	}

	l.metrics.Written.Inc()
	l.recordCheckpoint(entry.SequenceNum)

	return entry, nil
}

// Flush drains the queue and performs one bulk write synchronously
func (l *Log) Flush(ctx context.Context) error {
	l.queueMu.Lock()
	batch := l.takeQueueLocked()
	l.queueMu.Unlock()

	if batch == nil {
		return nil
	}
	return l.writeBatchCtx(ctx, batch)
}

// Pending reports the number of queued, unflushed entries
func (l *Log) Pending() int {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	return len(l.queue)
}

// Close stops the flush timer and performs a final flush so the last partial
// batch is not lost on shutdown.
func (l *Log) Close(ctx context.Context) error {
	var flushErr error
	l.closeOnce.Do(func() {
		l.cancel()
		l.wg.Wait()
		flushErr = l.Flush(ctx)
		if flushErr != nil {
			l.logger.Error("final audit flush failed", zap.Error(flushErr))
		} else {
			l.logger.Info("audit log closed")
		}
	})
	return flushErr
}

// takeQueueLocked swaps the queue for an empty one and returns the old
// contents. Caller must hold queueMu.
func (l *Log) takeQueueLocked() []*audit.Entry {
	if len(l.queue) == 0 {
		return nil
	}
	batch := l.queue
	l.queue = make([]*audit.Entry, 0, l.config.BatchSize)
	return batch
}

func (l *Log) flushLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.queueMu.Lock()
			batch := l.takeQueueLocked()
			l.queueMu.Unlock()
			if batch != nil {
				l.writeBatch(batch)
			}
		case <-l.ctx.Done():
			return
		}
	}
}

// writeBatch performs one bulk write with the configured timeout, re-queueing
// the batch on failure (at-least-once semantics)
func (l *Log) writeBatch(batch []*audit.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), l.config.WriteTimeout)
	defer cancel()

	if err := l.writeBatchCtx(ctx, batch); err != nil {
		l.logger.Error("batched audit write failed, re-queueing",
			zap.Error(err),
			zap.Int("batch_size", len(batch)),
		)
	}
}

func (l *Log) writeBatchCtx(ctx context.Context, batch []*audit.Entry) error {
	start := time.Now()

	// Entries re-queued from a failed write keep their assigned numbers;
	// everything else gets the next run of the serialized sequence.
	for _, entry := range batch {
		if entry.SequenceNum != 0 {
			continue
		}
		seq, err := l.seq.Next()
		if err != nil {
			return err
		}
		entry.SequenceNum = int64(seq.Value())
	}

	if err := l.repo.StoreBatch(ctx, batch); err != nil {
		l.metrics.WriteErrors.Inc()
		l.requeue(batch)
		return errors.NewDependencyError("audit repository",
			"bulk audit write failed").WithCause(err)
	}

	l.metrics.Written.Add(float64(len(batch)))
	l.metrics.FlushDuration.Observe(time.Since(start).Seconds())
	l.recordCheckpoint(batch[len(batch)-1].SequenceNum)

	return nil
}

// requeue puts a failed batch back at the front of the queue so retry order
// stays close to write order
func (l *Log) requeue(batch []*audit.Entry) {
	l.queueMu.Lock()
	l.queue = append(batch, l.queue...)
	l.queueMu.Unlock()
	l.metrics.Requeued.Add(float64(len(batch)))
}

func (l *Log) recordCheckpoint(seq int64) {
	if l.checkpoint == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.checkpoint.SetLatestSequence(ctx, seq); err != nil {
		l.logger.Warn("sequence checkpoint update failed", zap.Error(err))
	}
}
