package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
)

// PersistenceManager handles background batch writing of delivered fixes to storage.
type PersistenceManager struct {
	storage     ports.PositionStore
	persistChan chan domain.FixRecord
	batchSize   int
	interval    time.Duration
	enabled     bool
	done        chan struct{}
	logger      *slog.Logger
	mu          sync.RWMutex
}

// NewPersistenceManager creates a new manager.
func NewPersistenceManager(storage ports.PositionStore, bufferSize int) *PersistenceManager {
	return &PersistenceManager{
		storage:     storage,
		persistChan: make(chan domain.FixRecord, bufferSize),
		batchSize:   100,
		interval:    5 * time.Second,
		enabled:     true,
		done:        make(chan struct{}),
		logger:      slog.Default().With("component", "persistence"),
	}
}

// Record queues a fix for persistence if enabled. It never blocks; fixes
// arriving while the queue is full are dropped.
func (p *PersistenceManager) Record(rec domain.FixRecord) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.enabled {
		return
	}
	select {
	case p.persistChan <- rec:
	default:
		p.logger.Warn("Persistence queue full, dropping fix", "id", rec.ID)
	}
}

// IsEnabled returns the current persistence status.
func (p *PersistenceManager) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// SetEnabled toggles the persistence logic.
func (p *PersistenceManager) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
}

// Start begins the persistence loop. Pending fixes are flushed when ctx ends,
// after which Done is closed.
func (p *PersistenceManager) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	var buffer []domain.FixRecord

	go func() {
		defer close(p.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// drain whatever was queued before shutdown
			drain:
				for {
					select {
					case rec := <-p.persistChan:
						buffer = append(buffer, rec)
					default:
						break drain
					}
				}
				p.flushBuffer(buffer)
				return
			case rec := <-p.persistChan:
				buffer = append(buffer, rec)
				if len(buffer) >= p.batchSize {
					p.flushBuffer(buffer)
					buffer = nil
				}
			case <-ticker.C:
				if len(buffer) > 0 {
					p.flushBuffer(buffer)
					buffer = nil
				}
			}
		}
	}()
}

// Done is closed once the loop has flushed and exited.
func (p *PersistenceManager) Done() <-chan struct{} {
	return p.done
}

func (p *PersistenceManager) flushBuffer(buffer []domain.FixRecord) {
	if len(buffer) == 0 || p.storage == nil {
		return
	}
	// the loop context is already gone on the final flush
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.storage.SaveFixesBatch(ctx, buffer); err != nil {
		p.logger.Error("Failed to batch save fixes", "count", len(buffer), "error", err)
	}
}
