package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/studymon/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionBattleCreate = "battle.create"
	ActionBattleAttack = "battle.attack"
	ActionBattleExpire = "battle.expire"
)

const (
	queueSize     = 1024
	batchSize     = 100
	flushInterval = 2 * time.Second
)

// Entry is one audited battle operation.
type Entry struct {
	TraceID    string
	UserID     *int64
	BattleID   *int64
	CreatureID *int64
	Action     string
	Request    interface{}
	Response   interface{}
	Error      string
	IP         string
	DurationMs int
}

// Service writes audit entries asynchronously in batches.
type Service struct {
	db     *gorm.DB
	ch     chan *model.AuditLog
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates an audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

func marshal(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// Log enqueues entry. It never blocks: when the queue is full or the
// service has stopped the entry is dropped with a warning.
func (svc *Service) Log(entry Entry) {
	record := &model.AuditLog{
		TraceID:    entry.TraceID,
		UserID:     entry.UserID,
		BattleID:   entry.BattleID,
		CreatureID: entry.CreatureID,
		Action:     entry.Action,
		Request:    marshal(entry.Request),
		Response:   marshal(entry.Response),
		Error:      entry.Error,
		IP:         entry.IP,
		DurationMs: entry.DurationMs,
	}
	select {
	case <-svc.stopCh:
		svc.logger.Warn("audit service stopped, dropping entry", zap.String("action", entry.Action))
		return
	default:
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit queue full, dropping entry", zap.String("action", entry.Action))
	}
}

// Stop flushes queued entries and shuts the worker down. It returns early
// if ctx is done first.
func (svc *Service) Stop(ctx context.Context) {
	svc.once.Do(func() { close(svc.stopCh) })
	if ctx == nil {
		svc.wg.Wait()
		return
	}
	done := make(chan struct{})
	go func() {
		svc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		svc.logger.Warn("audit stop timed out; entries may be lost")
	}
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.CreateInBatches(batch, batchSize).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
