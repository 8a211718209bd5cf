package indexer

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"cardmarket/core/events"
	"cardmarket/native/market"
)

const (
	queueDepth   = 1024
	defaultLimit = 100
	// MaxHistoryLimit caps the rows History returns.
	MaxHistoryLimit = 1000
)

// Open connects to dsn. postgres:// URLs and key=value DSNs use the Postgres
// driver; anything else is treated as a SQLite file path.
func Open(dsn string, log *slog.Logger) (*Indexer, error) {
	var dialector gorm.Dialector
	trimmed := strings.TrimSpace(dsn)
	switch {
	case trimmed == "":
		return nil, fmt.Errorf("indexer: dsn required")
	case strings.HasPrefix(trimmed, "postgres://"), strings.HasPrefix(trimmed, "postgresql://"), strings.Contains(trimmed, "host="):
		dialector = postgres.Open(trimmed)
	default:
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open database: %w", err)
	}
	return New(db, log)
}

// Indexer archives committed market events. It is an events.Emitter: events
// are queued by Emit and written by a background worker started with Start.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan events.Committed
	wg      sync.WaitGroup
	started bool
}

func New(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Indexer{
		db:     db,
		logger: log.With(slog.String("component", "indexer")),
		queue:  make(chan events.Committed, queueDepth),
	}, nil
}

// Start launches the writer. It stops when Close is called, after the queue
// is drained; cancelling ctx does not abort pending writes.
func (ix *Indexer) Start(ctx context.Context) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.started || ix.closed {
		return
	}
	ix.started = true
	ctx = context.WithoutCancel(ctx)
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		for evt := range ix.queue {
			if err := ix.Record(ctx, evt); err != nil {
				ix.logger.Error("index trade event",
					slog.String("type", evt.EventType()),
					slog.Uint64("sequence", evt.Sequence),
					slog.String("error", err.Error()))
			}
		}
	}()
}

// Emit queues committed market events. Other events are ignored. When the
// queue is full Emit waits for the writer.
func (ix *Indexer) Emit(evt events.Event) {
	committed, ok := evt.(events.Committed)
	if !ok || !isTradeEvent(committed.EventType()) {
		return
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return
	}
	ix.queue <- committed
}

func isTradeEvent(eventType string) bool {
	switch eventType {
	case market.EventTypeListed, market.EventTypePriceUpdated, market.EventTypeCancelled, market.EventTypePurchased:
		return true
	}
	return false
}

// Record writes one committed event. Replays of an already indexed event are
// ignored.
func (ix *Indexer) Record(ctx context.Context, evt events.Committed) error {
	if evt.Evt == nil || !isTradeEvent(evt.Evt.Type) {
		return nil
	}
	record, err := toRecord(evt)
	if err != nil {
		return err
	}
	return ix.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "fingerprint"}}, DoNothing: true}).
		Create(record).Error
}

// Fingerprint identifies an event by the transaction that produced it and
// its position in that transaction.
func Fingerprint(txHash [32]byte, index int) string {
	buf := make([]byte, 0, len(txHash)+8)
	buf = append(buf, txHash[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(index))
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

func toRecord(evt events.Committed) (*TradeRecord, error) {
	attrs := evt.Evt.Attributes
	record := &TradeRecord{
		ID:          uuid.New(),
		Fingerprint: Fingerprint(evt.TxHash, evt.Index),
		TxHash:      "0x" + hex.EncodeToString(evt.TxHash[:]),
		Sequence:    evt.Sequence,
		EventIndex:  evt.Index,
		EventType:   evt.Evt.Type,
		Asset:       strings.ToLower(attrs["asset"]),
		Listing:     attrs["listing"],
		Action:      attrs["action"],
		Status:      attrs["status"],
		Seller:      attrs["seller"],
		Buyer:       attrs["buyer"],
	}
	var err error
	if record.Price, err = parseUint(attrs, "price"); err != nil {
		return nil, err
	}
	if record.Royalty, err = parseUint(attrs, "royalty"); err != nil {
		return nil, err
	}
	if record.SellerAmount, err = parseUint(attrs, "sellerAmount"); err != nil {
		return nil, err
	}
	if raw := attrs["timestamp"]; raw != "" {
		if record.Timestamp, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("indexer: timestamp: %w", err)
		}
	}
	if raw := attrs["historyIndex"]; raw != "" {
		if record.HistoryIndex, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("indexer: historyIndex: %w", err)
		}
	}
	return record, nil
}

func parseUint(attrs map[string]string, key string) (uint64, error) {
	raw := attrs[key]
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("indexer: %s: %w", key, err)
	}
	return v, nil
}

func assetKey(asset [32]byte) string {
	return "0x" + hex.EncodeToString(asset[:])
}

// History returns the most recent trade records of asset, newest first.
func (ix *Indexer) History(ctx context.Context, asset [32]byte, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	var records []TradeRecord
	err := ix.db.WithContext(ctx).
		Where("asset = ?", assetKey(asset)).
		Order("sequence DESC").Order("event_index DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close stops accepting events, drains the queue and closes the database.
func (ix *Indexer) Close() error {
	ix.mu.Lock()
	if ix.closed {
		ix.mu.Unlock()
		return nil
	}
	ix.closed = true
	close(ix.queue)
	started := ix.started
	ix.mu.Unlock()

	if started {
		ix.wg.Wait()
	} else {
		for evt := range ix.queue {
			if err := ix.Record(context.Background(), evt); err != nil {
				ix.logger.Error("index trade event", slog.String("error", err.Error()))
			}
		}
	}
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
