package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TradeRecord is one committed market event. The on-ledger listing keeps a
// bounded history; this table keeps all of it.
type TradeRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Fingerprint  string    `gorm:"size:64;uniqueIndex"`
	TxHash       string    `gorm:"size:66;index"`
	Sequence     uint64    `gorm:"index"`
	EventIndex   int
	EventType    string `gorm:"size:64"`
	Asset        string `gorm:"size:66;index"`
	Listing      string `gorm:"size:90"`
	Action       string `gorm:"size:32"`
	Status       string `gorm:"size:16"`
	Seller       string `gorm:"size:90;index"`
	Buyer        string `gorm:"size:90"`
	Price        uint64
	Royalty      uint64
	SellerAmount uint64
	Timestamp    int64 `gorm:"index"`
	HistoryIndex int
	CreatedAt    time.Time
}

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&TradeRecord{})
}
