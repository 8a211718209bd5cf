package indexer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetTrade struct {
	TxHash       string `parquet:"name=tx_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sequence     int64  `parquet:"name=sequence, type=INT64"`
	EventIndex   int32  `parquet:"name=event_index, type=INT32"`
	EventType    string `parquet:"name=event_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Asset        string `parquet:"name=asset, type=BYTE_ARRAY, convertedtype=UTF8"`
	Listing      string `parquet:"name=listing, type=BYTE_ARRAY, convertedtype=UTF8"`
	Action       string `parquet:"name=action, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status       string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	Seller       string `parquet:"name=seller, type=BYTE_ARRAY, convertedtype=UTF8"`
	Buyer        string `parquet:"name=buyer, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price        int64  `parquet:"name=price, type=INT64"`
	Royalty      int64  `parquet:"name=royalty, type=INT64"`
	SellerAmount int64  `parquet:"name=seller_amount, type=INT64"`
	Timestamp    string `parquet:"name=timestamp, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportParquet writes the trade records to path in sequence order. A nil
// asset exports every record. It returns the number of rows written.
func (ix *Indexer) ExportParquet(ctx context.Context, path string, asset *[32]byte) (int, error) {
	query := ix.db.WithContext(ctx).Order("sequence ASC").Order("event_index ASC")
	if asset != nil {
		query = query.Where("asset = ?", assetKey(*asset))
	}
	var records []TradeRecord
	if err := query.Find(&records).Error; err != nil {
		return 0, err
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("indexer: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetTrade), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range records {
		row := &parquetTrade{
			TxHash:       rec.TxHash,
			Sequence:     int64(rec.Sequence),
			EventIndex:   int32(rec.EventIndex),
			EventType:    rec.EventType,
			Asset:        rec.Asset,
			Listing:      rec.Listing,
			Action:       rec.Action,
			Status:       rec.Status,
			Seller:       rec.Seller,
			Buyer:        rec.Buyer,
			Price:        int64(rec.Price),
			Royalty:      int64(rec.Royalty),
			SellerAmount: int64(rec.SellerAmount),
			Timestamp:    time.Unix(rec.Timestamp, 0).UTC().Format(time.RFC3339),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return 0, fmt.Errorf("indexer: write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return 0, fmt.Errorf("indexer: finalize parquet: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, err
	}
	return len(records), nil
}
