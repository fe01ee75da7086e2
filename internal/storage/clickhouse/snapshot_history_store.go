package clickhouse

import (
	"context"
	"fmt"
	"time"

	"dropscout/internal/domain"
	"dropscout/internal/storage"
)

// SnapshotHistoryStore implements storage.SnapshotHistoryStore using ClickHouse.
// MergeTree tolerates re-inserts of the same observation; trend scoring reads
// are windowed, so the occasional duplicate row does not skew results.
type SnapshotHistoryStore struct {
	conn *Conn
}

// NewSnapshotHistoryStore creates a new SnapshotHistoryStore.
func NewSnapshotHistoryStore(conn *Conn) *SnapshotHistoryStore {
	return &SnapshotHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotHistoryStore = (*SnapshotHistoryStore)(nil)

// InsertBulk appends snapshots observed for one normalized title key.
func (s *SnapshotHistoryStore) InsertBulk(ctx context.Context, titleKey string, snapshots []*domain.MarketSnapshot) error {
	if titleKey == "" {
		return storage.ErrInvalidInput
	}
	if len(snapshots) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_snapshots (
			title_key, marketplace, region, listings_found,
			average_price, median_price, competitive_price, currency, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			titleKey, string(snap.Marketplace), string(snap.Region), uint32(snap.ListingsFound),
			snap.AveragePrice, snap.MedianPrice, snap.CompetitivePrice,
			snap.Currency, snap.ObservedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetRecent retrieves up to limit snapshots for a title key on one
// marketplace/region, newest first.
func (s *SnapshotHistoryStore) GetRecent(ctx context.Context, titleKey string, mp domain.Marketplace, region domain.Region, since time.Time, limit int) ([]*domain.MarketSnapshot, error) {
	if titleKey == "" || limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT marketplace, region, listings_found,
		       average_price, median_price, competitive_price, currency, observed_at
		FROM market_snapshots
		WHERE title_key = ? AND marketplace = ? AND region = ? AND observed_at >= ?
		ORDER BY observed_at DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, titleKey, string(mp), string(region), since, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.MarketSnapshot
	for rows.Next() {
		var (
			snap          domain.MarketSnapshot
			marketplace   string
			snapRegion    string
			listingsFound uint32
		)
		err := rows.Scan(
			&marketplace, &snapRegion, &listingsFound,
			&snap.AveragePrice, &snap.MedianPrice, &snap.CompetitivePrice,
			&snap.Currency, &snap.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		snap.Marketplace = domain.Marketplace(marketplace)
		snap.Region = domain.Region(snapRegion)
		snap.ListingsFound = int(listingsFound)
		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snapshots, nil
}
