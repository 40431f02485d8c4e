package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/robjohncolson/doge-grid-bot-sub002/internal/codec"
	"github.com/robjohncolson/doge-grid-bot-sub002/internal/domain"
)

// SlotSnapshot is the persisted form of one slot's state: the portable
// JSON document plus enough metadata to find and audit it.
type SlotSnapshot struct {
	SlotID    int    `gorm:"primaryKey"`
	Document  []byte `gorm:"not null"`
	SavedAt   time.Time
	EventSeq  uint64
	Violation string // non-empty when the checker flagged the state at save time
}

// CycleRow is one booked round trip, append-only.
type CycleRow struct {
	ID            uint `gorm:"primaryKey;autoIncrement"`
	SlotID        int  `gorm:"index"`
	TradeID       string
	Cycle         int
	EntryPrice    float64
	ExitPrice     float64
	Volume        float64
	GrossProfit   float64
	EntryFee      float64
	ExitFee       float64
	QuoteFee      float64
	Fees          float64
	NetProfit     float64
	SettledUSD    float64
	EntryTime     float64
	ExitTime      float64
	RegimeAtEntry string
	Lineage       string
	CreatedAt     time.Time
}

// AppConfig is a simple key/value row for host settings.
type AppConfig struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

// Storage persists slot snapshots, booked cycles and host settings.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (and migrates) the SQLite database at path.
func NewStorage(path string) (*Storage, error) {
	dbDir := filepath.Dir(path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Pure Go SQLite, no cgo.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&SlotSnapshot{}, &CycleRow{}, &AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Snapshot Operations
// ======================================================================================

// SaveSnapshot encodes and upserts one slot's state.
func (s *Storage) SaveSnapshot(slotID int, state domain.PairState, eventSeq uint64, violation string) error {
	doc, err := codec.EncodeState(state)
	if err != nil {
		return fmt.Errorf("encode snapshot for slot %d: %w", slotID, err)
	}
	row := SlotSnapshot{
		SlotID:    slotID,
		Document:  doc,
		SavedAt:   time.Now(),
		EventSeq:  eventSeq,
		Violation: violation,
	}
	return s.db.Save(&row).Error
}

// LoadSnapshot restores one slot's state. The second return is false when
// no snapshot exists for the slot.
func (s *Storage) LoadSnapshot(slotID int) (domain.PairState, bool, error) {
	var row SlotSnapshot
	err := s.db.First(&row, "slot_id = ?", slotID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PairState{}, false, nil
	}
	if err != nil {
		return domain.PairState{}, false, err
	}
	state, err := codec.DecodeState(row.Document)
	if err != nil {
		return domain.PairState{}, false, fmt.Errorf("decode snapshot for slot %d: %w", slotID, err)
	}
	return state, true, nil
}

// ======================================================================================
// Cycle Operations
// ======================================================================================

// AppendCycle records one booked round trip. Rows are never updated.
func (s *Storage) AppendCycle(slotID int, rec domain.CycleRecord) error {
	row := CycleRow{
		SlotID:        slotID,
		TradeID:       string(rec.TradeID),
		Cycle:         rec.Cycle,
		EntryPrice:    rec.EntryPrice,
		ExitPrice:     rec.ExitPrice,
		Volume:        rec.Volume,
		GrossProfit:   rec.GrossProfit,
		EntryFee:      rec.EntryFee,
		ExitFee:       rec.ExitFee,
		QuoteFee:      rec.QuoteFee,
		Fees:          rec.Fees,
		NetProfit:     rec.NetProfit,
		SettledUSD:    rec.SettledUSD,
		EntryTime:     rec.EntryTime,
		ExitTime:      rec.ExitTime,
		RegimeAtEntry: string(rec.RegimeAtEntry),
		Lineage:       string(rec.Lineage),
	}
	return s.db.Create(&row).Error
}

// CyclesForSlot returns all booked cycles for one slot, oldest first.
func (s *Storage) CyclesForSlot(slotID int) ([]CycleRow, error) {
	var rows []CycleRow
	err := s.db.Where("slot_id = ?", slotID).Order("id asc").Find(&rows).Error
	return rows, err
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a host setting.
func (s *Storage) SaveConfig(key, value string) error {
	config := AppConfig{Key: key, Value: value}
	return s.db.Save(&config).Error
}

// LoadConfigMap loads all host settings as a map.
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string, len(configs))
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}
