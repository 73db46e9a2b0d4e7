package database

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

// Cost-basis lifecycle statuses
const (
	StatusOpen            = "OPEN"
	StatusPartiallyClosed = "PARTIALLY_CLOSED"
	StatusClosed          = "CLOSED"
)

// Fill actions
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// Models

// CostBasisRecord is the durable cost-basis ledger row for one
// (account, market, side). It is created on first buy, mutated on every
// buy/sell by the execution path, and never deleted; closed positions stay
// for history. RealizedPnL covers only tokens already sold.
type CostBasisRecord struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	AccountID    string `gorm:"uniqueIndex:idx_cost_basis_key;index"`
	MarketTicker string `gorm:"uniqueIndex:idx_cost_basis_key"`
	Side         string `gorm:"uniqueIndex:idx_cost_basis_key"`

	TotalTokensBought decimal.Decimal `gorm:"type:decimal(30,10)"`
	TotalCostBasis    decimal.Decimal `gorm:"type:decimal(30,10)"`
	TotalTokensSold   decimal.Decimal `gorm:"type:decimal(30,10)"`
	TotalSellProceeds decimal.Decimal `gorm:"type:decimal(30,10)"`
	RealizedPnL       decimal.Decimal `gorm:"type:decimal(30,10)"`

	Status    string `gorm:"index"` // OPEN, PARTIALLY_CLOSED, CLOSED
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TradeFill is one executed buy or sell in the durable trade ledger
type TradeFill struct {
	ID           string `gorm:"primaryKey"`
	AccountID    string `gorm:"index:idx_fills_account"`
	MarketTicker string `gorm:"index"`
	Side         string // "yes" or "no"
	Action       string // BUY or SELL
	Price        decimal.Decimal `gorm:"type:decimal(20,10)"`
	Quantity     decimal.Decimal `gorm:"type:decimal(30,10)"`
	Value        decimal.Decimal `gorm:"type:decimal(30,10)"`
	TxSignature  string
	CreatedAt    time.Time
}

// TradedPair is one distinct (market, side) an account has ever traded
type TradedPair struct {
	MarketTicker string
	Side         string
}

func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	// Check if this is a PostgreSQL connection string
	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		// SQLite fallback
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&CostBasisRecord{}, &TradeFill{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// Cost-basis ledger reads (consumed by the reconciliation engine)

// GetCostBasisRecords returns every cost-basis row for an account,
// including closed positions
func (d *Database) GetCostBasisRecords(accountID string) ([]CostBasisRecord, error) {
	var records []CostBasisRecord
	err := d.db.Where("account_id = ?", accountID).Find(&records).Error
	return records, err
}

// GetCostBasisRecord returns the row for one (account, market, side), or nil
func (d *Database) GetCostBasisRecord(accountID, marketTicker, side string) (*CostBasisRecord, error) {
	var record CostBasisRecord
	err := d.db.Where("account_id = ? AND market_ticker = ? AND side = ?",
		accountID, marketTicker, side).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetDistinctTradedPairs returns every distinct (market, side) the account
// has fills for. Fully-sold positions have no on-chain balance, so this is
// the only way they surface.
func (d *Database) GetDistinctTradedPairs(accountID string) ([]TradedPair, error) {
	var pairs []TradedPair
	err := d.db.Model(&TradeFill{}).
		Distinct("market_ticker", "side").
		Where("account_id = ?", accountID).
		Scan(&pairs).Error
	return pairs, err
}

// Trade ledger write path (driven by the execution flow)

// RecordFill appends a fill to the trade ledger and folds it into the
// account's cost-basis row
func (d *Database) RecordFill(fill *TradeFill) error {
	if fill.ID == "" {
		fill.ID = uuid.NewString()
	}
	if fill.Value.IsZero() {
		fill.Value = fill.Price.Mul(fill.Quantity)
	}

	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(fill).Error; err != nil {
			return err
		}
		return applyFill(tx, fill)
	})
}

// applyFill folds one fill into the cost-basis row for its key
func applyFill(tx *gorm.DB, fill *TradeFill) error {
	var record CostBasisRecord
	err := tx.Where("account_id = ? AND market_ticker = ? AND side = ?",
		fill.AccountID, fill.MarketTicker, fill.Side).First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		record = CostBasisRecord{
			AccountID:    fill.AccountID,
			MarketTicker: fill.MarketTicker,
			Side:         fill.Side,
			Status:       StatusOpen,
		}
	} else if err != nil {
		return err
	}

	switch fill.Action {
	case ActionBuy:
		record.TotalTokensBought = record.TotalTokensBought.Add(fill.Quantity)
		record.TotalCostBasis = record.TotalCostBasis.Add(fill.Value)
	case ActionSell:
		record.TotalTokensSold = record.TotalTokensSold.Add(fill.Quantity)
		record.TotalSellProceeds = record.TotalSellProceeds.Add(fill.Value)

		// Realized PnL for the sold tranche: proceeds minus its share of cost
		if record.TotalTokensBought.IsPositive() {
			avgCost := record.TotalCostBasis.Div(record.TotalTokensBought)
			record.RealizedPnL = record.RealizedPnL.Add(
				fill.Value.Sub(avgCost.Mul(fill.Quantity)))
		}
	}

	switch {
	case record.TotalTokensSold.GreaterThanOrEqual(record.TotalTokensBought) &&
		record.TotalTokensBought.IsPositive():
		record.Status = StatusClosed
	case record.TotalTokensSold.IsPositive():
		record.Status = StatusPartiallyClosed
	default:
		record.Status = StatusOpen
	}

	return tx.Save(&record).Error
}

// GetRecentFills returns recent fills for an account
func (d *Database) GetRecentFills(accountID string, limit int) ([]TradeFill, error) {
	var fills []TradeFill
	err := d.db.Where("account_id = ?", accountID).
		Order("created_at DESC").Limit(limit).Find(&fills).Error
	return fills, err
}

// Close closes the underlying connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
