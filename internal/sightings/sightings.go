// Package sightings records who was seen when.
package sightings

import (
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Sighting is one recognition event.
type Sighting struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	UID        string    `gorm:"uniqueIndex;size:36" json:"uid"`
	At         time.Time `gorm:"index" json:"at"`
	Label      string    `gorm:"index;size:255" json:"label"`
	Confidence float64   `json:"confidence"`
	Camera     string    `gorm:"size:255" json:"camera"`
	Snapshot   string    `json:"snapshot,omitempty"`
}

// Query filters sighting listings.
type Query struct {
	Label string
	Since time.Time
	Until time.Time
	Limit int
}

// Store persists sightings.
type Store interface {
	Save(s *Sighting) error
	List(q Query) ([]Sighting, error)
	Close() error
}

type dbStore struct {
	db *gorm.DB
}

// Open connects to the sightings database and migrates its schema.
// Supported drivers are "sqlite" and "mysql".
func Open(driver, dsn string) (Store, error) {
	var dial gorm.Dialector
	switch driver {
	case "", "sqlite":
		dial = sqlite.Open(dsn)
	case "mysql":
		if _, err := gomysql.ParseDSN(dsn); err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		dial = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sightings driver %q", driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sightings database: %w", err)
	}

	if err := db.AutoMigrate(&Sighting{}); err != nil {
		return nil, fmt.Errorf("migrating sightings schema: %w", err)
	}

	return &dbStore{db: db}, nil
}

// Save inserts the sighting, assigning a UID and timestamp when missing.
func (s *dbStore) Save(sighting *Sighting) error {
	if sighting.UID == "" {
		sighting.UID = uuid.NewString()
	}
	if sighting.At.IsZero() {
		sighting.At = time.Now()
	}

	if err := s.db.Create(sighting).Error; err != nil {
		return fmt.Errorf("saving sighting: %w", err)
	}
	return nil
}

// List returns sightings matching the query, newest first.
func (s *dbStore) List(q Query) ([]Sighting, error) {
	tx := s.db.Model(&Sighting{}).Order("at DESC")

	if q.Label != "" {
		tx = tx.Where("label = ?", q.Label)
	}
	if !q.Since.IsZero() {
		tx = tx.Where("at >= ?", q.Since)
	}
	if !q.Until.IsZero() {
		tx = tx.Where("at < ?", q.Until)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var out []Sighting
	if err := tx.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing sightings: %w", err)
	}
	return out, nil
}

func (s *dbStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
