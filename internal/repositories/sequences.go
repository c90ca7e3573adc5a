package repositories

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"librarycore/internal/models"
)

type SequenceRepository interface {
	// Seed creates the sequence row for entity from MAX(id) of table when it
	// does not exist yet. Concurrent seeders are harmless.
	Seed(db *gorm.DB, entity, table string) error
	// LockCurrent locks the sequence row and returns its last value.
	LockCurrent(db *gorm.DB, entity string) (int64, error)
	Store(db *gorm.DB, entity string, value int64) error
}

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Seed(db *gorm.DB, entity, table string) error {
	db = pick(db, r.db)
	var maxID int64
	if err := db.Table(table).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error; err != nil {
		return fmt.Errorf("read max id of %s: %w", table, err)
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.IDSequence{Entity: entity, LastValue: maxID}).Error
}

func (r *sequenceRepository) LockCurrent(db *gorm.DB, entity string) (int64, error) {
	db = pick(db, r.db)
	var seq models.IDSequence
	if err := forUpdate(db).First(&seq, "entity = ?", entity).Error; err != nil {
		return 0, err
	}
	return seq.LastValue, nil
}

func (r *sequenceRepository) Store(db *gorm.DB, entity string, value int64) error {
	db = pick(db, r.db)
	return db.Model(&models.IDSequence{}).
		Where("entity = ?", entity).
		Update("last_value", value).Error
}
