package repositories

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate adds SELECT ... FOR UPDATE to a query.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// pick returns tx when a caller passed one, otherwise the repository default.
func pick(tx, def *gorm.DB) *gorm.DB {
	if tx == nil {
		return def
	}
	return tx
}
