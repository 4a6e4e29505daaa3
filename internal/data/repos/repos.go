package repos

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// applyLock adds FOR UPDATE row locking where the dialect supports it. SQLite
// (used in unit tests) serializes writers at the database level instead.
func applyLock(q *gorm.DB) *gorm.DB {
	if q.Dialector != nil && q.Dialector.Name() == "sqlite" {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}
