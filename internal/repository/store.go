package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflict is returned when a conditional write matched no row
// because another writer got there first.
var ErrVersionConflict = errors.New("version conflict")

// Store groups the repositories over one gorm handle, so that a transaction
// can hand the same set of repositories to its callback.
type Store struct {
	db *gorm.DB

	Companies           *CompanyRepository
	PartnershipRequests *PartnershipRequestRepository
	ShareRequests       *ShareRequestRepository
	Jobs                *JobRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:                  db,
		Companies:           NewCompanyRepository(db),
		PartnershipRequests: NewPartnershipRequestRepository(db),
		ShareRequests:       NewShareRequestRepository(db),
		Jobs:                NewJobRepository(db),
	}
}

func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
