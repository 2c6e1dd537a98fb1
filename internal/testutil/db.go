// Package testutil provides an in-memory store for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nurpe/jobshare/internal/model"
)

// NewDB opens a private in-memory sqlite database with the service schema.
// A single connection keeps every test transaction serialized, which is the
// same guarantee row locks give on Postgres.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	database, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(
		&model.Company{},
		&model.PartnershipRequest{},
		&model.ShareRequest{},
		&model.Job{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

// CompanyOption customizes a seeded company.
type CompanyOption func(*model.Company)

func WithZip(zip string) CompanyOption {
	return func(c *model.Company) { c.Zip = zip }
}

func WithDirectoryListing() CompanyOption {
	return func(c *model.Company) { c.DirectoryListed = true }
}

func WithUsers(users ...model.CompanyUser) CompanyOption {
	return func(c *model.Company) { c.Users = users }
}

func WithoutOwner() CompanyOption {
	return func(c *model.Company) { c.OwnerID = nil }
}

func WithPartners(entries ...model.PartnerEntry) CompanyOption {
	return func(c *model.Company) { c.JobSharePartners = entries }
}

// SeedCompany inserts an active company owned by a fresh user.
func SeedCompany(t testing.TB, db *gorm.DB, name string, opts ...CompanyOption) *model.Company {
	t.Helper()

	owner := uuid.New()
	company := &model.Company{
		ID:       uuid.New(),
		Name:     name,
		Zip:      "10001",
		IsActive: true,
		OwnerID:  &owner,
		Users:    []model.CompanyUser{{UserID: owner, Role: model.UserRoleOwner}},
		Version:  1,
	}
	for _, opt := range opts {
		opt(company)
	}
	if company.JobSharePartners == nil {
		company.JobSharePartners = []model.PartnerEntry{}
	}
	if err := db.WithContext(context.Background()).Create(company).Error; err != nil {
		t.Fatalf("seed company %s: %v", name, err)
	}
	return company
}

// Principal returns a principal acting as the company's owner, or its first
// user when it has no owner.
func Principal(company *model.Company) model.Principal {
	if company.OwnerID != nil {
		return model.Principal{UserID: *company.OwnerID, CompanyID: company.ID, Role: model.UserRoleOwner}
	}
	if len(company.Users) > 0 {
		return model.Principal{UserID: company.Users[0].UserID, CompanyID: company.ID, Role: company.Users[0].Role}
	}
	return model.Principal{UserID: uuid.New(), CompanyID: company.ID, Role: model.UserRoleMember}
}
