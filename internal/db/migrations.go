package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'share_request_status') THEN
			CREATE TYPE share_request_status AS ENUM ('pending_acceptance', 'accepted', 'declined', 'expired');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'partnership_request_status') THEN
			CREATE TYPE partnership_request_status AS ENUM ('pending', 'accepted', 'declined');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS companies (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		zip VARCHAR(16) NOT NULL DEFAULT '',
		directory_listed BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		owner_id UUID,
		primary_user_id UUID,
		created_by UUID,
		users JSONB NOT NULL DEFAULT '[]'::jsonb,
		job_share_partners JSONB NOT NULL DEFAULT '[]'::jsonb,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_companies_directory ON companies (zip) WHERE directory_listed AND is_active;`,
	`CREATE TABLE IF NOT EXISTS partnership_requests (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		requester_company_id UUID NOT NULL REFERENCES companies(id),
		requester_user_id UUID NOT NULL,
		target_company_id UUID NOT NULL REFERENCES companies(id),
		message TEXT NOT NULL DEFAULT '',
		status partnership_request_status NOT NULL DEFAULT 'pending',
		responded_by_user_id UUID,
		responded_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_partnership_requests_target ON partnership_requests (target_company_id, status);`,
	`CREATE INDEX IF NOT EXISTS idx_partnership_requests_requester ON partnership_requests (requester_company_id, status);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_partnership_requests_pending
		ON partnership_requests (LEAST(requester_company_id, target_company_id), GREATEST(requester_company_id, target_company_id))
		WHERE status = 'pending';`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		company_id UUID NOT NULL REFERENCES companies(id),
		job_number VARCHAR(64) NOT NULL,
		zip VARCHAR(16) NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'open',
		assigned_company_id UUID NOT NULL REFERENCES companies(id),
		assigned_server_id UUID,
		is_closed BOOLEAN NOT NULL DEFAULT FALSE,
		service_date TIMESTAMPTZ,
		affidavit_refs JSONB NOT NULL DEFAULT '[]'::jsonb,
		decline_reason TEXT,
		chain_encoding VARCHAR(16) NOT NULL DEFAULT '',
		job_share_chain JSONB NOT NULL DEFAULT '{}'::jsonb,
		share_chain JSONB NOT NULL DEFAULT '{}'::jsonb,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_company_id ON jobs (company_id);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_assigned_company_id ON jobs (assigned_company_id);`,
	`CREATE TABLE IF NOT EXISTS share_requests (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		job_id UUID NOT NULL REFERENCES jobs(id),
		source_company_id UUID NOT NULL REFERENCES companies(id),
		source_user_id UUID,
		target_company_id UUID NOT NULL REFERENCES companies(id),
		target_user_id UUID,
		proposed_fee NUMERIC(18,2) NOT NULL,
		accepted_fee NUMERIC(18,2),
		status share_request_status NOT NULL DEFAULT 'pending_acceptance',
		expires_at TIMESTAMPTZ,
		auto_assigned BOOLEAN NOT NULL DEFAULT FALSE,
		decline_reason TEXT,
		responded_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_share_requests_outstanding
		ON share_requests (job_id, target_company_id)
		WHERE status = 'pending_acceptance';`,
	`CREATE INDEX IF NOT EXISTS idx_share_requests_target ON share_requests (target_company_id, status);`,
	`CREATE INDEX IF NOT EXISTS idx_share_requests_source ON share_requests (source_company_id, status);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
