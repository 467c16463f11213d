package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the entitlement store. Host
// resource tables are not created here; they belong to the application.
var Migrations = migrate.NewGroup("entitle")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_entitle_subscriptions",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS entitle_subscriptions (
    id                   TEXT PRIMARY KEY,
    tenant_id            TEXT NOT NULL,
    plan                 TEXT NOT NULL DEFAULT 'free',
    status               TEXT NOT NULL DEFAULT 'active',
    cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
    current_period_start TIMESTAMPTZ,
    current_period_end   TIMESTAMPTZ,
    provider_id          TEXT NOT NULL DEFAULT '',
    metadata             JSONB NOT NULL DEFAULT '{}',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_entitle_subs_tenant ON entitle_subscriptions (tenant_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS entitle_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_entitle_module_subscriptions",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS entitle_module_subscriptions (
    id         TEXT PRIMARY KEY,
    tenant_id  TEXT NOT NULL,
    module_id  TEXT NOT NULL,
    tier       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_entitle_mods_tenant_module ON entitle_module_subscriptions (tenant_id, module_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS entitle_module_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_entitle_credit_accounts",
			Version: "20260301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS entitle_credit_accounts (
    tenant_id         TEXT PRIMARY KEY,
    monthly_allowance BIGINT NOT NULL DEFAULT 0,
    monthly_used      BIGINT NOT NULL DEFAULT 0,
    purchased_balance BIGINT NOT NULL DEFAULT 0,
    total_consumed    BIGINT NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT chk_entitle_credit_monthly CHECK (monthly_used <= monthly_allowance OR monthly_used = 0),
    CONSTRAINT chk_entitle_credit_purchased CHECK (purchased_balance >= 0)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS entitle_credit_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_entitle_credit_ledger",
			Version: "20260301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS entitle_credit_consumptions (
    id             TEXT PRIMARY KEY,
    tenant_id      TEXT NOT NULL,
    amount         BIGINT NOT NULL,
    from_monthly   BIGINT NOT NULL DEFAULT 0,
    from_purchased BIGINT NOT NULL DEFAULT 0,
    operation_type TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_entitle_consumptions_tenant ON entitle_credit_consumptions (tenant_id, created_at DESC);

CREATE TABLE IF NOT EXISTS entitle_credit_grants (
    id         TEXT PRIMARY KEY,
    tenant_id  TEXT NOT NULL,
    amount     BIGINT NOT NULL,
    reference  TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_entitle_grants_tenant ON entitle_credit_grants (tenant_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS entitle_credit_grants;
DROP TABLE IF EXISTS entitle_credit_consumptions;
`)
				return err
			},
		},
	)
}
