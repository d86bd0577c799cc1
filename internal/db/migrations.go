package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id                   UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		plate                TEXT NOT NULL,
		plate_normalized     TEXT NOT NULL,
		category             TEXT NOT NULL DEFAULT 'visitor',
		vehicle_type         TEXT NOT NULL DEFAULT 'car',
		owner_name           TEXT,
		owner_phone          TEXT,
		owner_email          TEXT,
		subscription_expires TIMESTAMPTZ,
		notes                TEXT,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_vehicles_plate_normalized ON vehicles(plate_normalized);`,
	`CREATE TABLE IF NOT EXISTS rules (
		id          UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		key         TEXT NOT NULL,
		value       JSONB NOT NULL,
		description TEXT,
		updated_by  TEXT,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_rules_key ON rules(key);`,
	`CREATE TABLE IF NOT EXISTS rule_history (
		id         UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		rule_key   TEXT NOT NULL,
		old_value  JSONB,
		new_value  JSONB NOT NULL,
		changed_by TEXT,
		changed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_rule_history_key ON rule_history(rule_key);`,
	`CREATE TABLE IF NOT EXISTS tariffs (
		id                 UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name               TEXT NOT NULL,
		vehicle_types      JSONB NOT NULL DEFAULT '["car"]',
		first_hour_tnd     NUMERIC(10,3) NOT NULL DEFAULT 2.0,
		extra_hour_tnd     NUMERIC(10,3) NOT NULL DEFAULT 1.0,
		daily_max_tnd      NUMERIC(10,3) NOT NULL DEFAULT 20.0,
		night_multiplier   NUMERIC(6,3) NOT NULL DEFAULT 1.5,
		night_start        TEXT NOT NULL DEFAULT '22:00',
		night_end          TEXT NOT NULL DEFAULT '06:00',
		weekend_multiplier NUMERIC(6,3) NOT NULL DEFAULT 1.2,
		valid_from         TIMESTAMPTZ,
		valid_until        TIMESTAMPTZ,
		active             BOOLEAN NOT NULL DEFAULT true,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS events (
		id             UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		plate          TEXT NOT NULL,
		vehicle_id     UUID REFERENCES vehicles(id),
		gate_id        TEXT NOT NULL,
		camera_id      TEXT,
		event_type     TEXT NOT NULL,
		ocr_confidence DOUBLE PRECISION,
		raw_plate      TEXT,
		decision       TEXT,
		rule_applied   TEXT,
		image_url      TEXT,
		timestamp      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_events_plate ON events(plate);`,
	`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);`,
	`CREATE TABLE IF NOT EXISTS decisions (
		id            UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		event_id      UUID REFERENCES events(id),
		plate         TEXT NOT NULL,
		outcome       TEXT NOT NULL,
		reason_code   TEXT NOT NULL,
		rule_ref      TEXT,
		rule_snapshot JSONB,
		facts         JSONB,
		gate_action   TEXT,
		timestamp     TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_plate ON decisions(plate);`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp);`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id               UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		plate            TEXT NOT NULL,
		vehicle_id       UUID REFERENCES vehicles(id),
		entry_event_id   UUID REFERENCES events(id),
		exit_event_id    UUID REFERENCES events(id),
		entry_time       TIMESTAMPTZ NOT NULL,
		exit_time        TIMESTAMPTZ,
		duration_minutes INT,
		tariff_id        UUID REFERENCES tariffs(id),
		tariff_snapshot  JSONB,
		amount_due       NUMERIC(12,3),
		payment_status   TEXT NOT NULL DEFAULT 'pending',
		gate_entry       TEXT,
		gate_exit        TEXT,
		notes            TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_plate ON sessions(plate);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_entry_time ON sessions(entry_time);`,
	// At most one open session per plate. Concurrent entries for the same
	// plate race on the existence check; the second insert must fail here.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_sessions_open_plate ON sessions(plate) WHERE exit_time IS NULL;`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id          UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		alert_type  TEXT NOT NULL,
		severity    TEXT NOT NULL,
		plate       TEXT,
		gate_id     TEXT,
		message     TEXT NOT NULL,
		resolved    BOOLEAN NOT NULL DEFAULT false,
		resolved_by TEXT,
		resolved_at TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_type ON alerts(alert_type);`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);`,
	`CREATE TABLE IF NOT EXISTS users (
		id              UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		username        TEXT NOT NULL,
		full_name       TEXT NOT NULL,
		email           TEXT NOT NULL,
		hashed_password TEXT NOT NULL,
		role            TEXT NOT NULL DEFAULT 'staff',
		active          BOOLEAN NOT NULL DEFAULT true,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_username ON users(username);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_email ON users(email);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
