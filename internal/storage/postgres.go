// Package storage is the Postgres-backed preference store, dedup ledger, and
// payment table behind the scanner and payment flows.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tondealbot/internal/models"
)

var ErrNotFound = errors.New("not found")

const initSQL = `
CREATE TABLE IF NOT EXISTS app_users (
    user_id BIGINT PRIMARY KEY,
    scanner_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS app_settings (
    id SMALLINT PRIMARY KEY DEFAULT 1,
    wallet_address TEXT
);

CREATE TABLE IF NOT EXISTS app_payments (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL,
    comment TEXT NOT NULL UNIQUE,
    amount_ton NUMERIC(32,9) NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    tx_hash TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS app_payments_user_idx ON app_payments (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS app_scanner_settings (
    user_id BIGINT PRIMARY KEY,
    min_discount NUMERIC(5,2) NOT NULL DEFAULT 25.0,
    min_price_ton NUMERIC(32,9),
    max_price_ton NUMERIC(32,9),
    collections TEXT[],
    poll_seconds INT NOT NULL DEFAULT 60,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS app_found_deals (
    deal_id TEXT PRIMARY KEY,
    url TEXT,
    collection TEXT,
    name TEXT,
    price_ton NUMERIC(32,9),
    floor_ton NUMERIC(32,9),
    discount NUMERIC(6,2),
    seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

type Store struct {
	pool *pgxpool.Pool
}

// New opens the pool and creates the schema idempotently.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, initSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// --- Preference store ---

// GetOrCreateScannerSettings reads a user's settings, inserting default rows
// on first contact.
func (s *Store) GetOrCreateScannerSettings(ctx context.Context, userID int64) (models.UserScannerSettings, error) {
	settings := models.DefaultScannerSettings(userID)
	row := s.pool.QueryRow(ctx, `
		SELECT u.scanner_enabled, st.min_discount, st.min_price_ton, st.max_price_ton, st.collections, st.poll_seconds, st.updated_at
		FROM app_scanner_settings st
		JOIN app_users u USING (user_id)
		WHERE st.user_id = $1
	`, userID)
	err := row.Scan(&settings.Enabled, &settings.MinDiscountPct, &settings.MinPriceTON,
		&settings.MaxPriceTON, &settings.Collections, &settings.PollSeconds, &settings.UpdatedAt)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return settings, fmt.Errorf("select scanner settings for %d: %w", userID, err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO app_users (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	batch.Queue(`INSERT INTO app_scanner_settings (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return settings, fmt.Errorf("create scanner settings for %d: %w", userID, err)
	}
	return settings, nil
}

// UpdateScannerSettings persists the filter fields. The caller validates the
// struct first; named columns only, no dynamic field lists.
func (s *Store) UpdateScannerSettings(ctx context.Context, settings models.UserScannerSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE app_scanner_settings
		SET min_discount = $2, min_price_ton = $3, max_price_ton = $4,
		    collections = $5, poll_seconds = $6, updated_at = NOW()
		WHERE user_id = $1
	`, settings.UserID, settings.MinDiscountPct, settings.MinPriceTON,
		settings.MaxPriceTON, settings.Collections, settings.PollSeconds)
	if err != nil {
		return fmt.Errorf("update scanner settings for %d: %w", settings.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetScannerEnabled(ctx context.Context, userID int64, enabled bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_users (user_id, scanner_enabled) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET scanner_enabled = $2, updated_at = NOW()
	`, userID, enabled)
	if err != nil {
		return fmt.Errorf("set scanner enabled for %d: %w", userID, err)
	}
	return nil
}

func (s *Store) ListEnabledUsers(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM app_users WHERE scanner_enabled = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("list enabled users: %w", err)
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// --- Dedup ledger ---

func (s *Store) WasSeen(ctx context.Context, dealID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM app_found_deals WHERE deal_id = $1`, dealID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("was seen %s: %w", dealID, err)
	}
	return true, nil
}

func (s *Store) MarkSeen(ctx context.Context, deal models.SeenDeal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_found_deals (deal_id, url, collection, name, price_ton, floor_ton, discount, seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (deal_id) DO NOTHING
	`, deal.DealID, deal.URL, deal.Collection, deal.Name, deal.PriceTON, deal.FloorTON, deal.DiscountPct, deal.SeenAt)
	if err != nil {
		return fmt.Errorf("mark seen %s: %w", deal.DealID, err)
	}
	return nil
}

// --- Payments ---

func (s *Store) CreatePayment(ctx context.Context, p models.PaymentRequest) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_payments (id, user_id, comment, amount_ton, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.UserID, p.Comment, p.AmountTON, string(p.Status), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create payment %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) PendingPayments(ctx context.Context) ([]models.PaymentRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, comment, amount_ton, status, COALESCE(tx_hash, ''), created_at
		FROM app_payments WHERE status = 'pending'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("pending payments: %w", err)
	}
	defer rows.Close()

	var out []models.PaymentRequest
	for rows.Next() {
		var p models.PaymentRequest
		var status string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Comment, &p.AmountTON, &status, &p.TxHash, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Status = models.PaymentStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) MarkPaymentPaid(ctx context.Context, id uuid.UUID, txHash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE app_payments SET status = 'paid', tx_hash = $2 WHERE id = $1 AND status = 'pending'
	`, id, txHash)
	if err != nil {
		return fmt.Errorf("mark payment paid %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Wallet setting ---

func (s *Store) SetWallet(ctx context.Context, address string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_settings (id, wallet_address) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET wallet_address = EXCLUDED.wallet_address
	`, address)
	if err != nil {
		return fmt.Errorf("set wallet: %w", err)
	}
	return nil
}

func (s *Store) GetWallet(ctx context.Context) (string, error) {
	var addr *string
	err := s.pool.QueryRow(ctx, `SELECT wallet_address FROM app_settings WHERE id = 1`).Scan(&addr)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get wallet: %w", err)
	}
	if addr == nil {
		return "", nil
	}
	return *addr, nil
}
