// Package sqlite is a single-file gateway.Gateway backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/skosovsky/shipdesk/gateway"
)

// Store implements gateway.Gateway and gateway.Operator.
type Store struct {
	db     *sql.DB
	now    gateway.Clock
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used when an ETA update finds no stored ETA.
func WithClock(c gateway.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.now = c
		}
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open opens the database at dsn (a file path or ":memory:") and enables foreign keys.
// In-memory databases are pinned to one connection so every query sees the same data.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", dsn, err)
	}
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, gateway.Unavailable("sqlite: enable foreign keys", err)
	}
	return New(db, opts...), nil
}

// New wraps an existing *sql.DB opened with the "sqlite" driver.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: gateway.SystemClock, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// ShipmentByID implements gateway.Gateway.
func (s *Store) ShipmentByID(ctx context.Context, id int64, shipperEmail string) (gateway.Shipment, bool, error) {
	if email := normEmail(shipperEmail); email != "" {
		return s.one(ctx, "shipment by id", gateway.WhereIDAndShipper, id, email)
	}
	return s.one(ctx, "shipment by id", gateway.WhereID, id)
}

// ShipmentByBOL implements gateway.Gateway.
func (s *Store) ShipmentByBOL(ctx context.Context, bolID int64, shipperEmail string) (gateway.Shipment, bool, error) {
	if email := normEmail(shipperEmail); email != "" {
		return s.one(ctx, "shipment by bol", gateway.WhereBOLAndShipper, bolID, email)
	}
	return s.one(ctx, "shipment by bol", gateway.WhereBOL, bolID)
}

// ShipmentsByShipperEmail implements gateway.Gateway.
func (s *Store) ShipmentsByShipperEmail(ctx context.Context, email string) ([]gateway.Shipment, error) {
	return s.many(ctx, "shipments by shipper", gateway.WhereShipperEmail, normEmail(email))
}

// ShipmentsByCourierContact implements gateway.Gateway.
func (s *Store) ShipmentsByCourierContact(ctx context.Context, contactNumber string) ([]gateway.Shipment, error) {
	return s.many(ctx, "shipments by courier", gateway.WhereCourierPhone, strings.TrimSpace(contactNumber))
}

// UpdateShipmentETA implements gateway.Gateway. The read and the write share one transaction.
func (s *Store) UpdateShipmentETA(ctx context.Context, id int64, seconds int64) (gateway.Shipment, bool, error) {
	if err := gateway.CheckDelay(seconds); err != nil {
		return gateway.Shipment{}, false, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return gateway.Shipment{}, false, s.fail("update eta", err)
	}
	defer func() { _ = tx.Rollback() }()

	var eta *time.Time
	err = tx.QueryRowContext(ctx, `SELECT eta FROM shipments WHERE shipment_id = ?`, id).Scan(&eta)
	if isNoRows(err) {
		return gateway.Shipment{}, false, nil
	}
	if err != nil {
		return gateway.Shipment{}, false, s.fail("update eta", err)
	}
	next := gateway.ShiftETA(eta, seconds, s.now).UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE shipments SET eta = ? WHERE shipment_id = ?`, next, id); err != nil {
		return gateway.Shipment{}, false, s.fail("update eta", err)
	}
	shipment, err := gateway.ScanShipment(tx.QueryRowContext(ctx, gateway.SelectShipments+gateway.WhereID, id))
	if err != nil {
		return gateway.Shipment{}, false, s.fail("update eta", err)
	}
	if err := tx.Commit(); err != nil {
		return gateway.Shipment{}, false, s.fail("update eta", err)
	}
	s.logger.InfoContext(ctx, "shipment eta updated", "shipment_id", id, "seconds", seconds, "eta", next)
	return shipment, true, nil
}

// ResetShipmentETA implements gateway.Operator. A nil eta clears it.
func (s *Store) ResetShipmentETA(ctx context.Context, id int64, eta *time.Time) error {
	return s.exec(ctx, "reset eta", `UPDATE shipments SET eta = ? WHERE shipment_id = ?`, utcOrNil(eta), id)
}

// ResetShipmentStatus implements gateway.Operator.
func (s *Store) ResetShipmentStatus(ctx context.Context, id int64, status gateway.ShipmentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", gateway.ErrInvalidArgument, status)
	}
	return s.exec(ctx, "reset status", `UPDATE shipments SET shipment_status = ? WHERE shipment_id = ?`, string(status), id)
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return s.fail(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.fail(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, gateway.ErrNotFound)
	}
	return nil
}

func (s *Store) one(ctx context.Context, op, where string, args ...any) (gateway.Shipment, bool, error) {
	shipment, err := gateway.ScanShipment(s.db.QueryRowContext(ctx, gateway.SelectShipments+where, args...))
	if isNoRows(err) {
		return gateway.Shipment{}, false, nil
	}
	if err != nil {
		return gateway.Shipment{}, false, s.fail(op, err)
	}
	return shipment, true, nil
}

func (s *Store) many(ctx context.Context, op, where string, args ...any) ([]gateway.Shipment, error) {
	rows, err := s.db.QueryContext(ctx, gateway.SelectShipments+where, args...)
	if err != nil {
		return nil, s.fail(op, err)
	}
	defer rows.Close()
	out := []gateway.Shipment{}
	for rows.Next() {
		shipment, err := gateway.ScanShipment(rows)
		if err != nil {
			return nil, s.fail(op, err)
		}
		out = append(out, shipment)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(op, err)
	}
	return out, nil
}

func (s *Store) fail(op string, err error) error {
	err = gateway.Unavailable("sqlite: "+op, err)
	s.logger.Error("shipment store failure", "op", op, "error", err)
	return err
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

var (
	_ gateway.Gateway  = (*Store)(nil)
	_ gateway.Operator = (*Store)(nil)
)
