// Package postgres is a gateway.Gateway backed by a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skosovsky/shipdesk/gateway"
)

// Store implements gateway.Gateway and gateway.Operator.
type Store struct {
	DB     *pgxpool.Pool
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

// Open connects to Postgres at connStr.
func Open(ctx context.Context, connStr string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, gateway.Unavailable("postgres: ping", err)
	}
	return New(pool, opts...), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{DB: pool, now: gateway.SystemClock, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the pool.
func (s *Store) Close() { s.DB.Close() }

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

// UpdateShipmentETA implements gateway.Gateway. The row is locked for the duration of the update.
func (s *Store) UpdateShipmentETA(ctx context.Context, id int64, seconds int64) (shipment gateway.Shipment, found bool, err error) {
	if err := gateway.CheckDelay(seconds); err != nil {
		return gateway.Shipment{}, false, err
	}
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return gateway.Shipment{}, false, s.fail("update eta", err)
	}
	defer func() {
		if err != nil || !found {
			_ = tx.Rollback(ctx)
		}
	}()

	var eta *time.Time
	err = tx.QueryRow(ctx, `SELECT eta FROM shipments WHERE shipment_id = $1 FOR UPDATE`, id).Scan(&eta)
	if errors.Is(err, pgx.ErrNoRows) {
		return gateway.Shipment{}, false, nil
	}
	if err != nil {
		return gateway.Shipment{}, false, s.fail("update eta", err)
	}
	next := gateway.ShiftETA(eta, seconds, s.now).UTC()
	if _, err = tx.Exec(ctx, `UPDATE shipments SET eta = $1 WHERE shipment_id = $2`, next, id); err != nil {
		return gateway.Shipment{}, false, s.fail("update eta", err)
	}
	shipment, err = gateway.ScanShipment(tx.QueryRow(ctx, Rebind(gateway.SelectShipments+gateway.WhereID), id))
	if err != nil {
		return gateway.Shipment{}, false, s.fail("update eta", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return gateway.Shipment{}, false, s.fail("update eta", err)
	}
	s.logger.InfoContext(ctx, "shipment eta updated", "shipment_id", id, "seconds", seconds, "eta", next)
	return shipment, true, nil
}

// ResetShipmentETA implements gateway.Operator. A nil eta clears it.
func (s *Store) ResetShipmentETA(ctx context.Context, id int64, eta *time.Time) error {
	var v *time.Time
	if eta != nil {
		u := eta.UTC()
		v = &u
	}
	return s.exec(ctx, "reset eta", `UPDATE shipments SET eta = $1 WHERE shipment_id = $2`, v, id)
}

// ResetShipmentStatus implements gateway.Operator.
func (s *Store) ResetShipmentStatus(ctx context.Context, id int64, status gateway.ShipmentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", gateway.ErrInvalidArgument, status)
	}
	return s.exec(ctx, "reset status", `UPDATE shipments SET shipment_status = $1 WHERE shipment_id = $2`, string(status), id)
}

func (s *Store) exec(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.DB.Exec(ctx, query, args...)
	if err != nil {
		return s.fail(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, gateway.ErrNotFound)
	}
	return nil
}

func (s *Store) one(ctx context.Context, op, where string, args ...any) (gateway.Shipment, bool, error) {
	shipment, err := gateway.ScanShipment(s.DB.QueryRow(ctx, Rebind(gateway.SelectShipments+where), args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return gateway.Shipment{}, false, nil
	}
	if err != nil {
		return gateway.Shipment{}, false, s.fail(op, err)
	}
	return shipment, true, nil
}

func (s *Store) many(ctx context.Context, op, where string, args ...any) ([]gateway.Shipment, error) {
	rows, err := s.DB.Query(ctx, Rebind(gateway.SelectShipments+where), args...)
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
	err = gateway.Unavailable("postgres: "+op, err)
	s.logger.Error("shipment store failure", "op", op, "error", err)
	return err
}

// Rebind turns "?" placeholders into "$1", "$2", ... Queries must not contain "?" in literals.
func Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

var (
	_ gateway.Gateway  = (*Store)(nil)
	_ gateway.Operator = (*Store)(nil)
)
