package sqlite

import (
	"context"
	"fmt"

	"github.com/skosovsky/shipdesk/gateway"
)

const schema = `
CREATE TABLE IF NOT EXISTS shippers (
	shipper_id INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS couriers (
	courier_id     INTEGER PRIMARY KEY,
	name           TEXT NOT NULL,
	contact_number TEXT NOT NULL,
	status         TEXT NOT NULL CHECK (status IN ('available', 'resting', 'not_available')),
	email          TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS shipments (
	shipment_id       INTEGER PRIMARY KEY,
	bol_doc_id        INTEGER NOT NULL,
	pod_doc_id        INTEGER NOT NULL,
	shipper_id        INTEGER NOT NULL REFERENCES shippers (shipper_id),
	courier_id        INTEGER REFERENCES couriers (courier_id),
	eta               DATETIME,
	delivery_date     DATETIME,
	shipment_status   TEXT NOT NULL CHECK (shipment_status IN ('pending', 'in_transit', 'delivered', 'cancelled')),
	shipment_comments TEXT,
	dest_address      TEXT NOT NULL,
	source_address    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS shipments_shipper_idx ON shipments (shipper_id);
CREATE INDEX IF NOT EXISTS shipments_courier_idx ON shipments (courier_id);
CREATE INDEX IF NOT EXISTS shipments_bol_idx ON shipments (bol_doc_id);
CREATE TABLE IF NOT EXISTS shipper_processes (
	shipper_id INTEGER PRIMARY KEY REFERENCES shippers (shipper_id),
	email      TEXT NOT NULL,
	thread_id  INTEGER NOT NULL
);`

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return s.fail("migrate", err)
	}
	return nil
}

// Seed inserts f in one transaction. Seeding a database that already holds any of the
// ids fails and leaves it unchanged.
func (s *Store) Seed(ctx context.Context, f gateway.Fixtures) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("seed", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, sh := range f.Shippers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO shippers (shipper_id, name, email) VALUES (?, ?, ?)`,
			sh.ID, sh.Name, sh.Email); err != nil {
			return s.fail(fmt.Sprintf("seed shipper %d", sh.ID), err)
		}
	}
	for _, c := range f.Couriers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO couriers (courier_id, name, contact_number, status, email) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.ContactNumber, string(c.Status), c.Email); err != nil {
			return s.fail(fmt.Sprintf("seed courier %d", c.ID), err)
		}
	}
	for _, sh := range f.Shipments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO shipments (shipment_id, bol_doc_id, pod_doc_id, shipper_id, courier_id, eta,
				delivery_date, shipment_status, shipment_comments, dest_address, source_address)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sh.ID, sh.BOLDocID, sh.PODDocID, sh.ShipperID, sh.CourierID, utcOrNil(sh.ETA),
			utcOrNil(sh.DeliveryDate), string(sh.Status), sh.Comments, sh.DestAddress, sh.SourceAddress); err != nil {
			return s.fail(fmt.Sprintf("seed shipment %d", sh.ID), err)
		}
	}
	for _, p := range f.Processes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO shipper_processes (shipper_id, email, thread_id) VALUES (?, ?, ?)`,
			p.ShipperID, p.Email, p.ThreadID); err != nil {
			return s.fail(fmt.Sprintf("seed process %d", p.ShipperID), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.fail("seed", err)
	}
	s.logger.InfoContext(ctx, "database seeded",
		"shippers", len(f.Shippers), "couriers", len(f.Couriers),
		"shipments", len(f.Shipments), "processes", len(f.Processes))
	return nil
}

// ShipperProcess returns the mail-thread record of a shipper.
func (s *Store) ShipperProcess(ctx context.Context, shipperID int64) (gateway.ShipperProcess, bool, error) {
	var p gateway.ShipperProcess
	err := s.db.QueryRowContext(ctx,
		`SELECT shipper_id, email, thread_id FROM shipper_processes WHERE shipper_id = ?`, shipperID).
		Scan(&p.ShipperID, &p.Email, &p.ThreadID)
	if isNoRows(err) {
		return gateway.ShipperProcess{}, false, nil
	}
	if err != nil {
		return gateway.ShipperProcess{}, false, s.fail("shipper process", err)
	}
	return p, true, nil
}
