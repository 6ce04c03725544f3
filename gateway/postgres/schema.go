package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/skosovsky/shipdesk/gateway"
)

const schema = `
CREATE TABLE IF NOT EXISTS shippers (
	shipper_id BIGINT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS couriers (
	courier_id     BIGINT PRIMARY KEY,
	name           TEXT NOT NULL,
	contact_number TEXT NOT NULL,
	status         TEXT NOT NULL CHECK (status IN ('available', 'resting', 'not_available')),
	email          TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS shipments (
	shipment_id       BIGINT PRIMARY KEY,
	bol_doc_id        BIGINT NOT NULL,
	pod_doc_id        BIGINT NOT NULL,
	shipper_id        BIGINT NOT NULL REFERENCES shippers (shipper_id),
	courier_id        BIGINT REFERENCES couriers (courier_id),
	eta               TIMESTAMPTZ,
	delivery_date     TIMESTAMPTZ,
	shipment_status   TEXT NOT NULL CHECK (shipment_status IN ('pending', 'in_transit', 'delivered', 'cancelled')),
	shipment_comments TEXT,
	dest_address      TEXT NOT NULL,
	source_address    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS shipments_shipper_idx ON shipments (shipper_id);
CREATE INDEX IF NOT EXISTS shipments_courier_idx ON shipments (courier_id);
CREATE INDEX IF NOT EXISTS shipments_bol_idx ON shipments (bol_doc_id);
CREATE TABLE IF NOT EXISTS shipper_processes (
	shipper_id BIGINT PRIMARY KEY REFERENCES shippers (shipper_id),
	email      TEXT NOT NULL,
	thread_id  BIGINT NOT NULL
);`

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.DB.Exec(ctx, schema); err != nil {
		return s.fail("migrate", err)
	}
	return nil
}

// Seed inserts f in one transaction using a single batch.
func (s *Store) Seed(ctx context.Context, f gateway.Fixtures) (err error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return s.fail("seed", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	batch := &pgx.Batch{}
	for _, sh := range f.Shippers {
		batch.Queue(`INSERT INTO shippers (shipper_id, name, email) VALUES ($1, $2, $3)`,
			sh.ID, sh.Name, sh.Email)
	}
	for _, c := range f.Couriers {
		batch.Queue(`INSERT INTO couriers (courier_id, name, contact_number, status, email) VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.Name, c.ContactNumber, string(c.Status), c.Email)
	}
	for _, sh := range f.Shipments {
		batch.Queue(`INSERT INTO shipments (shipment_id, bol_doc_id, pod_doc_id, shipper_id, courier_id, eta,
				delivery_date, shipment_status, shipment_comments, dest_address, source_address)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			sh.ID, sh.BOLDocID, sh.PODDocID, sh.ShipperID, sh.CourierID, sh.ETA,
			sh.DeliveryDate, string(sh.Status), sh.Comments, sh.DestAddress, sh.SourceAddress)
	}
	for _, p := range f.Processes {
		batch.Queue(`INSERT INTO shipper_processes (shipper_id, email, thread_id) VALUES ($1, $2, $3)`,
			p.ShipperID, p.Email, p.ThreadID)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return s.fail(fmt.Sprintf("seed batch of %d", batch.Len()), err)
	}
	if err = tx.Commit(ctx); err != nil {
		return s.fail("seed", err)
	}
	s.logger.InfoContext(ctx, "database seeded",
		"shippers", len(f.Shippers), "couriers", len(f.Couriers),
		"shipments", len(f.Shipments), "processes", len(f.Processes))
	return nil
}
