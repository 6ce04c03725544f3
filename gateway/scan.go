package gateway

import (
	"time"
)

// Row is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type Row interface {
	Scan(dest ...any) error
}

// SelectShipments selects every column ScanShipment reads. Append a WHERE clause with
// "?" placeholders; backends that need another placeholder style rebind it.
const SelectShipments = `SELECT s.shipment_id, s.bol_doc_id, s.pod_doc_id, s.shipper_id, s.courier_id,
       s.eta, s.delivery_date, s.shipment_status, s.shipment_comments,
       s.source_address, s.dest_address,
       sh.name, sh.email,
       c.name, c.contact_number, c.status, c.email
FROM shipments s
JOIN shippers sh ON sh.shipper_id = s.shipper_id
LEFT JOIN couriers c ON c.courier_id = s.courier_id`

// Shared WHERE clauses. Rows are ordered by shipment_id so list results are stable.
const (
	WhereID            = ` WHERE s.shipment_id = ?`
	WhereIDAndShipper  = ` WHERE s.shipment_id = ? AND lower(sh.email) = ?`
	WhereBOL           = ` WHERE s.bol_doc_id = ? ORDER BY s.shipment_id LIMIT 1`
	WhereBOLAndShipper = ` WHERE s.bol_doc_id = ? AND lower(sh.email) = ? ORDER BY s.shipment_id LIMIT 1`
	WhereShipperEmail  = ` WHERE lower(sh.email) = ? ORDER BY s.shipment_id`
	WhereCourierPhone  = ` WHERE c.contact_number = ? ORDER BY s.shipment_id`
)

// ScanShipment reads one row selected with SelectShipments.
func ScanShipment(row Row) (Shipment, error) {
	var (
		s            Shipment
		status       string
		sh           Shipper
		courierName  *string
		courierPhone *string
		courierState *string
		courierEmail *string
		eta          *time.Time
		delivered    *time.Time
	)
	err := row.Scan(
		&s.ID, &s.BOLDocID, &s.PODDocID, &s.ShipperID, &s.CourierID,
		&eta, &delivered, &status, &s.Comments,
		&s.SourceAddress, &s.DestAddress,
		&sh.Name, &sh.Email,
		&courierName, &courierPhone, &courierState, &courierEmail,
	)
	if err != nil {
		return Shipment{}, err
	}
	s.Status = ShipmentStatus(status)
	s.ETA = utc(eta)
	s.DeliveryDate = utc(delivered)
	sh.ID = s.ShipperID
	s.Shipper = &sh
	if s.CourierID != nil && courierName != nil {
		s.Courier = &Courier{
			ID:            *s.CourierID,
			Name:          *courierName,
			ContactNumber: deref(courierPhone),
			Status:        CourierStatus(deref(courierState)),
			Email:         deref(courierEmail),
		}
	}
	return s, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
