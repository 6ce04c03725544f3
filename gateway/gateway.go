// Package gateway defines the shipment data-access contract used by the shipment tools
// and the record types it returns. Storage backends live in the sqlite and postgres
// subpackages.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidArgument reports a request the gateway refuses to execute, such as a
	// non-positive ETA delay. Its message is safe to show to the model.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnavailable reports connectivity or integrity failures of the backing store.
	// Its details must not reach the model.
	ErrUnavailable = errors.New("shipment store unavailable")
	// ErrNotFound is returned by Operator methods for a missing shipment. Gateway lookups
	// report missing records with found=false instead.
	ErrNotFound = errors.New("shipment not found")
)

// Unavailable wraps a driver error so it matches ErrUnavailable while keeping the cause for logs.
// Context errors are passed through wrapped but unclassified.
func Unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// ShipmentStatus is the lifecycle state of a shipment.
type ShipmentStatus string

const (
	StatusPending   ShipmentStatus = "pending"
	StatusInTransit ShipmentStatus = "in_transit"
	StatusDelivered ShipmentStatus = "delivered"
	StatusCancelled ShipmentStatus = "cancelled"
)

// ShipmentStatuses lists every status in declaration order.
var ShipmentStatuses = []ShipmentStatus{StatusPending, StatusInTransit, StatusDelivered, StatusCancelled}

// Valid reports whether s is a known status.
func (s ShipmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// CourierStatus is the availability of a courier.
type CourierStatus string

const (
	CourierAvailable    CourierStatus = "available"
	CourierResting      CourierStatus = "resting"
	CourierNotAvailable CourierStatus = "not_available"
)

// CourierStatuses lists every courier status in declaration order.
var CourierStatuses = []CourierStatus{CourierAvailable, CourierResting, CourierNotAvailable}

// Shipper is a customer that sends shipments.
type Shipper struct {
	ID    int64  `json:"shipper_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Courier delivers shipments.
type Courier struct {
	ID            int64         `json:"courier_id"`
	Name          string        `json:"name"`
	ContactNumber string        `json:"contact_number"`
	Status        CourierStatus `json:"status"`
	Email         string        `json:"email"`
}

// Shipment is one shipment record with its shipper and, when assigned, its courier.
type Shipment struct {
	ID            int64          `json:"shipment_id"`
	BOLDocID      int64          `json:"bol_doc_id"`
	PODDocID      int64          `json:"pod_doc_id"`
	ShipperID     int64          `json:"shipper_id"`
	CourierID     *int64         `json:"courier_id"`
	ETA           *time.Time     `json:"eta"`
	DeliveryDate  *time.Time     `json:"delivery_date"`
	Status        ShipmentStatus `json:"status"`
	Comments      *string        `json:"comments"`
	SourceAddress string         `json:"source_address"`
	DestAddress   string         `json:"dest_address"`
	Shipper       *Shipper       `json:"shipper,omitempty"`
	Courier       *Courier       `json:"courier,omitempty"`
}

// ShipperProcess tracks the mail thread a shipper is handled in.
type ShipperProcess struct {
	ShipperID int64  `json:"shipper_id"`
	Email     string `json:"email"`
	ThreadID  int64  `json:"thread_id"`
}

// Gateway is the read/update surface the shipment tools need.
//
// Lookups return found=false for missing records; that is not an error. A non-empty
// shipperEmail scopes single-shipment lookups to that shipper, and a shipment owned by
// someone else is reported as not found. Implementations must be safe for concurrent use.
type Gateway interface {
	ShipmentByID(ctx context.Context, id int64, shipperEmail string) (Shipment, bool, error)
	ShipmentByBOL(ctx context.Context, bolID int64, shipperEmail string) (Shipment, bool, error)
	ShipmentsByShipperEmail(ctx context.Context, email string) ([]Shipment, error)
	ShipmentsByCourierContact(ctx context.Context, contactNumber string) ([]Shipment, error)
	// UpdateShipmentETA adds seconds to the stored ETA, or sets now+seconds when none is
	// stored. seconds <= 0 fails with ErrInvalidArgument before anything is written.
	UpdateShipmentETA(ctx context.Context, id int64, seconds int64) (Shipment, bool, error)
}

// Operator holds maintenance operations that are never exposed to the model.
type Operator interface {
	ResetShipmentETA(ctx context.Context, id int64, eta *time.Time) error
	ResetShipmentStatus(ctx context.Context, id int64, status ShipmentStatus) error
}

// Clock returns the current time. Backends take one so ETA arithmetic is testable.
type Clock func() time.Time

// SystemClock is the default Clock, in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

// MaxDelaySeconds is the largest ETA delay accepted in one update: 366 days.
const MaxDelaySeconds int64 = 366 * 24 * 60 * 60

// CheckDelay validates an ETA delay: 0 < seconds <= MaxDelaySeconds.
func CheckDelay(seconds int64) error {
	if seconds <= 0 {
		return fmt.Errorf("%w: seconds must be greater than 0, got %d", ErrInvalidArgument, seconds)
	}
	if seconds > MaxDelaySeconds {
		return fmt.Errorf("%w: seconds must be at most %d (366 days), got %d", ErrInvalidArgument, MaxDelaySeconds, seconds)
	}
	return nil
}

// ShiftETA returns the ETA after a delay of seconds: eta+seconds, or now+seconds when eta is nil.
// seconds must have passed CheckDelay.
func ShiftETA(eta *time.Time, seconds int64, now Clock) time.Time {
	d := time.Duration(seconds) * time.Second
	if eta == nil {
		return now().Add(d)
	}
	return eta.Add(d)
}
