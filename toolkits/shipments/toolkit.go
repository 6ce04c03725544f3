// Package shipments exposes a gateway.Gateway to the model as the shipment tool surface:
// lookups by id, BOL, shipper and courier, and ETA delays.
package shipments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skosovsky/shipdesk"
	"github.com/skosovsky/shipdesk/gateway"
)

// Toolkit builds the shipment tools over one gateway.
type Toolkit struct {
	gw      gateway.Gateway
	policy  IdentityPolicy
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Toolkit.
type Option func(*Toolkit)

// WithIdentityPolicy sets the identity policy. Default is IdentityFromChannel.
func WithIdentityPolicy(p IdentityPolicy) Option {
	return func(k *Toolkit) { k.policy = p }
}

// WithToolTimeout sets a per-tool timeout. Zero leaves the registry default.
func WithToolTimeout(d time.Duration) Option {
	return func(k *Toolkit) { k.timeout = d }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(k *Toolkit) {
		if l != nil {
			k.logger = l
		}
	}
}

// New returns a Toolkit over gw.
func New(gw gateway.Gateway, opts ...Option) (*Toolkit, error) {
	if gw == nil {
		return nil, errors.New("shipments: nil gateway")
	}
	k := &Toolkit{gw: gw, policy: IdentityFromChannel, logger: slog.Default()}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// Policy returns the configured identity policy.
func (k *Toolkit) Policy() IdentityPolicy { return k.policy }

// ShipmentByIDArgs are the arguments of get_shipment_by_id.
type ShipmentByIDArgs struct {
	ShipmentID     int64  `json:"shipment_id" description:"Shipment number as written by the customer"`
	RequesterEmail string `json:"requester_email,omitempty" description:"Email address of the shipper asking"`
}

func (a ShipmentByIDArgs) Validate() error { return positive("shipment_id", a.ShipmentID) }

// ShipmentByBOLArgs are the arguments of get_shipment_by_bol_id.
type ShipmentByBOLArgs struct {
	BOLID          int64  `json:"bol_id" description:"Bill of lading document id"`
	RequesterEmail string `json:"requester_email,omitempty" description:"Email address of the shipper asking"`
}

func (a ShipmentByBOLArgs) Validate() error { return positive("bol_id", a.BOLID) }

// AllShipmentsArgs are the arguments of get_all_shipments.
type AllShipmentsArgs struct {
	ShipperEmail string `json:"shipper_email,omitempty" description:"Email address of the shipper"`
}

// CourierShipmentsArgs are the arguments of get_shipments_by_courier_contact.
type CourierShipmentsArgs struct {
	ContactNumber string `json:"contact_number,omitempty" description:"Courier contact phone number, e.g. (974)583-4681"`
}

// UpdateETAArgs are the arguments of update_shipment_eta.
type UpdateETAArgs struct {
	ShipmentID int64 `json:"shipment_id" description:"Shipment number"`
	Seconds    int64 `json:"seconds" jsonschema:"maximum=31622400" description:"Delay in seconds, greater than 0 and at most 366 days (3 hours = 10800)"`
}

func (a UpdateETAArgs) Validate() error { return positive("shipment_id", a.ShipmentID) }

// LookupResult is the output of single-shipment tools. Shipment is null when not found.
type LookupResult struct {
	Found    bool              `json:"found"`
	Shipment *gateway.Shipment `json:"shipment"`
}

// ListResult is the output of list tools, in gateway order.
type ListResult struct {
	Shipments []gateway.Shipment `json:"shipments"`
}

// Tools builds every shipment tool in ToolNames order.
func (k *Toolkit) Tools() ([]shipdesk.Tool, error) {
	tools := make([]shipdesk.Tool, 0, len(ToolNames))
	for _, name := range ToolNames {
		t, err := k.Tool(name)
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// Register adds every shipment tool to reg.
func (k *Toolkit) Register(reg *shipdesk.Registry) error {
	tools, err := k.Tools()
	if err != nil {
		return err
	}
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Tool builds the named tool.
func (k *Toolkit) Tool(name ToolName) (shipdesk.Tool, error) {
	opts := []shipdesk.ToolOption{shipdesk.WithTags("shipments")}
	if k.timeout > 0 {
		opts = append(opts, shipdesk.WithTimeout(k.timeout))
	}
	if name.Mutating() {
		opts = append(opts, shipdesk.WithMutating())
	}
	desc := name.Description()
	switch name {
	case GetShipmentByID:
		return shipdesk.NewTool(string(name), desc, k.shipmentByID, opts...)
	case GetShipmentByBOLID:
		return shipdesk.NewTool(string(name), desc, k.shipmentByBOL, opts...)
	case GetAllShipments:
		return shipdesk.NewTool(string(name), desc, k.allShipments, opts...)
	case GetShipmentsByCourierContact:
		return shipdesk.NewTool(string(name), desc, k.courierShipments, opts...)
	case UpdateShipmentETA:
		return shipdesk.NewTool(string(name), desc, k.updateETA, opts...)
	default:
		return nil, fmt.Errorf("shipments: unknown tool %q", name)
	}
}

func (k *Toolkit) shipmentByID(ctx context.Context, a ShipmentByIDArgs) (LookupResult, error) {
	email, err := k.resolveIdentity(ctx, GetShipmentByID, fieldEmail, a.RequesterEmail, false)
	if err != nil {
		return LookupResult{}, err
	}
	s, found, err := k.gw.ShipmentByID(ctx, a.ShipmentID, email)
	return lookup(s, found, err)
}

func (k *Toolkit) shipmentByBOL(ctx context.Context, a ShipmentByBOLArgs) (LookupResult, error) {
	email, err := k.resolveIdentity(ctx, GetShipmentByBOLID, fieldEmail, a.RequesterEmail, false)
	if err != nil {
		return LookupResult{}, err
	}
	s, found, err := k.gw.ShipmentByBOL(ctx, a.BOLID, email)
	return lookup(s, found, err)
}

func (k *Toolkit) allShipments(ctx context.Context, a AllShipmentsArgs) (ListResult, error) {
	email, err := k.resolveIdentity(ctx, GetAllShipments, fieldEmail, a.ShipperEmail, true)
	if err != nil {
		return ListResult{}, err
	}
	list, err := k.gw.ShipmentsByShipperEmail(ctx, email)
	return listing(list, err)
}

func (k *Toolkit) courierShipments(ctx context.Context, a CourierShipmentsArgs) (ListResult, error) {
	phone, err := k.resolveIdentity(ctx, GetShipmentsByCourierContact, fieldPhone, a.ContactNumber, true)
	if err != nil {
		return ListResult{}, err
	}
	list, err := k.gw.ShipmentsByCourierContact(ctx, phone)
	return listing(list, err)
}

func (k *Toolkit) updateETA(ctx context.Context, a UpdateETAArgs) (LookupResult, error) {
	if err := k.requireCaller(ctx); err != nil {
		return LookupResult{}, err
	}
	s, found, err := k.gw.UpdateShipmentETA(ctx, a.ShipmentID, a.Seconds)
	return lookup(s, found, err)
}

func lookup(s gateway.Shipment, found bool, err error) (LookupResult, error) {
	if err != nil {
		return LookupResult{}, classify(err)
	}
	if !found {
		return LookupResult{Found: false}, nil
	}
	return LookupResult{Found: true, Shipment: &s}, nil
}

func listing(list []gateway.Shipment, err error) (ListResult, error) {
	if err != nil {
		return ListResult{}, classify(err)
	}
	if list == nil {
		list = []gateway.Shipment{}
	}
	return ListResult{Shipments: list}, nil
}

// classify turns gateway errors into the registry taxonomy: invalid arguments go back to
// the model, everything else stays internal.
func classify(err error) error {
	if errors.Is(err, gateway.ErrInvalidArgument) {
		return &shipdesk.ClientError{Reason: err.Error(), Err: err}
	}
	return &shipdesk.SystemError{Err: err}
}

func positive(field string, v int64) error {
	if v <= 0 {
		return fmt.Errorf("%s must be a positive number", field)
	}
	return nil
}
