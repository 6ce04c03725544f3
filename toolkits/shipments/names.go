package shipments

// ToolName is the model-facing name of a shipment tool.
type ToolName string

const (
	GetShipmentByID              ToolName = "get_shipment_by_id"
	GetShipmentByBOLID           ToolName = "get_shipment_by_bol_id"
	GetAllShipments              ToolName = "get_all_shipments"
	GetShipmentsByCourierContact ToolName = "get_shipments_by_courier_contact"
	UpdateShipmentETA            ToolName = "update_shipment_eta"
)

// ToolNames lists every shipment tool in registration order.
var ToolNames = []ToolName{
	GetShipmentByID,
	GetShipmentByBOLID,
	GetAllShipments,
	GetShipmentsByCourierContact,
	UpdateShipmentETA,
}

// ParseToolName returns the ToolName for s, if it names a shipment tool.
func ParseToolName(s string) (ToolName, bool) {
	n := ToolName(s)
	switch n {
	case GetShipmentByID, GetShipmentByBOLID, GetAllShipments, GetShipmentsByCourierContact, UpdateShipmentETA:
		return n, true
	default:
		return "", false
	}
}

// Mutating reports whether the tool writes to the store.
func (n ToolName) Mutating() bool {
	switch n {
	case UpdateShipmentETA:
		return true
	case GetShipmentByID, GetShipmentByBOLID, GetAllShipments, GetShipmentsByCourierContact:
		return false
	default:
		return false
	}
}

// Description is the text the model sees for the tool.
func (n ToolName) Description() string {
	switch n {
	case GetShipmentByID:
		return "Look up one shipment by its shipment id. Returns found=false when no such shipment belongs to the requester."
	case GetShipmentByBOLID:
		return "Look up one shipment by its bill of lading (BOL) document id. Returns found=false when nothing matches."
	case GetAllShipments:
		return "List every shipment of a shipper, identified by the shipper's email address."
	case GetShipmentsByCourierContact:
		return "List the shipments assigned to a courier, identified by the courier's contact phone number."
	case UpdateShipmentETA:
		return "Delay a shipment's estimated time of arrival by a positive number of seconds. Returns the updated shipment."
	default:
		return ""
	}
}
