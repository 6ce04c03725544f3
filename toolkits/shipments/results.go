package shipments

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/skosovsky/shipdesk/conversation"
	"github.com/skosovsky/shipdesk/gateway"
)

// ShipmentsFrom collects the shipments carried by tool outputs, in order. Outputs that are
// error payloads, not-found lookups or foreign JSON are skipped.
func ShipmentsFrom(outputs []json.RawMessage) []gateway.Shipment {
	var out []gateway.Shipment
	for _, raw := range outputs {
		var body struct {
			Found     *bool              `json:"found"`
			Shipment  *gateway.Shipment  `json:"shipment"`
			Shipments []gateway.Shipment `json:"shipments"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			continue
		}
		switch {
		case body.Found != nil:
			if *body.Found && body.Shipment != nil {
				out = append(out, *body.Shipment)
			}
		case body.Shipments != nil:
			out = append(out, body.Shipments...)
		}
	}
	return out
}

// FirstShipperEmail returns the shipper email of the first shipment in outputs.
func FirstShipperEmail(outputs []json.RawMessage) (string, bool) {
	for _, s := range ShipmentsFrom(outputs) {
		if s.Shipper != nil && s.Shipper.Email != "" {
			return s.Shipper.Email, true
		}
	}
	return "", false
}

// FirstCourierContact returns the courier contact number of the first assigned shipment in outputs.
func FirstCourierContact(outputs []json.RawMessage) (string, bool) {
	for _, s := range ShipmentsFrom(outputs) {
		if s.Courier != nil && s.Courier.ContactNumber != "" {
			return s.Courier.ContactNumber, true
		}
	}
	return "", false
}

// FirstShipmentID returns the id of the first shipment in outputs.
func FirstShipmentID(outputs []json.RawMessage) (int64, bool) {
	list := ShipmentsFrom(outputs)
	if len(list) == 0 {
		return 0, false
	}
	return list[0].ID, true
}

// Summary is the reply-facing view of a shipment.
type Summary struct {
	ShipmentID    int64  `json:"shipment_id"`
	Status        string `json:"shipment_status"`
	ETA           string `json:"eta"`
	DeliveryDate  string `json:"delivery_date"`
	SourceAddress string `json:"source_address"`
	DestAddress   string `json:"dest_address"`
}

// SummaryTimeLayout formats ETA and delivery date in summaries.
const SummaryTimeLayout = "2006-01-02 15:04 MST"

// Summaries projects shipments for a reply. Missing dates render as "not set".
func Summaries(list []gateway.Shipment) []Summary {
	out := make([]Summary, 0, len(list))
	for _, s := range list {
		out = append(out, Summary{
			ShipmentID:    s.ID,
			Status:        strings.ReplaceAll(string(s.Status), "_", " "),
			ETA:           formatTime(s.ETA),
			DeliveryDate:  formatTime(s.DeliveryDate),
			SourceAddress: s.SourceAddress,
			DestAddress:   s.DestAddress,
		})
	}
	return out
}

// ETAUpdates returns the shipments successfully changed by update_shipment_eta in results.
func ETAUpdates(results []conversation.ToolCallResult) []gateway.Shipment {
	var out []gateway.Shipment
	for _, r := range results {
		if r.IsError || r.Name != string(UpdateShipmentETA) {
			continue
		}
		out = append(out, ShipmentsFrom([]json.RawMessage{r.Output})...)
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "not set"
	}
	return t.UTC().Format(SummaryTimeLayout)
}
