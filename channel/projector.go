package channel

import (
	"fmt"
	"strings"

	"github.com/skosovsky/shipdesk/orchestrator"
	"github.com/skosovsky/shipdesk/toolkits/shipments"
)

// Projector turns a finished run into reply text. ok is false when there is nothing to send.
type Projector interface {
	Project(in Inbound, res *orchestrator.Result) (text string, ok bool)
}

// ProjectorFunc adapts a function to Projector.
type ProjectorFunc func(in Inbound, res *orchestrator.Result) (string, bool)

// Project calls f.
func (f ProjectorFunc) Project(in Inbound, res *orchestrator.Result) (string, bool) { return f(in, res) }

// DefaultProjector renders the model's text in orchestrator.ResultProse mode. In
// orchestrator.ResultToolOutput mode it renders the last tool round instead: ETA updates as
// an acknowledgement, found shipments as the supplier summary, and the model's text when
// the round produced neither.
type DefaultProjector struct{}

// Project implements Projector.
func (DefaultProjector) Project(in Inbound, res *orchestrator.Result) (string, bool) {
	if res == nil {
		return "", false
	}
	if res.Mode != orchestrator.ResultToolOutput || res.Session == nil {
		return res.Text, res.Text != ""
	}
	results := res.Session.LastToolResults()
	if updated := shipments.ETAUpdates(results); len(updated) > 0 {
		ids := make([]int64, 0, len(updated))
		for _, s := range updated {
			ids = append(ids, s.ID)
		}
		return etaAck(in.Kind, ids), true
	}
	if found := shipments.ShipmentsFrom(res.ToolOutputs); len(found) > 0 {
		return summary(in.Kind, shipments.Summaries(found)), true
	}
	return res.Text, res.Text != ""
}

const (
	greeting = "Dear Supplier,\n\n"
	signoff  = "\nBest regards,\nYour Logistics Team\n"
)

func etaAck(kind Kind, ids []int64) string {
	var b strings.Builder
	if kind == Chat {
		for _, id := range ids {
			fmt.Fprintf(&b, "Hey, the ETA of shipment %d has been updated in the system.\n", id)
		}
		return b.String()
	}
	b.WriteString(greeting)
	for _, id := range ids {
		fmt.Fprintf(&b, "This is to inform you that the Estimated Time of Arrival (ETA) for shipment ID %d has been successfully updated in our system.\n", id)
	}
	b.WriteString(signoff)
	return b.String()
}

func summary(kind Kind, list []shipments.Summary) string {
	var b strings.Builder
	if kind == Chat {
		for _, s := range list {
			fmt.Fprintf(&b, "Shipment %d: %s, ETA %s, delivery %s, %s -> %s\n",
				s.ShipmentID, s.Status, s.ETA, s.DeliveryDate, s.SourceAddress, s.DestAddress)
		}
		return b.String()
	}
	b.WriteString(greeting)
	b.WriteString("Please find below the information on your current shipments.\n")
	for _, s := range list {
		fmt.Fprintf(&b, "\nShipment ID: %d\nShipment Status: %s\nETA: %s\nDelivery Date: %s\nSource Address: %s\nDestination Address: %s\n",
			s.ShipmentID, s.Status, s.ETA, s.DeliveryDate, s.SourceAddress, s.DestAddress)
	}
	b.WriteString(signoff)
	return b.String()
}
