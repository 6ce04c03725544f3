package shipments

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/shipdesk"
	"github.com/skosovsky/shipdesk/conversation"
	"github.com/skosovsky/shipdesk/gateway"
	"github.com/skosovsky/shipdesk/orchestrator"
	"github.com/skosovsky/shipdesk/testutil"
)

// End-to-end runs of the loop over a seeded store with a scripted model.

func runScenario(t *testing.T, store gateway.Gateway, query string, id shipdesk.Identity, steps ...testutil.Step) (*orchestrator.Result, *testutil.ScriptedClient, error) {
	t.Helper()
	reg := newRegistry(t, store)
	client := testutil.NewScriptedClient(steps...)
	loop, err := orchestrator.New(client, reg)
	require.NoError(t, err)
	res, err := loop.Run(context.Background(), query, orchestrator.WithIdentity(id))
	return res, client, err
}

var demoSender = shipdesk.Identity{Email: gateway.DemoShipperEmail}

func TestScenario_SingleShipment(t *testing.T) {
	res, client, err := runScenario(t, newStore(t),
		"What is up with my shipment order 5, email mclark@bryant.com", demoSender,
		testutil.CallTools(testutil.ToolCall("toolu_1", string(GetShipmentByID), `{"shipment_id":5,"requester_email":"mclark@bryant.com"}`)),
		testutil.Reply("Shipment 5 is in transit."),
	)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StateDone, res.State)
	assert.Equal(t, 2, client.Calls())

	list := ShipmentsFrom(res.Session.LastToolOutputs())
	require.Len(t, list, 1)
	assert.Equal(t, int64(5), list[0].ID)
	assert.Equal(t, gateway.StatusInTransit, list[0].Status)
}

func TestScenario_AllShipmentsInGatewayOrder(t *testing.T) {
	res, _, err := runScenario(t, newStore(t),
		"What is up with my shipments? email mclark@bryant.com", demoSender,
		testutil.CallTools(testutil.ToolCall("toolu_1", string(GetAllShipments), `{"shipper_email":"mclark@bryant.com"}`)),
		testutil.Reply("You have three shipments."),
	)
	require.NoError(t, err)
	outs := res.Session.LastToolOutputs()
	require.Len(t, outs, 1)
	list := ShipmentsFrom(outs)
	require.Len(t, list, 3)
	for i, id := range gateway.DemoShipmentIDs {
		assert.Equal(t, id, list[i].ID)
	}
}

func TestScenario_NotFoundContinuesToSecondTurn(t *testing.T) {
	res, client, err := runScenario(t, newStore(t),
		"Where is shipment 999999?", demoSender,
		testutil.CallTools(testutil.ToolCall("toolu_1", string(GetShipmentByID), `{"shipment_id":999999}`)),
		testutil.Reply("I could not find shipment 999999. Could you check the number?"),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, client.Calls())
	results := res.Session.LastToolResults()
	require.Len(t, results, 1)
	assert.False(t, results[0].IsError)
	assert.JSONEq(t, `{"found":false,"shipment":null}`, string(results[0].Output))

	second := client.Requests()[1].Messages
	last := second[len(second)-1]
	assert.Equal(t, conversation.RoleTool, last.Role)
}

func TestScenario_ETAUpdate(t *testing.T) {
	store := newStore(t)
	before, _, err := store.ShipmentByID(context.Background(), 7, "")
	require.NoError(t, err)

	res, _, err := runScenario(t, store, "shipment id 7, delayed 3 hours", demoSender,
		testutil.CallTools(testutil.ToolCall("toolu_1", string(UpdateShipmentETA), `{"shipment_id":7,"seconds":10800}`)),
		testutil.Reply("Done, the ETA was moved by three hours."),
	)
	require.NoError(t, err)
	updated := ETAUpdates(res.Session.LastToolResults())
	require.Len(t, updated, 1)
	assert.True(t, before.ETA.Add(3*time.Hour).Equal(*updated[0].ETA))
}

func TestScenario_ETAUpdateNullETA(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.ResetShipmentETA(context.Background(), 7, nil))

	res, _, err := runScenario(t, store, "shipment id 7, delayed 3 hours", demoSender,
		testutil.CallTools(testutil.ToolCall("toolu_1", string(UpdateShipmentETA), `{"shipment_id":7,"seconds":10800}`)),
		testutil.Reply("Done."),
	)
	require.NoError(t, err)
	updated := ETAUpdates(res.Session.LastToolResults())
	require.Len(t, updated, 1)
	assert.True(t, fixedNow.Add(3*time.Hour).Equal(*updated[0].ETA))
}

func TestScenario_NegativeDelayIsReportedToModel(t *testing.T) {
	store := newStore(t)
	before, _, err := store.ShipmentByID(context.Background(), 7, "")
	require.NoError(t, err)

	res, _, err := runScenario(t, store, "shipment 7 is early by an hour", demoSender,
		testutil.CallTools(testutil.ToolCall("toolu_1", string(UpdateShipmentETA), `{"shipment_id":7,"seconds":-3600}`)),
		testutil.Reply("I can only record delays."),
	)
	require.NoError(t, err)
	results := res.Session.LastToolResults()
	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
	assert.True(t, strings.Contains(string(results[0].Output), "invalid_input"))

	after, _, err := store.ShipmentByID(context.Background(), 7, "")
	require.NoError(t, err)
	assert.True(t, before.ETA.Equal(*after.ETA))
}
