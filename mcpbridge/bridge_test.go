package mcpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/shipdesk"
	"github.com/skosovsky/shipdesk/gateway"
	"github.com/skosovsky/shipdesk/gateway/sqlite"
	"github.com/skosovsky/shipdesk/orchestrator"
	"github.com/skosovsky/shipdesk/testutil"
	"github.com/skosovsky/shipdesk/toolkits/shipments"
)

// connect serves reg in memory and returns a connected client session.
func connect(t *testing.T, reg *shipdesk.Registry) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()
	ss, err := NewServer(reg).Connect(ctx, serverT, nil)
	require.NoError(t, err)
	cs, err := Dial(ctx, clientT)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})
	return cs
}

func shipmentRegistry(t *testing.T) *shipdesk.Registry {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Seed(ctx, gateway.GenerateFixtures(gateway.DefaultFixtureOptions())))
	k, err := shipments.New(store)
	require.NoError(t, err)
	reg := shipdesk.NewRegistry()
	require.NoError(t, k.Register(reg))
	return reg
}

func remoteRegistry(t *testing.T, cs *mcp.ClientSession) *shipdesk.Registry {
	t.Helper()
	tools, err := RemoteTools(context.Background(), cs)
	require.NoError(t, err)
	reg := shipdesk.NewRegistry()
	reg.MustRegister(tools...)
	return reg
}

func TestRemoteTools_MirrorsRegistry(t *testing.T) {
	local := shipmentRegistry(t)
	remote := remoteRegistry(t, connect(t, local))

	want := local.Descriptors()
	got := remote.Descriptors()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.Equal(t, want[i].Description, got[i].Description)
	}

	for i, d := range got {
		assert.Equal(t, string(shipments.ToolNames[i]), d.Name)
	}

	upd, ok := remote.GetTool(string(shipments.UpdateShipmentETA))
	require.True(t, ok)
	assert.True(t, upd.(shipdesk.ToolMetadata).IsMutating())
	get, ok := remote.GetTool(string(shipments.GetShipmentByID))
	require.True(t, ok)
	assert.False(t, get.(shipdesk.ToolMetadata).IsMutating())
}

func TestRemoteTools_IdentityTravels(t *testing.T) {
	remote := remoteRegistry(t, connect(t, shipmentRegistry(t)))
	ctx := shipdesk.WithIdentity(context.Background(), shipdesk.Identity{Email: gateway.DemoShipperEmail})

	res := remote.Execute(ctx, shipdesk.ToolCall{ID: "1", ToolName: string(shipments.GetAllShipments), Args: json.RawMessage(`{}`)})
	require.NoError(t, res.Error)
	list := shipments.ShipmentsFrom([]json.RawMessage{res.Result})
	assert.Len(t, list, len(gateway.DemoShipmentIDs))
}

func TestRemoteTools_MissingIdentityIsClientError(t *testing.T) {
	remote := remoteRegistry(t, connect(t, shipmentRegistry(t)))

	res := remote.Execute(context.Background(), shipdesk.ToolCall{ID: "1", ToolName: string(shipments.GetAllShipments), Args: json.RawMessage(`{}`)})
	require.Error(t, res.Error)
	assert.True(t, shipdesk.IsClientError(res.Error))
	assert.Contains(t, shipdesk.PublicMessage(res.Error), "verified sender")
	assert.NotContains(t, shipdesk.PublicMessage(res.Error), "invalid tool input: invalid tool input")
}

func TestRemoteTools_ErrorKinds(t *testing.T) {
	local := testutil.NewTestRegistry(
		&testutil.MockTool{NameVal: "broken", ExecuteFn: func(context.Context, []byte) ([]byte, error) {
			return nil, errors.New("pq: password authentication failed")
		}},
		&testutil.MockTool{NameVal: "slow", ExecuteFn: func(context.Context, []byte) ([]byte, error) {
			return nil, shipdesk.ErrTimeout
		}},
		&testutil.MockTool{NameVal: "plain", ExecuteFn: func(context.Context, []byte) ([]byte, error) {
			return []byte(`{"ok":true}`), nil
		}},
	)
	remote := remoteRegistry(t, connect(t, local))
	ctx := context.Background()

	res := remote.Execute(ctx, shipdesk.ToolCall{ID: "1", ToolName: "broken", Args: json.RawMessage(`{}`)})
	require.Error(t, res.Error)
	assert.Equal(t, shipdesk.KindInternal, shipdesk.ErrorKind(res.Error))
	assert.NotContains(t, res.Error.Error(), "password")

	res = remote.Execute(ctx, shipdesk.ToolCall{ID: "2", ToolName: "slow", Args: json.RawMessage(`{}`)})
	require.Error(t, res.Error)
	assert.ErrorIs(t, res.Error, shipdesk.ErrTimeout)

	res = remote.Execute(ctx, shipdesk.ToolCall{ID: "3", ToolName: "plain", Args: json.RawMessage(`{}`)})
	require.NoError(t, res.Error)
	assert.JSONEq(t, `{"ok":true}`, string(res.Result))
}

func TestLoopOverBridge(t *testing.T) {
	remote := remoteRegistry(t, connect(t, shipmentRegistry(t)))
	client := testutil.NewScriptedClient(
		testutil.CallTools(testutil.ToolCall("toolu_1", string(shipments.GetShipmentByID), `{"shipment_id":5}`)),
		testutil.Reply("Shipment 5 is in transit."),
	)
	loop, err := orchestrator.New(client, remote)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := loop.Run(ctx, "What is up with my shipment order 5?",
		orchestrator.WithIdentity(shipdesk.Identity{Email: gateway.DemoShipperEmail}))
	require.NoError(t, err)
	list := shipments.ShipmentsFrom(res.ToolOutputs)
	require.Len(t, list, 1)
	assert.Equal(t, gateway.StatusInTransit, list[0].Status)
}

func TestSortByOrder(t *testing.T) {
	tools := []*mcp.Tool{
		{Name: "a_unordered"},
		{Name: "b_second", Meta: mcp.Meta{OrderMetaKey: float64(1)}},
		{Name: "c_first", Meta: mcp.Meta{OrderMetaKey: float64(0)}},
		{Name: "d_unordered", Meta: mcp.Meta{"other": true}},
		{Name: "e_third", Meta: mcp.Meta{OrderMetaKey: 2}},
	}
	sortByOrder(tools)
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	assert.Equal(t, []string{"c_first", "b_second", "e_third", "a_unordered", "d_unordered"}, names)
}

func TestSplitIdentity(t *testing.T) {
	args, id, err := splitIdentity(json.RawMessage(`{"shipment_id":5,"_shipdesk_identity":{"email":"A@B.com"}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"shipment_id":5}`, string(args))
	assert.Equal(t, "A@B.com", id.Email)

	args, id, err = splitIdentity(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(args))
	assert.True(t, id.IsZero())

	_, _, err = splitIdentity(json.RawMessage(`[1]`))
	require.Error(t, err)
}

func TestCommandTransport_Empty(t *testing.T) {
	_, err := CommandTransport(context.Background(), "   ")
	require.Error(t, err)
}
