package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/shipdesk"
	"github.com/skosovsky/shipdesk/gateway"
	"github.com/skosovsky/shipdesk/gateway/sqlite"
	"github.com/skosovsky/shipdesk/internal/config"
	"github.com/skosovsky/shipdesk/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRun_Usage(t *testing.T) {
	var out, errOut bytes.Buffer
	ctx := context.Background()

	require.ErrorIs(t, run(ctx, nil, strings.NewReader(""), &out, &errOut), errUsage)
	require.ErrorIs(t, run(ctx, []string{"cancel-shipment"}, strings.NewReader(""), &out, &errOut), errUsage)

	require.NoError(t, run(ctx, []string{"help"}, strings.NewReader(""), &out, &errOut))
	assert.Contains(t, out.String(), "ask|seed|mcp-serve")
}

func TestRun_Seed(t *testing.T) {
	db := filepath.Join(t.TempDir(), "shipdesk.db")
	t.Setenv("DB_URL", db)
	t.Setenv("LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	ctx := context.Background()
	require.NoError(t, run(ctx, []string{"seed", "-shipments", "12"}, strings.NewReader(""), &out, &errOut))
	assert.Contains(t, out.String(), "12 shipments")

	st, err := sqlite.Open(ctx, db)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	s, found, err := st.ShipmentByID(ctx, gateway.DemoInTransitID, gateway.DemoShipperEmail)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, gateway.StatusInTransit, s.Status)
}

func TestRun_AskErrors(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("LOG_LEVEL", "error")
	ctx := context.Background()
	var out, errOut bytes.Buffer

	err := run(ctx, []string{"ask"}, strings.NewReader("  "), &out, &errOut)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no message")

	err = run(ctx, []string{"ask", "-email", gateway.DemoShipperEmail, "where is shipment 5?"}, strings.NewReader(""), &out, &errOut)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")

	err = run(ctx, []string{"ask", "-bogus"}, strings.NewReader(""), &out, &errOut)
	require.Error(t, err)
}

func TestNewRegistry_PanicIsLoggedAndHidden(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	reg := newRegistry(&config.Config{ToolTimeout: time.Second}, logger)
	reg.MustRegister(&testutil.MockTool{NameVal: "get_shipment_by_id", ExecuteFn: func(context.Context, []byte) ([]byte, error) {
		panic("index out of range")
	}})

	res := reg.Execute(context.Background(), shipdesk.ToolCall{ID: "1", ToolName: "get_shipment_by_id", Args: json.RawMessage(`{}`)})
	require.Error(t, res.Error)
	assert.Equal(t, shipdesk.KindInternal, shipdesk.ErrorKind(res.Error))
	assert.NotContains(t, shipdesk.PublicMessage(res.Error), "index out of range")
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "get_shipment_by_id")
}
