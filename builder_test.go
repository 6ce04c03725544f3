package shipdesk

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type etaArgs struct {
	ShipmentID int `json:"shipment_id" description:"Shipment number"`
	Seconds    int `json:"seconds" description:"Seconds to add to the ETA"`
}

func (a etaArgs) Validate() error {
	if a.Seconds <= 0 {
		return errors.New("seconds must be positive")
	}
	return nil
}

func TestNewTool_Success(t *testing.T) {
	t.Parallel()
	tool, err := NewTool("update_eta", "Push ETA", func(_ context.Context, a etaArgs) (map[string]int, error) {
		return map[string]int{"id": a.ShipmentID}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "update_eta", tool.Name())
	assert.Equal(t, "Push ETA", tool.Description())

	out, err := tool.Execute(context.Background(), []byte(`{"shipment_id": 5, "seconds": 60}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":5}`, string(out))
}

func TestNewTool_EmptyName(t *testing.T) {
	t.Parallel()
	_, err := NewTool("", "x", func(_ context.Context, _ etaArgs) (int, error) { return 0, nil })
	require.Error(t, err)
}

func TestNewTool_LayerTwoValidation(t *testing.T) {
	t.Parallel()
	var called bool
	tool, err := NewTool("update_eta", "Push ETA", func(_ context.Context, _ etaArgs) (int, error) {
		called = true
		return 0, nil
	})
	require.NoError(t, err)
	_, err = tool.Execute(context.Background(), []byte(`{"shipment_id": 5, "seconds": 0}`))
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "seconds must be positive")
	assert.False(t, called)
}

func TestNewTool_MissingRequired(t *testing.T) {
	t.Parallel()
	tool, err := NewTool("update_eta", "Push ETA", func(_ context.Context, _ etaArgs) (int, error) {
		return 0, nil
	})
	require.NoError(t, err)
	_, err = tool.Execute(context.Background(), []byte(`{"seconds": 10}`))
	require.Error(t, err)
	assert.True(t, IsClientError(err))
}

func TestNewTool_InvalidJSON(t *testing.T) {
	t.Parallel()
	tool, err := NewTool("update_eta", "Push ETA", func(_ context.Context, _ etaArgs) (int, error) {
		return 0, nil
	})
	require.NoError(t, err)
	_, err = tool.Execute(context.Background(), []byte(`{"shipment_id": `))
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.Contains(t, err.Error(), "json parse error")
}

func TestNewTool_HandlerClientErrorPassesThrough(t *testing.T) {
	t.Parallel()
	tool, err := NewTool("lookup", "Lookup", func(_ context.Context, _ doubleArgs) (int, error) {
		return 0, &ClientError{Reason: "a verified sender is required"}
	})
	require.NoError(t, err)
	_, err = tool.Execute(context.Background(), []byte(`{"x": 1}`))
	require.Error(t, err)
	assert.True(t, IsClientError(err))
	assert.False(t, IsSystemError(err))
	assert.Equal(t, "invalid tool input: a verified sender is required", PublicMessage(err))
}

func TestNewTool_HandlerErrorBecomesSystemError(t *testing.T) {
	t.Parallel()
	tool, err := NewTool("lookup", "Lookup", func(_ context.Context, _ doubleArgs) (int, error) {
		return 0, errors.New("connection refused")
	})
	require.NoError(t, err)
	_, err = tool.Execute(context.Background(), []byte(`{"x": 1}`))
	require.Error(t, err)
	assert.True(t, IsSystemError(err))
}

func TestNewTool_UnmarshalableResult(t *testing.T) {
	t.Parallel()
	tool, err := NewTool("bad", "Bad", func(_ context.Context, _ doubleArgs) (chan int, error) {
		return make(chan int), nil
	})
	require.NoError(t, err)
	_, err = tool.Execute(context.Background(), []byte(`{"x": 1}`))
	require.Error(t, err)
	assert.True(t, IsSystemError(err))
}

func TestNewTool_Options(t *testing.T) {
	t.Parallel()
	tool, err := NewTool("update_eta", "Push ETA", func(_ context.Context, _ etaArgs) (int, error) {
		return 0, nil
	}, WithTimeout(3*time.Second), WithTags("shipments", "write"), WithMutating(), WithStrict())
	require.NoError(t, err)
	tm, ok := tool.(ToolMetadata)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, tm.Timeout())
	assert.Equal(t, []string{"shipments", "write"}, tm.Tags())
	assert.True(t, tm.IsMutating())

	tags := tm.Tags()
	tags[0] = "changed"
	assert.Equal(t, "shipments", tm.Tags()[0])

	params := tool.Parameters()
	assert.Equal(t, false, params["additionalProperties"])
}

func TestNewTool_DefaultsNotMutating(t *testing.T) {
	t.Parallel()
	tool, err := NewTool("get", "Get", func(_ context.Context, _ doubleArgs) (int, error) { return 0, nil })
	require.NoError(t, err)
	tm := tool.(ToolMetadata)
	assert.False(t, tm.IsMutating())
	assert.Zero(t, tm.Timeout())
}

func TestNewTool_ParametersDescription(t *testing.T) {
	t.Parallel()
	tool, err := NewTool("update_eta", "Push ETA", func(_ context.Context, _ etaArgs) (int, error) {
		return 0, nil
	})
	require.NoError(t, err)
	data, err := json.Marshal(tool.Parameters())
	require.NoError(t, err)
	assert.Contains(t, string(data), "Seconds to add to the ETA")
}
