package sqlite

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/shipdesk/gateway"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2025, time.July, 1, 9, 30, 0, 0, time.UTC)

func newSeeded(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, ":memory:", WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Seed(ctx, gateway.GenerateFixtures(gateway.DefaultFixtureOptions())))
	return s
}

func TestShipmentByID(t *testing.T) {
	s := newSeeded(t)
	ctx := context.Background()

	got, found, err := s.ShipmentByID(ctx, gateway.DemoInTransitID, "MClark@Bryant.com ")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, gateway.DemoInTransitID, got.ID)
	assert.Equal(t, gateway.StatusInTransit, got.Status)
	require.NotNil(t, got.Shipper)
	assert.Equal(t, gateway.DemoShipperEmail, got.Shipper.Email)
	require.NotNil(t, got.ETA)
	assert.Equal(t, time.UTC, got.ETA.Location())

	_, found, err = s.ShipmentByID(ctx, 999999, "")
	require.NoError(t, err)
	assert.False(t, found)

	// Owned by someone else.
	_, found, err = s.ShipmentByID(ctx, 1, gateway.DemoShipperEmail)
	require.NoError(t, err)
	assert.False(t, found)

	unscoped, found, err := s.ShipmentByID(ctx, 1, "")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEqual(t, gateway.DemoShipperEmail, unscoped.Shipper.Email)
}

func TestShipmentByBOL(t *testing.T) {
	s := newSeeded(t)
	ctx := context.Background()
	ref, _, err := s.ShipmentByID(ctx, 7, "")
	require.NoError(t, err)

	got, found, err := s.ShipmentByBOL(ctx, ref.BOLDocID, gateway.DemoShipperEmail)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ref.BOLDocID, got.BOLDocID)

	_, found, err = s.ShipmentByBOL(ctx, 1, "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestShipmentsByShipperEmail(t *testing.T) {
	s := newSeeded(t)
	ctx := context.Background()

	got, err := s.ShipmentsByShipperEmail(ctx, gateway.DemoShipperEmail)
	require.NoError(t, err)
	ids := make([]int64, 0, len(got))
	for _, sh := range got {
		ids = append(ids, sh.ID)
	}
	assert.Equal(t, gateway.DemoShipmentIDs, ids)

	none, err := s.ShipmentsByShipperEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestShipmentsByCourierContact(t *testing.T) {
	s := newSeeded(t)
	ctx := context.Background()
	f := gateway.GenerateFixtures(gateway.DefaultFixtureOptions())

	var courier gateway.Courier
	want := 0
	for _, c := range f.Couriers {
		n := 0
		for _, sh := range f.Shipments {
			if sh.CourierID != nil && *sh.CourierID == c.ID {
				n++
			}
		}
		if n > 0 {
			courier, want = c, n
			break
		}
	}
	require.NotZero(t, want)

	got, err := s.ShipmentsByCourierContact(ctx, courier.ContactNumber)
	require.NoError(t, err)
	require.Len(t, got, want)
	for _, sh := range got {
		require.NotNil(t, sh.Courier)
		assert.Equal(t, courier.ContactNumber, sh.Courier.ContactNumber)
	}

	none, err := s.ShipmentsByCourierContact(ctx, "(000)000-0000")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateShipmentETA(t *testing.T) {
	s := newSeeded(t)
	ctx := context.Background()

	before, _, err := s.ShipmentByID(ctx, 7, "")
	require.NoError(t, err)
	require.NotNil(t, before.ETA)

	after, found, err := s.UpdateShipmentETA(ctx, 7, 10800)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, before.ETA.Add(3*time.Hour).Equal(*after.ETA), "got %v", after.ETA)

	reread, _, err := s.ShipmentByID(ctx, 7, "")
	require.NoError(t, err)
	assert.True(t, after.ETA.Equal(*reread.ETA))
}

func TestUpdateShipmentETA_NullETAUsesClock(t *testing.T) {
	s := newSeeded(t)
	ctx := context.Background()
	require.NoError(t, s.ResetShipmentETA(ctx, 7, nil))

	cleared, _, err := s.ShipmentByID(ctx, 7, "")
	require.NoError(t, err)
	assert.Nil(t, cleared.ETA)

	after, found, err := s.UpdateShipmentETA(ctx, 7, 10800)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, fixedNow.Add(3*time.Hour).Equal(*after.ETA))
}

func TestUpdateShipmentETA_RejectsNonPositive(t *testing.T) {
	s := newSeeded(t)
	ctx := context.Background()
	before, _, err := s.ShipmentByID(ctx, 7, "")
	require.NoError(t, err)

	for _, secs := range []int64{0, -3600} {
		_, found, err := s.UpdateShipmentETA(ctx, 7, secs)
		require.ErrorIs(t, err, gateway.ErrInvalidArgument)
		assert.False(t, found)
	}
	after, _, err := s.ShipmentByID(ctx, 7, "")
	require.NoError(t, err)
	assert.True(t, before.ETA.Equal(*after.ETA))
}

func TestUpdateShipmentETA_RejectsOversizedDelay(t *testing.T) {
	s := newSeeded(t)
	ctx := context.Background()
	before, _, err := s.ShipmentByID(ctx, gateway.DemoInTransitID, "")
	require.NoError(t, err)

	for _, secs := range []int64{gateway.MaxDelaySeconds + 1, 10_000_000_000, math.MaxInt64} {
		_, found, err := s.UpdateShipmentETA(ctx, gateway.DemoInTransitID, secs)
		require.ErrorIs(t, err, gateway.ErrInvalidArgument)
		assert.False(t, found)
	}
	after, _, err := s.ShipmentByID(ctx, gateway.DemoInTransitID, "")
	require.NoError(t, err)
	assert.True(t, before.ETA.Equal(*after.ETA))

	updated, found, err := s.UpdateShipmentETA(ctx, gateway.DemoInTransitID, gateway.MaxDelaySeconds)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, updated.ETA.After(*before.ETA))
	assert.Equal(t, time.Duration(gateway.MaxDelaySeconds)*time.Second, updated.ETA.Sub(*before.ETA))
}

func TestUpdateShipmentETA_NotFound(t *testing.T) {
	s := newSeeded(t)
	_, found, err := s.UpdateShipmentETA(context.Background(), 999999, 60)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResetShipmentStatus(t *testing.T) {
	s := newSeeded(t)
	ctx := context.Background()

	require.NoError(t, s.ResetShipmentStatus(ctx, 7, gateway.StatusDelivered))
	got, _, err := s.ShipmentByID(ctx, 7, "")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusDelivered, got.Status)

	require.ErrorIs(t, s.ResetShipmentStatus(ctx, 7, "lost"), gateway.ErrInvalidArgument)
	require.ErrorIs(t, s.ResetShipmentStatus(ctx, 999999, gateway.StatusPending), gateway.ErrNotFound)
	require.ErrorIs(t, s.ResetShipmentETA(ctx, 999999, nil), gateway.ErrNotFound)
}

func TestSeed_Twice(t *testing.T) {
	s := newSeeded(t)
	err := s.Seed(context.Background(), gateway.GenerateFixtures(gateway.DefaultFixtureOptions()))
	require.ErrorIs(t, err, gateway.ErrUnavailable)
}

func TestShipperProcess(t *testing.T) {
	s := newSeeded(t)
	p, found, err := s.ShipperProcess(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, gateway.DemoShipperEmail, p.Email)

	_, found, err = s.ShipperProcess(context.Background(), 9999)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClosedStoreUnavailable(t *testing.T) {
	s := newSeeded(t)
	require.NoError(t, s.Close())
	_, _, err := s.ShipmentByID(context.Background(), 1, "")
	require.ErrorIs(t, err, gateway.ErrUnavailable)
}
