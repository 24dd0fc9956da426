package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/quietmap/internal/app/domain/place"
	svcerrors "github.com/R3E-Network/quietmap/internal/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "quietmap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreCreateAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	desc := "corner table"
	cafe, err := store.CreatePlace(ctx, place.Place{Name: "Quiet Café", Description: &desc, Latitude: 1, Longitude: 2, HasWifi: true})
	require.NoError(t, err)
	require.NotEmpty(t, cafe.ID)
	assert.False(t, cafe.CreatedAt.IsZero())

	library, err := store.CreatePlace(ctx, place.Place{Name: "Library", Latitude: 3, Longitude: 4})
	require.NoError(t, err)

	_, err = store.CreateMeasurement(ctx, place.Measurement{PlaceID: cafe.ID, Value: 30})
	require.NoError(t, err)
	m, err := store.CreateMeasurement(ctx, place.Measurement{PlaceID: cafe.ID, Value: 50})
	require.NoError(t, err)
	assert.Equal(t, cafe.ID, m.PlaceID)

	list, err := store.ListPlacesWithMeasurements(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, cafe.ID, list[0].ID)
	assert.Equal(t, "Quiet Café", list[0].Name)
	require.NotNil(t, list[0].Description)
	assert.Equal(t, "corner table", *list[0].Description)
	assert.True(t, list[0].HasWifi)
	require.Len(t, list[0].Measurements, 2)
	assert.Equal(t, 30.0, list[0].Measurements[0].Value)
	assert.Equal(t, 50.0, list[0].Measurements[1].Value)
	assert.True(t, cafe.CreatedAt.Equal(list[0].CreatedAt))

	assert.Equal(t, library.ID, list[1].ID)
	assert.Nil(t, list[1].Description)
	assert.NotNil(t, list[1].Measurements)
	assert.Empty(t, list[1].Measurements)
}

func TestStoreRejectsMeasurementForUnknownPlace(t *testing.T) {
	store := openTestStore(t)

	_, err := store.CreateMeasurement(context.Background(), place.Measurement{
		PlaceID: "123e4567-e89b-12d3-a456-426614174000",
		Value:   40,
	})
	require.Error(t, err)
	assert.True(t, svcerrors.IsReferentialIntegrity(err))

	list, err := store.ListPlacesWithMeasurements(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStoreDuplicatePlaceID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.CreatePlace(ctx, place.Place{ID: "fixed", Name: "A"})
	require.NoError(t, err)
	_, err = store.CreatePlace(ctx, place.Place{ID: "fixed", Name: "B"})
	require.Error(t, err)
	assert.True(t, svcerrors.IsStorage(err))
	assert.False(t, svcerrors.IsReferentialIntegrity(err))
}

func TestStorePingAndClose(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "ping.db"))
	require.NoError(t, err)

	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Close())
	assert.Error(t, store.Ping(context.Background()))
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	first, err := Open(path)
	require.NoError(t, err)
	created, err := first.CreatePlace(ctx, place.Place{Name: "Reading Room", Latitude: 5, Longitude: 6})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	list, err := second.ListPlacesWithMeasurements(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}
