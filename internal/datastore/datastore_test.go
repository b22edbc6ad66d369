package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovyom/breedscan-go/internal/conf"
	"github.com/innovyom/breedscan-go/internal/errors"
)

// newTestStore opens an in-memory SQLite datastore with migrated schema.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := &SQLiteStore{
		Settings: &conf.Settings{
			Datastore: conf.DatastoreSettings{
				SQLite: conf.SQLiteSettings{Enabled: true, Path: ":memory:"},
			},
		},
	}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord() *AnimalRecord {
	return &AnimalRecord{
		AnimalID:        "A1",
		UserID:          "U1",
		AnimalType:      "dog",
		PredictedBreed:  "Labrador",
		ConfidenceScore: 0.87,
		ImageURL:        "https://host/storage/v1/object/public/animal-images/abc.jpg",
	}
}

func TestUpsertAnimalRecord_CreatesAndAssignsID(t *testing.T) {
	store := newTestStore(t)

	record := testRecord()
	require.NoError(t, store.UpsertAnimalRecord(record))

	assert.NotZero(t, record.ID)
	assert.Equal(t, VerificationPending, record.VerificationStatus)
}

func TestUpsertAnimalRecord_OverwritesOnConflict(t *testing.T) {
	store := newTestStore(t)

	first := testRecord()
	require.NoError(t, store.UpsertAnimalRecord(first))

	second := testRecord()
	second.PredictedBreed = "Beagle"
	second.ConfidenceScore = 0.42
	require.NoError(t, store.UpsertAnimalRecord(second))

	assert.Equal(t, first.ID, second.ID, "second upsert must reuse the existing row")

	var count int64
	require.NoError(t, store.DB.Model(&AnimalRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := store.GetAnimalRecord("A1", "U1")
	require.NoError(t, err)
	assert.Equal(t, "Beagle", got.PredictedBreed)
	assert.InDelta(t, 0.42, got.ConfidenceScore, 1e-9)
}

func TestUpsertAnimalRecord_ResetsVerificationStatus(t *testing.T) {
	store := newTestStore(t)

	record := testRecord()
	require.NoError(t, store.UpsertAnimalRecord(record))

	// Simulate an operator verifying the record out of band.
	require.NoError(t, store.DB.Model(&AnimalRecord{}).
		Where("id = ?", record.ID).
		Update("verification_status", "verified").Error)

	again := testRecord()
	require.NoError(t, store.UpsertAnimalRecord(again))

	got, err := store.GetAnimalRecord("A1", "U1")
	require.NoError(t, err)
	assert.Equal(t, VerificationPending, got.VerificationStatus)
}

func TestUpsertAnimalRecord_DistinctPairsGetDistinctRows(t *testing.T) {
	store := newTestStore(t)

	a := testRecord()
	require.NoError(t, store.UpsertAnimalRecord(a))

	b := testRecord()
	b.UserID = "U2"
	require.NoError(t, store.UpsertAnimalRecord(b))

	assert.NotEqual(t, a.ID, b.ID)

	var count int64
	require.NoError(t, store.DB.Model(&AnimalRecord{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestInsertBreedPrediction_AppendOnly(t *testing.T) {
	store := newTestStore(t)

	record := testRecord()
	require.NoError(t, store.UpsertAnimalRecord(record))

	for range 2 {
		require.NoError(t, store.InsertBreedPrediction(&BreedPrediction{
			AnimalRecordID:   record.ID,
			ImageURL:         record.ImageURL,
			PredictedBreeds:  `[{"breed":"Labrador","confidence":0.87}]`,
			ModelVersion:     "detect-and-classify-v1",
			ProcessingTimeMs: 150,
		}))
	}

	predictions, err := store.GetBreedPredictions(record.ID)
	require.NoError(t, err)
	assert.Len(t, predictions, 2)
}

func TestGetAnimalRecord_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetAnimalRecord("missing", "nobody")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestGetBreedPredictions_MostRecentFirst(t *testing.T) {
	store := newTestStore(t)

	record := testRecord()
	require.NoError(t, store.UpsertAnimalRecord(record))

	for i, version := range []string{"v-old", "v-new"} {
		require.NoError(t, store.InsertBreedPrediction(&BreedPrediction{
			AnimalRecordID:   record.ID,
			ModelVersion:     version,
			ProcessingTimeMs: int64(i),
		}))
	}

	predictions, err := store.GetBreedPredictions(record.ID)
	require.NoError(t, err)
	require.Len(t, predictions, 2)
	assert.Equal(t, "v-new", predictions[0].ModelVersion)
}

func TestNew_DriverSelection(t *testing.T) {
	sqliteSettings := &conf.Settings{
		Datastore: conf.DatastoreSettings{SQLite: conf.SQLiteSettings{Enabled: true, Path: ":memory:"}},
	}
	assert.IsType(t, &SQLiteStore{}, New(sqliteSettings))

	mysqlSettings := &conf.Settings{
		Datastore: conf.DatastoreSettings{MySQL: conf.MySQLSettings{Enabled: true}},
	}
	assert.IsType(t, &MySQLStore{}, New(mysqlSettings))

	assert.Nil(t, New(&conf.Settings{}))
}
