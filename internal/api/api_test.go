package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovyom/breedscan-go/internal/conf"
	"github.com/innovyom/breedscan-go/internal/datastore"
	"github.com/innovyom/breedscan-go/internal/httpclient"
	"github.com/innovyom/breedscan-go/internal/inference"
	"github.com/innovyom/breedscan-go/internal/resolver"
	"github.com/innovyom/breedscan-go/internal/storage"
)

const (
	testClassifierURL = "https://serverless.roboflow.com/infer/workflows/innovyom-1s6fe/detect-and-classify"
	testStorageBase   = "https://project.supabase.co"
	testLocatorURL    = testStorageBase + "/storage/v1/object/public/animal-images/abc.jpg"
	testDirectURL     = "https://example.com/images/abc.jpg"
)

type testHarness struct {
	controller *Controller
	store      *datastore.SQLiteStore
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	settings := &conf.Settings{
		Datastore: conf.DatastoreSettings{
			SQLite: conf.SQLiteSettings{Enabled: true, Path: ":memory:"},
		},
		Storage: conf.StorageSettings{
			URL:        testStorageBase,
			ServiceKey: "service-key",
			Timeout:    5,
		},
		Classifier: conf.ClassifierSettings{
			Endpoint:          testClassifierURL,
			APIKey:            "test-key",
			UseCache:          true,
			Timeout:           5,
			RequestsPerSecond: 100,
		},
	}

	store := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	hc := httpclient.New(nil)
	t.Cleanup(hc.Close)
	httpmock.ActivateNonDefault(hc.StdClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	storageClient := storage.NewClient(settings, hc)
	imageResolver := resolver.New(storageClient, hc, nil)
	classifier := inference.NewClient(settings, hc, nil)

	e := echo.New()
	controller := New(e, store, settings, imageResolver, classifier, nil)

	return &testHarness{controller: controller, store: store}
}

func (h *testHarness) classify(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	h.controller.Echo.ServeHTTP(rec, req)
	return rec
}

func registerStorageResponder(data []byte) {
	httpmock.RegisterResponder(http.MethodGet,
		testStorageBase+"/storage/v1/object/animal-images/abc.jpg",
		func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewBytesResponse(http.StatusOK, data)
			resp.Header.Set("Content-Type", "image/jpeg")
			return resp, nil
		})
}

func registerClassifierResponder(body string) {
	httpmock.RegisterResponder(http.MethodPost, testClassifierURL,
		httpmock.NewStringResponder(http.StatusOK, body))
}

func validBody(imageURL string) string {
	b, _ := json.Marshal(map[string]string{
		"image_url":   imageURL,
		"animal_id":   "A1",
		"user_id":     "U1",
		"animal_type": "dog",
	})
	return string(b)
}

func TestClassify_MissingFields(t *testing.T) {
	h := newTestHarness(t)

	bodies := []string{
		`{}`,
		`{"image_url":"https://x/y.jpg","animal_id":"A1","user_id":"U1"}`,
		`{"image_url":"https://x/y.jpg","animal_id":"A1","animal_type":"dog"}`,
		`{"image_url":"https://x/y.jpg","user_id":"U1","animal_type":"dog"}`,
		`{"animal_id":"A1","user_id":"U1","animal_type":"dog"}`,
		`{"image_url":"","animal_id":"A1","user_id":"U1","animal_type":"dog"}`,
	}

	for _, body := range bodies {
		rec := h.classify(t, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, missingFieldsMessage, resp.Error)
	}

	// No datastore writes for invalid requests.
	var count int64
	require.NoError(t, h.store.DB.Model(&datastore.AnimalRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestClassify_InvalidImageURLIsInternalError(t *testing.T) {
	h := newTestHarness(t)

	rec := h.classify(t, validBody("ftp://example.com/abc.jpg"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "Invalid image URL")
}

func TestClassify_EndToEndStoragePath(t *testing.T) {
	h := newTestHarness(t)

	registerStorageResponder([]byte("jpegbytes"))
	registerClassifierResponder(`{"predictions":[
		{"class":"Labrador","confidence":0.872},
		{"class":"Beagle","confidence":0.201}]}`)

	rec := h.classify(t, validBody(testLocatorURL))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ClassificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.NotZero(t, resp.AnimalRecordID)
	require.Len(t, resp.Predictions, 2)
	assert.Equal(t, inference.Prediction{Breed: "Labrador", Confidence: 0.87}, resp.TopPrediction)
	assert.Equal(t, resp.Predictions[0], resp.TopPrediction)
	assert.GreaterOrEqual(t, resp.ProcessingTimeMs, int64(0))

	// The storage path supplied the bytes, no direct image fetch happened.
	info := httpmock.GetCallCountInfo()
	assert.Zero(t, info["GET "+testLocatorURL])

	record, err := h.store.GetAnimalRecord("A1", "U1")
	require.NoError(t, err)
	assert.Equal(t, "Labrador", record.PredictedBreed)
	assert.InDelta(t, 0.87, record.ConfidenceScore, 1e-9)
	assert.Equal(t, datastore.VerificationPending, record.VerificationStatus)

	predictions, err := h.store.GetBreedPredictions(record.ID)
	require.NoError(t, err)
	require.Len(t, predictions, 1)
	assert.Equal(t, inference.ModelVersion, predictions[0].ModelVersion)
	assert.Contains(t, predictions[0].PredictedBreeds, "Labrador")
}

func TestClassify_ClassifierDownStillSucceeds(t *testing.T) {
	h := newTestHarness(t)

	httpmock.RegisterResponder(http.MethodGet, testDirectURL,
		httpmock.NewBytesResponder(http.StatusOK, []byte("jpegbytes")))
	httpmock.RegisterResponder(http.MethodPost, testClassifierURL,
		httpmock.NewErrorResponder(assert.AnError))

	rec := h.classify(t, validBody(testDirectURL))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ClassificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, inference.Prediction{Breed: inference.UnknownBreed, Confidence: 0}, resp.TopPrediction)

	record, err := h.store.GetAnimalRecord("A1", "U1")
	require.NoError(t, err)
	assert.Equal(t, inference.UnknownBreed, record.PredictedBreed)
	assert.Zero(t, record.ConfidenceScore)
}

func TestClassify_ImageFetchFailureIsFatal(t *testing.T) {
	h := newTestHarness(t)

	httpmock.RegisterResponder(http.MethodGet, testDirectURL,
		httpmock.NewStringResponder(http.StatusNotFound, "gone"))

	rec := h.classify(t, validBody(testDirectURL))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to fetch image", resp.Error)
	assert.Contains(t, resp.Details, "404")

	var count int64
	require.NoError(t, h.store.DB.Model(&datastore.AnimalRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestClassify_Idempotence(t *testing.T) {
	h := newTestHarness(t)

	registerStorageResponder([]byte("jpegbytes"))
	registerClassifierResponder(`{"predictions":[{"class":"Labrador","confidence":0.9}]}`)

	for range 2 {
		rec := h.classify(t, validBody(testLocatorURL))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	var recordCount, logCount int64
	require.NoError(t, h.store.DB.Model(&datastore.AnimalRecord{}).Count(&recordCount).Error)
	require.NoError(t, h.store.DB.Model(&datastore.BreedPrediction{}).Count(&logCount).Error)

	assert.EqualValues(t, 1, recordCount, "upsert must not duplicate records")
	assert.EqualValues(t, 2, logCount, "prediction log is append-only")
}

func TestClassify_Preflight(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/classify", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "https://app.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	h.controller.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestGetAnimalRecord(t *testing.T) {
	h := newTestHarness(t)

	record := &datastore.AnimalRecord{
		AnimalID:       "A1",
		UserID:         "U1",
		AnimalType:     "dog",
		PredictedBreed: "Labrador",
	}
	require.NoError(t, h.store.UpsertAnimalRecord(record))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/animals/A1?user_id=U1", http.NoBody)
	rec := httptest.NewRecorder()
	h.controller.Echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got datastore.AnimalRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Labrador", got.PredictedBreed)
}

func TestGetAnimalRecord_NotFound(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/animals/missing?user_id=U1", http.NoBody)
	rec := httptest.NewRecorder()
	h.controller.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAnimalRecord_MissingUserID(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/animals/A1", http.NoBody)
	rec := httptest.NewRecorder()
	h.controller.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPredictionHistory(t *testing.T) {
	h := newTestHarness(t)

	record := &datastore.AnimalRecord{AnimalID: "A1", UserID: "U1", AnimalType: "dog"}
	require.NoError(t, h.store.UpsertAnimalRecord(record))
	require.NoError(t, h.store.InsertBreedPrediction(&datastore.BreedPrediction{
		AnimalRecordID:  record.ID,
		PredictedBreeds: `[{"breed":"Labrador","confidence":0.87}]`,
		ModelVersion:    inference.ModelVersion,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/animals/A1/predictions?user_id=U1", http.NoBody)
	rec := httptest.NewRecorder()
	h.controller.Echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AnimalRecordID uint                        `json:"animal_record_id"`
		Predictions    []datastore.BreedPrediction `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, record.ID, resp.AnimalRecordID)
	assert.Len(t, resp.Predictions, 1)
}

func TestHealth(t *testing.T) {
	h := newTestHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody)
	rec := httptest.NewRecorder()
	h.controller.Echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
