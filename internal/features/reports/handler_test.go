package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tlemoine/signalmap/internal/features/auth"
	"github.com/tlemoine/signalmap/internal/features/imaging"
	"github.com/tlemoine/signalmap/internal/remote"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type handlerFixture struct {
	router   *gin.Engine
	store    *fakeStore
	identity *auth.Identity
	mirror   *Mirror
	form     *Form
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	store := newFakeStore()
	identity := auth.NewIdentity()
	identity.SignIn(auth.User{ID: "u1", Label: "u1@example.com"})

	mirror := NewMirror(store, identity)
	svc := NewService(store, mirror, identity, testMaxSingle, testMaxTotal)
	form := NewForm(imaging.NewPipeline(imaging.Config{}), svc)

	router := gin.New()
	api := router.Group("/api/v1")
	passthrough := func(c *gin.Context) { c.Next() }
	RegisterRoutes(api, NewHandler(mirror, svc, form), passthrough)

	return &handlerFixture{
		router:   router,
		store:    store,
		identity: identity,
		mirror:   mirror,
		form:     form,
	}
}

func (fx *handlerFixture) seed(t *testing.T, docs ...remote.Document) {
	t.Helper()
	updates, stop := fx.mirror.Listen()
	defer stop()
	require.NoError(t, fx.mirror.Start(context.Background()))
	fx.store.snaps <- remote.Snapshot{Documents: docs}
	waitUpdate(t, updates)
}

func (fx *handlerFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestListReports(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.seed(t,
		reportDoc("r1", "Mine", "u1", StatusNew, time.Now()),
		reportDoc("r2", "Theirs", "u2", StatusNew, time.Now()),
	)

	w := fx.do(t, http.MethodGet, "/api/v1/reports", nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w)["data"].(map[string]interface{})
	require.Equal(t, "all", data["filter"])
	require.Len(t, data["reports"], 2)

	w = fx.do(t, http.MethodGet, "/api/v1/reports?filter=mine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeBody(t, w)["data"].(map[string]interface{})
	require.Equal(t, "mine", data["filter"])
	require.Len(t, data["reports"], 1)

	w = fx.do(t, http.MethodGet, "/api/v1/reports?filter=bogus", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportDetail(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.seed(t, reportDoc("r1", "Mine", "u1", StatusNew, time.Now()))

	w := fx.do(t, http.MethodGet, "/api/v1/reports/r1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	require.Equal(t, true, data["canDelete"])

	w = fx.do(t, http.MethodGet, "/api/v1/reports/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteReportStatusMapping(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.seed(t,
		reportDoc("r1", "Mine", "u1", StatusNew, time.Now()),
		reportDoc("r2", "Theirs", "u2", StatusNew, time.Now()),
	)

	w := fx.do(t, http.MethodDelete, "/api/v1/reports/r1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = fx.do(t, http.MethodDelete, "/api/v1/reports/r2", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = fx.do(t, http.MethodDelete, "/api/v1/reports/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestFormWorkflowOverHTTP(t *testing.T) {
	fx := newHandlerFixture(t)

	// No session yet.
	w := fx.do(t, http.MethodPost, "/api/v1/form/submit", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w = fx.do(t, http.MethodPost, "/api/v1/form/open", gin.H{"latitude": 48.85, "longitude": 2.35})
	require.Equal(t, http.StatusOK, w.Code)

	// Submitting without a title is a validation failure, not a conflict.
	w = fx.do(t, http.MethodPost, "/api/v1/form/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = fx.do(t, http.MethodPatch, "/api/v1/form", gin.H{"title": "Pothole"})
	require.Equal(t, http.StatusOK, w.Code)

	w = fx.do(t, http.MethodPost, "/api/v1/form/submit", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	require.Equal(t, "generated-id", data["id"])
	require.Equal(t, 1, fx.store.insertCount())

	// The session is gone after success.
	w = fx.do(t, http.MethodGet, "/api/v1/form", nil)
	data = decodeBody(t, w)["data"].(map[string]interface{})
	require.Equal(t, "idle", data["state"])
}

func TestOpenFormRejectsBadJSON(t *testing.T) {
	fx := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/form/open", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelFormOverHTTP(t *testing.T) {
	fx := newHandlerFixture(t)

	w := fx.do(t, http.MethodPost, "/api/v1/form/cancel", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	fx.do(t, http.MethodPost, "/api/v1/form/open", gin.H{"latitude": 48.85, "longitude": 2.35})
	w = fx.do(t, http.MethodPost, "/api/v1/form/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAddAndRemovePhotosOverHTTP(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.do(t, http.MethodPost, "/api/v1/form/open", gin.H{"latitude": 48.85, "longitude": 2.35})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photos", "a.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/form/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w)["data"].(map[string]interface{})
	require.Equal(t, false, data["truncated"])
	photos := data["form"].(map[string]interface{})["photos"].([]interface{})
	require.Len(t, photos, 1)
	photoID := photos[0].(map[string]interface{})["id"].(string)

	w = fx.do(t, http.MethodDelete, "/api/v1/form/photos/"+photoID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = fx.do(t, http.MethodDelete, "/api/v1/form/photos/"+photoID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
