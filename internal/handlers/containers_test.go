package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bombona_tracker/internal/models"
	"bombona_tracker/internal/repository"
	"bombona_tracker/internal/service"

	"github.com/gin-gonic/gin"
)

// do sends an authenticated request through r.
func do(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header = authHeader("tok")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) (msg, kind string) {
	t.Helper()
	var out struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal error body: %v (body=%s)", err, w.Body.String())
	}
	return out.Error, out.Kind
}

func TestContainers_ListPassesFilters(t *testing.T) {
	mc := &mockContainers{list: []models.Container{{ID: "c1", QRCode: "BOM-1", Status: models.StatusDirty}}}
	r := newTestRouter(signedIn(&service.Service{Containers: mc}))

	w := do(r, http.MethodGet, "/api/v1/containers?search=bmb&status=SUJO&location=dirty_area&custodian=&order=-created_date&limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	q := mc.lastQuery
	if q.Search != "bmb" || q.Status != models.StatusDirty || q.Location != "dirty_area" || q.Limit != 5 {
		t.Fatalf("unexpected query: %+v", q)
	}
	if q.OrderBy != repository.OrderCreatedDesc {
		t.Fatalf("order=%q", q.OrderBy)
	}
	if q.Custodian == nil || *q.Custodian != "" {
		t.Fatalf("custodian filter should select unassigned, got %v", q.Custodian)
	}

	var list []models.Container
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list) != 1 || list[0].ID != "c1" {
		t.Fatalf("list=%+v err=%v", list, err)
	}

	// custodian absent -> no filter
	do(r, http.MethodGet, "/api/v1/containers", "")
	if mc.lastQuery.Custodian != nil {
		t.Fatalf("custodian should be unset, got %q", *mc.lastQuery.Custodian)
	}
}

func TestContainers_ListErrors(t *testing.T) {
	cases := []struct {
		name     string
		target   string
		listErr  error
		wantCode int
		wantKind string
	}{
		{"bad limit", "/api/v1/containers?limit=-1", nil, http.StatusBadRequest, kindValidation},
		{"limit not a number", "/api/v1/containers?limit=ten", nil, http.StatusBadRequest, kindValidation},
		{"service validation", "/api/v1/containers?status=azul", fmt.Errorf("%w: status", service.ErrValidation), http.StatusBadRequest, kindValidation},
		{"store failure", "/api/v1/containers", fmt.Errorf("query containers: boom"), http.StatusInternalServerError, kindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(signedIn(&service.Service{Containers: &mockContainers{listErr: tc.listErr}}))
			w := do(r, http.MethodGet, tc.target, "")
			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d; body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			msg, kind := errorBody(t, w)
			if kind != tc.wantKind {
				t.Fatalf("kind=%q, want %q", kind, tc.wantKind)
			}
			if kind == kindInternal && msg != errInternal {
				t.Fatalf("internal error leaked: %q", msg)
			}
		})
	}
}

func TestContainers_Create(t *testing.T) {
	mc := &mockContainers{created: models.Container{ID: "new", QRCode: "BOM-9", Status: models.StatusClean}}
	r := newTestRouter(signedIn(&service.Service{Containers: mc}))

	w := do(r, http.MethodPost, "/api/v1/containers",
		`{"numero_identificacao":"BMB-0042","status":"limpo","localizacao_atual":"Área Limpa","capacidade":200}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if mc.lastCreate.IdentificationNumber != "BMB-0042" || mc.lastCreate.Capacity != 200 || mc.lastCreate.Status != models.StatusClean {
		t.Fatalf("unexpected input: %+v", mc.lastCreate)
	}
	if mc.lastActor.Email != testUser.Email {
		t.Fatalf("actor=%+v", mc.lastActor)
	}

	// unknown status is rejected while binding
	w = do(r, http.MethodPost, "/api/v1/containers", `{"numero_identificacao":"X","status":"azul"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad status: got %d", w.Code)
	}

	mc.createErr = fmt.Errorf("%w: qr code already issued", service.ErrConflict)
	w = do(r, http.MethodPost, "/api/v1/containers", `{"numero_identificacao":"X"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate: got %d", w.Code)
	}
}

func TestContainers_GetHistoryNotFound(t *testing.T) {
	notFound := fmt.Errorf("container %q: %w", "zz", service.ErrNotFound)
	mc := &mockContainers{getErr: notFound, historyErr: notFound}
	r := newTestRouter(signedIn(&service.Service{Containers: mc}))

	for _, target := range []string{"/api/v1/containers/zz", "/api/v1/containers/zz/history"} {
		w := do(r, http.MethodGet, target, "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: status=%d", target, w.Code)
		}
		if _, kind := errorBody(t, w); kind != kindNotFound {
			t.Fatalf("%s: kind=%q", target, kind)
		}
	}
}

func TestContainers_Label(t *testing.T) {
	ml := &mockLabels{png: []byte("\x89PNG")}
	r := newTestRouter(signedIn(&service.Service{Labels: ml}))

	w := do(r, http.MethodGet, "/api/v1/containers/c1/label.png?size=128", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type=%q", ct)
	}
	if ml.lastSize != 128 {
		t.Fatalf("size=%d", ml.lastSize)
	}

	w = do(r, http.MethodGet, "/api/v1/containers/c1/label.png", "")
	if w.Code != http.StatusOK || ml.lastSize != defaultLabelSize {
		t.Fatalf("default size: status=%d size=%d", w.Code, ml.lastSize)
	}

	w = do(r, http.MethodGet, "/api/v1/containers/c1/label.png?size=big", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad size: status=%d", w.Code)
	}
}

func TestContainers_TransportUsesCurrentUser(t *testing.T) {
	mc := &mockContainers{transit: []models.Container{{ID: "t1", Status: models.StatusInTransit}}}
	r := newTestRouter(signedIn(&service.Service{Containers: mc}))

	w := do(r, http.MethodGet, "/api/v1/transport", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if mc.lastTransitBy != testUser.Email {
		t.Fatalf("in transit asked for %q", mc.lastTransitBy)
	}
}

func TestMovements_Recent(t *testing.T) {
	mc := &mockContainers{recent: []models.Movement{{ID: "m1", ContainerID: "c1"}}}
	r := newTestRouter(signedIn(&service.Service{Containers: mc}))

	w := do(r, http.MethodGet, "/api/v1/movements?limit=3", "")
	if w.Code != http.StatusOK || mc.lastLimit != 3 {
		t.Fatalf("status=%d limit=%d", w.Code, mc.lastLimit)
	}
}

func TestStatuses(t *testing.T) {
	r := newTestRouter(signedIn(&service.Service{}))
	w := do(r, http.MethodGet, "/api/v1/statuses", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var list []models.StatusMeta
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != len(models.AllStatuses()) || list[0].Value != models.StatusClean {
		t.Fatalf("catalog=%+v", list)
	}
}
