package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"bombona_tracker/internal/models"
	"bombona_tracker/internal/repository"
	"bombona_tracker/internal/service"
)

func TestScan_Lookup(t *testing.T) {
	ms := &mockScanner{lookup: models.Container{ID: "c1", QRCode: "BOM-1"}}
	r := newTestRouter(signedIn(&service.Service{Scanner: ms}))

	w := do(r, http.MethodGet, "/api/v1/scan/BOM-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ms.lastQR != "BOM-1" {
		t.Fatalf("looked up %q", ms.lastQR)
	}

	ms.lookupErr = fmt.Errorf("qr %q: %w", "BOM-2", service.ErrNotFound)
	w = do(r, http.MethodGet, "/api/v1/scan/BOM-2", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown code: status=%d", w.Code)
	}
}

func TestScan_Apply(t *testing.T) {
	ms := &mockScanner{
		applied:  models.Container{ID: "c1", Status: models.StatusDirty, Custodian: testUser.Email},
		movement: models.Movement{ID: "m1", ContainerID: "c1", PreviousStatus: models.StatusClean, NewStatus: models.StatusDirty},
	}
	r := newTestRouter(signedIn(&service.Service{Scanner: ms}))

	w := do(r, http.MethodPost, "/api/v1/scan/BOM-1", `{"status":"sujo","localizacao_atual":"Área Suja - Doca 2","observacoes":"vazou"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	in := ms.lastInput
	if in.Status != models.StatusDirty || in.Location != "Área Suja - Doca 2" || in.Notes != "vazou" {
		t.Fatalf("unexpected input: %+v", in)
	}
	if ms.lastActor.Email != testUser.Email {
		t.Fatalf("actor=%+v", ms.lastActor)
	}

	var resp struct {
		Container models.Container `json:"container"`
		Movement  models.Movement  `json:"movement"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Movement.PreviousStatus != models.StatusClean || resp.Container.Status != models.StatusDirty {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestScan_ApplyErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"missing status", fmt.Errorf("%w: status is required", service.ErrValidation), http.StatusBadRequest, kindValidation},
		{"unknown container", fmt.Errorf("qr %q: %w", "x", service.ErrNotFound), http.StatusNotFound, kindNotFound},
		{"partial write", fmt.Errorf("%w: container c1 updated without movement", repository.ErrPartialWrite), http.StatusInternalServerError, kindPartialWrite},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(signedIn(&service.Service{Scanner: &mockScanner{applyErr: tc.err}}))
			w := do(r, http.MethodPost, "/api/v1/scan/BOM-1", `{"status":""}`)
			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d; body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			if _, kind := errorBody(t, w); kind != tc.wantKind {
				t.Fatalf("kind=%q, want %q", kind, tc.wantKind)
			}
		})
	}
}
