package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Hakan2211/cinevido-sub002/internal/domain"
	"github.com/Hakan2211/cinevido-sub002/internal/generation"
	"github.com/Hakan2211/cinevido-sub002/internal/middleware"
)

type stubEngine struct {
	submitResult *generation.SubmitResult
	submitErr    error
	statusResult *generation.StatusResult
	statusErr    error
	cancelResult *generation.StatusResult
	jobs         []domain.Job
}

func (s *stubEngine) Submit(_ context.Context, _ domain.Principal, _ domain.JobKind, _ string, _ map[string]any, _ int) (*generation.SubmitResult, error) {
	return s.submitResult, s.submitErr
}

func (s *stubEngine) Status(_ context.Context, _ domain.Principal, _ string) (*generation.StatusResult, error) {
	return s.statusResult, s.statusErr
}

func (s *stubEngine) Cancel(_ context.Context, _ domain.Principal, _ string) (*generation.StatusResult, error) {
	return s.cancelResult, nil
}

func (s *stubEngine) ListJobs(_ context.Context, _ domain.Principal, _, _ int) ([]domain.Job, error) {
	return s.jobs, nil
}

type stubAssets struct {
	byID    map[string]*domain.Asset
	created []*domain.Asset
	deleted []string
	byJob   []domain.Asset
}

func newStubAssets() *stubAssets {
	return &stubAssets{byID: make(map[string]*domain.Asset)}
}

func (s *stubAssets) Create(_ context.Context, asset *domain.Asset) error {
	s.created = append(s.created, asset)
	s.byID[asset.ID] = asset
	return nil
}

func (s *stubAssets) GetByID(_ context.Context, assetID string) (*domain.Asset, error) {
	asset, ok := s.byID[assetID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return asset, nil
}

func (s *stubAssets) ListByOwner(_ context.Context, ownerID string, _ domain.AssetFilter) ([]domain.Asset, error) {
	var out []domain.Asset
	for _, asset := range s.byID {
		if asset.OwnerID == ownerID {
			out = append(out, *asset)
		}
	}
	return out, nil
}

func (s *stubAssets) ListByJobID(_ context.Context, _ string) ([]domain.Asset, error) {
	return s.byJob, nil
}

func (s *stubAssets) Delete(_ context.Context, assetID string) error {
	if _, ok := s.byID[assetID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.byID, assetID)
	s.deleted = append(s.deleted, assetID)
	return nil
}

type stubCredits struct{ balance int }

func (s *stubCredits) Balance(_ context.Context, _ string) (int, error) { return s.balance, nil }

type stubImporter struct {
	fail bool
}

func (s *stubImporter) Migrate(_ context.Context, ownerID, jobID string, index int, _ string) (string, error) {
	if s.fail {
		return "", fmt.Errorf("upload failed")
	}
	return fmt.Sprintf("https://cdn.example.com/assets/%s/%s/%d", ownerID, jobID, index), nil
}

func newTestApp(engine *stubEngine, assets *stubAssets, importer *stubImporter) *App {
	if assets == nil {
		assets = newStubAssets()
	}
	if importer == nil {
		importer = &stubImporter{}
	}
	return NewApp(engine, assets, &stubCredits{balance: 42}, importer, zerolog.Nop())
}

var testOwner = domain.Principal{UserID: "owner-1", Role: domain.UserRoleUser}

func doRequest(handler http.HandlerFunc, method, target string, body string, principal *domain.Principal, params map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if principal != nil {
		req = req.WithContext(middleware.ContextWithPrincipal(req.Context(), *principal))
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestSubmitGeneration(t *testing.T) {
	engine := &stubEngine{submitResult: &generation.SubmitResult{JobID: "j1", ExternalID: "req-1", CreditsCharged: 8}}
	app := newTestApp(engine, nil, nil)

	rec := doRequest(app.SubmitGeneration, http.MethodPost, "/v1/generations",
		`{"kind":"image","model":"fal-ai/flux/dev","quantity":2,"params":{"prompt":"a cat"}}`, &testOwner, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body)
	}
	var resp generateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID != "j1" || resp.CreditsCharged != 8 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSubmitGenerationRejections(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{
			name:     "no auth context",
			body:     `{"kind":"image"}`,
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "invalid kind",
			body:     `{"kind":"hologram"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed json",
			body:     `{`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "insufficient credits",
			body:     `{"kind":"image"}`,
			err:      &domain.InsufficientCreditsError{Required: 8, Available: 2},
			wantCode: http.StatusPaymentRequired,
		},
		{
			name:     "provider rejects parameters",
			body:     `{"kind":"image"}`,
			err:      &domain.InvalidRequestError{Detail: "width too large"},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name:     "provider unavailable",
			body:     `{"kind":"image"}`,
			err:      fmt.Errorf("submit: %w", domain.ErrProviderUnavailable),
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "unknown model",
			body:     `{"kind":"image","model":"nope"}`,
			err:      domain.ErrUnknownModel,
			wantCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(&stubEngine{submitErr: tc.err}, nil, nil)
			principal := &testOwner
			if tc.name == "no auth context" {
				principal = nil
			}
			rec := doRequest(app.SubmitGeneration, http.MethodPost, "/v1/generations", tc.body, principal, nil)
			if rec.Code != tc.wantCode {
				t.Fatalf("code = %d, want %d (body %s)", rec.Code, tc.wantCode, rec.Body)
			}
		})
	}
}

func TestSubmitGenerationInsufficientCreditsBody(t *testing.T) {
	app := newTestApp(&stubEngine{submitErr: &domain.InsufficientCreditsError{Required: 8, Available: 2}}, nil, nil)
	rec := doRequest(app.SubmitGeneration, http.MethodPost, "/v1/generations", `{"kind":"image"}`, &testOwner, nil)

	var resp struct {
		Error struct {
			Code      string `json:"code"`
			Required  int    `json:"required"`
			Available int    `json:"available"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "insufficient_credits" || resp.Error.Required != 8 || resp.Error.Available != 2 {
		t.Fatalf("unexpected body %s", rec.Body)
	}
}

func TestGenerationStatus(t *testing.T) {
	engine := &stubEngine{statusResult: &generation.StatusResult{
		JobID:    "j1",
		Status:   domain.JobStatusCompleted,
		Progress: 100,
		Output:   json.RawMessage(`{"assets":[{"asset_id":"a1","url":"https://cdn/x.png"}]}`),
	}}
	app := newTestApp(engine, nil, nil)

	rec := doRequest(app.GenerationStatus, http.MethodGet, "/v1/generations/j1", "", &testOwner, map[string]string{"job_id": "j1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "completed" || resp.Progress != 100 || len(resp.Output) == 0 {
		t.Fatalf("unexpected response %+v", resp)
	}

	app = newTestApp(&stubEngine{statusErr: domain.ErrNotFound}, nil, nil)
	rec = doRequest(app.GenerationStatus, http.MethodGet, "/v1/generations/x", "", &testOwner, map[string]string{"job_id": "x"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}

	app = newTestApp(&stubEngine{statusErr: domain.ErrUnauthorized}, nil, nil)
	rec = doRequest(app.GenerationStatus, http.MethodGet, "/v1/generations/x", "", &testOwner, map[string]string{"job_id": "x"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("code = %d, want 403", rec.Code)
	}
}

func TestCreditsBalance(t *testing.T) {
	app := newTestApp(&stubEngine{}, nil, nil)
	rec := doRequest(app.CreditsBalance, http.MethodGet, "/v1/credits", "", &testOwner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"credits":42`) {
		t.Fatalf("unexpected body %s", rec.Body)
	}
}

func TestAssetOwnership(t *testing.T) {
	assets := newStubAssets()
	assets.byID["a1"] = &domain.Asset{ID: "a1", OwnerID: "someone-else", Type: domain.AssetTypeImage, StorageURL: "https://cdn/x.png"}
	app := newTestApp(&stubEngine{}, assets, nil)

	rec := doRequest(app.GetAsset, http.MethodGet, "/v1/assets/a1", "", &testOwner, map[string]string{"id": "a1"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("get code = %d, want 403", rec.Code)
	}

	rec = doRequest(app.DeleteAsset, http.MethodDelete, "/v1/assets/a1", "", &testOwner, map[string]string{"id": "a1"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("delete code = %d, want 403", rec.Code)
	}
	if len(assets.deleted) != 0 {
		t.Fatal("asset must not be deleted by a non-owner")
	}

	// admin may delete anyone's asset
	adminPrincipal := domain.Principal{UserID: "admin-1", Role: domain.UserRoleAdmin}
	rec = doRequest(app.DeleteAsset, http.MethodDelete, "/v1/assets/a1", "", &adminPrincipal, map[string]string{"id": "a1"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin delete code = %d, want 204", rec.Code)
	}

	rec = doRequest(app.GetAsset, http.MethodGet, "/v1/assets/missing", "", &testOwner, map[string]string{"id": "missing"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing code = %d, want 404", rec.Code)
	}
}

func TestImportAsset(t *testing.T) {
	assets := newStubAssets()
	app := newTestApp(&stubEngine{}, assets, &stubImporter{})

	rec := doRequest(app.ImportAsset, http.MethodPost, "/v1/assets/import",
		`{"url":"https://elsewhere.example.com/pic.png","type":"image","prompt":"imported"}`, &testOwner, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body)
	}
	if len(assets.created) != 1 {
		t.Fatalf("created %d assets", len(assets.created))
	}
	asset := assets.created[0]
	if !strings.HasPrefix(asset.StorageURL, "https://cdn.example.com/") {
		t.Fatalf("imported asset must land on durable storage, got %q", asset.StorageURL)
	}
	if asset.Degraded() {
		t.Fatal("successful import must not be degraded")
	}
	if asset.SourceJobID != "" {
		t.Fatalf("imports have no source job, got %q", asset.SourceJobID)
	}
}

func TestImportAssetDegradesOnMigrationFailure(t *testing.T) {
	assets := newStubAssets()
	app := newTestApp(&stubEngine{}, assets, &stubImporter{fail: true})

	rec := doRequest(app.ImportAsset, http.MethodPost, "/v1/assets/import",
		`{"url":"https://elsewhere.example.com/pic.png","type":"image"}`, &testOwner, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body)
	}
	asset := assets.created[0]
	if asset.StorageURL != "https://elsewhere.example.com/pic.png" {
		t.Fatalf("degraded import must keep the source url, got %q", asset.StorageURL)
	}
	if !asset.Degraded() {
		t.Fatal("failed migration must flag the asset degraded")
	}
}

func TestArchiveGeneration(t *testing.T) {
	content := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("media-bytes-" + r.URL.Path))
	}))
	defer content.Close()

	assets := newStubAssets()
	assets.byJob = []domain.Asset{
		{ID: "a1", OwnerID: testOwner.UserID, Type: domain.AssetTypeImage, StorageURL: content.URL + "/1.png", SourceJobID: "j1"},
		{ID: "a2", OwnerID: testOwner.UserID, Type: domain.AssetTypeImage, StorageURL: content.URL + "/2.png", SourceJobID: "j1"},
	}
	engine := &stubEngine{statusResult: &generation.StatusResult{JobID: "j1", Status: domain.JobStatusCompleted, Progress: 100}}
	app := newTestApp(engine, assets, nil)

	rec := doRequest(app.ArchiveGeneration, http.MethodGet, "/v1/generations/j1/archive", "", &testOwner, map[string]string{"job_id": "j1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type = %q", ct)
	}

	reader, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(reader.File) != 2 {
		t.Fatalf("archive has %d entries, want 2", len(reader.File))
	}
}

func TestArchiveGenerationRequiresCompletion(t *testing.T) {
	engine := &stubEngine{statusResult: &generation.StatusResult{JobID: "j1", Status: domain.JobStatusProcessing, Progress: 40}}
	app := newTestApp(engine, nil, nil)

	rec := doRequest(app.ArchiveGeneration, http.MethodGet, "/v1/generations/j1/archive", "", &testOwner, map[string]string{"job_id": "j1"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409", rec.Code)
	}
}

func TestListGenerations(t *testing.T) {
	now := time.Now()
	engine := &stubEngine{jobs: []domain.Job{
		{ID: "j1", Kind: domain.JobKindImage, Model: "fal-ai/flux/dev", Status: domain.JobStatusCompleted, Progress: 100, CreditsReserved: 8, CreatedAt: now, UpdatedAt: now},
		{ID: "j2", Kind: domain.JobKindVideo, Model: "fal-ai/minimax/video-01", Status: domain.JobStatusFailed, ErrorMessage: "boom", CreatedAt: now, UpdatedAt: now},
	}}
	app := newTestApp(engine, nil, nil)

	rec := doRequest(app.ListGenerations, http.MethodGet, "/v1/generations", "", &testOwner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var resp struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(resp.Items))
	}
	if resp.Items[1]["error"] != "boom" {
		t.Fatalf("failed job error not surfaced: %v", resp.Items[1])
	}
}
