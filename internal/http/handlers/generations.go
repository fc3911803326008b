package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Hakan2211/cinevido-sub002/internal/domain"
	"github.com/Hakan2211/cinevido-sub002/internal/generation"
	"github.com/Hakan2211/cinevido-sub002/pkg/zip"
)

type generateRequest struct {
	Kind     string         `json:"kind" validate:"required,oneof=image video audio aging upscale variation edit"`
	Model    string         `json:"model"`
	Quantity int            `json:"quantity" validate:"gte=0,lte=10"`
	Params   map[string]any `json:"params"`
}

type generateResponse struct {
	JobID          string `json:"job_id"`
	ExternalID     string `json:"external_id"`
	CreditsCharged int    `json:"credits_charged"`
}

func (a *App) SubmitGeneration(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	result, err := a.Engine.Submit(r.Context(), principal, domain.JobKind(req.Kind), req.Model, req.Params, req.Quantity)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, generateResponse{
		JobID:          result.JobID,
		ExternalID:     result.ExternalID,
		CreditsCharged: result.CreditsCharged,
	})
}

type statusResponse struct {
	JobID    string          `json:"job_id"`
	Status   string          `json:"status"`
	Progress int             `json:"progress"`
	Output   json.RawMessage `json:"output,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func statusBody(result *generation.StatusResult) statusResponse {
	return statusResponse{
		JobID:    result.JobID,
		Status:   string(result.Status),
		Progress: result.Progress,
		Output:   result.Output,
		Error:    result.Error,
	}
}

func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	result, err := a.Engine.Status(r.Context(), principal, jobID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, statusBody(result))
}

func (a *App) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	jobID := chi.URLParam(r, "job_id")
	result, err := a.Engine.Cancel(r.Context(), principal, jobID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, statusBody(result))
}

func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	jobs, err := a.Engine.ListJobs(r.Context(), principal, limit, offset)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		item := map[string]any{
			"job_id":          job.ID,
			"kind":            string(job.Kind),
			"model":           job.Model,
			"status":          string(job.Status),
			"progress":        job.Progress,
			"credits_charged": job.CreditsReserved,
			"created_at":      job.CreatedAt,
			"updated_at":      job.UpdatedAt,
		}
		if job.ErrorMessage != "" {
			item["error"] = job.ErrorMessage
		}
		items = append(items, item)
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// ArchiveGeneration streams a zip of every asset a completed job produced.
// The downloads run concurrently; one broken asset aborts the archive.
func (a *App) ArchiveGeneration(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	jobID := chi.URLParam(r, "job_id")
	result, err := a.Engine.Status(r.Context(), principal, jobID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if result.Status != domain.JobStatusCompleted {
		a.error(w, http.StatusConflict, "not_completed", "job has not completed")
		return
	}

	assets, err := a.Assets.ListByJobID(r.Context(), jobID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no assets for job")
		return
	}

	entries := make([]zip.Asset, len(assets))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(4)
	for i, asset := range assets {
		g.Go(func() error {
			data, err := fetchContent(ctx, asset.StorageURL)
			if err != nil {
				return fmt.Errorf("fetch asset %s: %w", asset.ID, err)
			}
			entries[i] = zip.Asset{
				Filename: fmt.Sprintf("%d_%s%s", i+1, asset.ID, archiveExt(asset)),
				Data:     data,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("archive build failed")
		a.error(w, http.StatusBadGateway, "archive_failed", "could not fetch job assets")
		return
	}

	archive := zip.ArchiveAssets(entries)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func archiveExt(asset domain.Asset) string {
	if ext := path.Ext(strings.SplitN(path.Base(asset.StorageURL), "?", 2)[0]); ext != "" {
		return ext
	}
	switch asset.Type {
	case domain.AssetTypeVideo:
		return ".mp4"
	case domain.AssetTypeAudio:
		return ".mp3"
	default:
		return ".png"
	}
}

var archiveHTTPClient = &http.Client{Timeout: 60 * time.Second}

func fetchContent(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := archiveHTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	balance, err := a.Credits.Balance(r.Context(), principal.UserID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"credits": balance})
}
