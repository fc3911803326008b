package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Hakan2211/cinevido-sub002/internal/domain"
)

func assetBody(asset *domain.Asset) map[string]any {
	body := map[string]any{
		"id":          asset.ID,
		"type":        string(asset.Type),
		"storage_url": asset.StorageURL,
		"created_at":  asset.CreatedAt,
		"degraded":    asset.Degraded(),
	}
	if asset.SourceJobID != "" {
		body["source_job_id"] = asset.SourceJobID
	}
	if asset.Prompt != "" {
		body["prompt"] = asset.Prompt
	}
	if asset.Model != "" {
		body["model"] = asset.Model
	}
	if len(asset.Metadata) > 0 {
		body["metadata"] = asset.Metadata
	}
	return body
}

func (a *App) ListAssets(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	filter := domain.AssetFilter{
		Type:        domain.AssetType(r.URL.Query().Get("type")),
		SourceJobID: r.URL.Query().Get("source_job_id"),
		Limit:       limit,
		Offset:      offset,
	}
	assets, err := a.Assets.ListByOwner(r.Context(), principal.UserID, filter)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(assets))
	for i := range assets {
		items = append(items, assetBody(&assets[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) GetAsset(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	asset, err := a.Assets.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	if asset.OwnerID != principal.UserID && !principal.IsAdmin() {
		a.error(w, http.StatusForbidden, "forbidden", "not your asset")
		return
	}
	a.json(w, http.StatusOK, assetBody(asset))
}

func (a *App) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	asset, err := a.Assets.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	if asset.OwnerID != principal.UserID && !principal.IsAdmin() {
		a.error(w, http.StatusForbidden, "forbidden", "not your asset")
		return
	}
	if err := a.Assets.Delete(r.Context(), asset.ID); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importAssetRequest struct {
	URL    string `json:"url" validate:"required,url"`
	Type   string `json:"type" validate:"required,oneof=image video audio 3d"`
	Prompt string `json:"prompt"`
}

// ImportAsset registers an externally hosted artifact, copying it into
// durable storage first. The same degrade policy as job resolution applies:
// if the copy fails the asset is created against the source URL and flagged.
func (a *App) ImportAsset(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req importAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	assetID := uuid.NewString()
	metadata := map[string]any{}
	url, err := a.Importer.Migrate(r.Context(), principal.UserID, "imports/"+assetID, 0, req.URL)
	if err != nil {
		a.Logger.Warn().Err(err).Str("asset_id", assetID).Msg("import migration failed, keeping source url")
		url = req.URL
		metadata[domain.MetaDegraded] = true
	}

	asset := &domain.Asset{
		ID:         assetID,
		OwnerID:    principal.UserID,
		Type:       domain.AssetType(req.Type),
		StorageURL: url,
		Prompt:     req.Prompt,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.Assets.Create(r.Context(), asset); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, assetBody(asset))
}
