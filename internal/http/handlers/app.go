package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Hakan2211/cinevido-sub002/internal/domain"
	"github.com/Hakan2211/cinevido-sub002/internal/generation"
	"github.com/Hakan2211/cinevido-sub002/internal/middleware"
)

// GenerationEngine is the orchestrator surface the HTTP layer depends on.
type GenerationEngine interface {
	Submit(ctx context.Context, principal domain.Principal, kind domain.JobKind, model string, params map[string]any, quantity int) (*generation.SubmitResult, error)
	Status(ctx context.Context, principal domain.Principal, jobID string) (*generation.StatusResult, error)
	Cancel(ctx context.Context, principal domain.Principal, jobID string) (*generation.StatusResult, error)
	ListJobs(ctx context.Context, principal domain.Principal, limit, offset int) ([]domain.Job, error)
}

// CreditReader reports account balances.
type CreditReader interface {
	Balance(ctx context.Context, userID string) (int, error)
}

// AssetImporter copies an external URL into durable storage.
type AssetImporter interface {
	Migrate(ctx context.Context, ownerID, jobID string, index int, sourceURL string) (string, error)
}

type App struct {
	Engine   GenerationEngine
	Assets   domain.AssetRepository
	Credits  CreditReader
	Importer AssetImporter
	Validate *validator.Validate
	Logger   zerolog.Logger
}

func NewApp(engine GenerationEngine, assets domain.AssetRepository, credits CreditReader, importer AssetImporter, logger zerolog.Logger) *App {
	return &App{
		Engine:   engine,
		Assets:   assets,
		Credits:  credits,
		Importer: importer,
		Validate: validator.New(),
		Logger:   logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{"error": map[string]string{"code": code, "message": message}})
}

func (a *App) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok || principal.UserID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return domain.Principal{}, false
	}
	return principal, true
}

// domainError translates orchestration errors into HTTP responses. Balance
// details ride along on 402 so clients can prompt a top-up.
func (a *App) domainError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientCreditsError
	var invalid *domain.InvalidRequestError
	switch {
	case errors.As(err, &insufficient):
		a.json(w, http.StatusPaymentRequired, map[string]any{"error": map[string]any{
			"code":      "insufficient_credits",
			"message":   insufficient.Error(),
			"required":  insufficient.Required,
			"available": insufficient.Available,
		}})
	case errors.As(err, &invalid):
		a.error(w, http.StatusUnprocessableEntity, "invalid_request", invalid.Detail)
	case errors.Is(err, domain.ErrUnsupportedKind), errors.Is(err, domain.ErrUnknownModel):
		a.error(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		a.error(w, http.StatusBadGateway, "provider_unavailable", "generation provider unreachable")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusForbidden, "forbidden", "not your resource")
	default:
		a.Logger.Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
