package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Hakan2211/cinevido-sub002/internal/domain"
	"github.com/Hakan2211/cinevido-sub002/internal/infra"
	"github.com/Hakan2211/cinevido-sub002/internal/sqlinline"
)

// AssetRepositoryPG implements domain.AssetRepository using PostgreSQL.
type AssetRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewAssetRepository constructs a new asset repository instance.
func NewAssetRepository(sql infra.SQLExecutor) *AssetRepositoryPG {
	return &AssetRepositoryPG{sql: sql}
}

// Create inserts an asset record.
func (r *AssetRepositoryPG) Create(ctx context.Context, asset *domain.Asset) error {
	metadata, err := json.Marshal(asset.Metadata)
	if err != nil {
		return err
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertAsset,
		asset.ID,
		asset.OwnerID,
		asset.Type,
		asset.StorageURL,
		asset.SourceJobID,
		asset.Prompt,
		asset.Model,
		metadata,
	)
	return err
}

// GetByID fetches an asset by its identifier.
func (r *AssetRepositoryPG) GetByID(ctx context.Context, assetID string) (*domain.Asset, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectAssetByID, assetID)
	return scanAsset(row)
}

// ListByOwner returns the owner's assets, newest first, narrowed by filter.
func (r *AssetRepositoryPG) ListByOwner(ctx context.Context, ownerID string, filter domain.AssetFilter) ([]domain.Asset, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListAssetsByUser,
		ownerID, string(filter.Type), filter.SourceJobID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssets(rows)
}

// ListByJobID returns all assets produced by the given job, oldest first.
func (r *AssetRepositoryPG) ListByJobID(ctx context.Context, jobID string) ([]domain.Asset, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListAssetsByJob, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssets(rows)
}

// Delete removes an asset record. Ownership is checked by the caller.
func (r *AssetRepositoryPG) Delete(ctx context.Context, assetID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteAsset, assetID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func collectAssets(rows pgx.Rows) ([]domain.Asset, error) {
	var assets []domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *asset)
	}
	return assets, rows.Err()
}

func scanAsset(row pgx.Row) (*domain.Asset, error) {
	var (
		asset    domain.Asset
		metadata []byte
	)
	if err := row.Scan(
		&asset.ID,
		&asset.OwnerID,
		&asset.Type,
		&asset.StorageURL,
		&asset.SourceJobID,
		&asset.Prompt,
		&asset.Model,
		&metadata,
		&asset.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &asset.Metadata)
	}
	return &asset, nil
}

var _ domain.AssetRepository = (*AssetRepositoryPG)(nil)
