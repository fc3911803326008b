package domain

import "time"

// AssetType enumerates durable content artifact types.
type AssetType string

const (
	AssetTypeImage AssetType = "image"
	AssetTypeVideo AssetType = "video"
	AssetTypeAudio AssetType = "audio"
	AssetType3D    AssetType = "3d"
)

// Metadata keys written by the orchestrator.
const (
	MetaDegraded      = "degraded"
	MetaSourceAssetID = "source_asset_id"
	MetaSeed          = "seed"
	MetaWidth         = "width"
	MetaHeight        = "height"
	MetaDuration      = "duration"
)

// Asset represents a durable content artifact, either produced by a job or
// imported directly. StorageURL points at durable storage unless the asset is
// flagged degraded in Metadata, in which case it still holds the provider's
// ephemeral URL.
type Asset struct {
	ID          string
	OwnerID     string
	Type        AssetType
	StorageURL  string
	SourceJobID string // empty for direct imports
	Prompt      string
	Model       string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// Degraded reports whether the asset still points at an ephemeral URL.
func (a *Asset) Degraded() bool {
	v, ok := a.Metadata[MetaDegraded].(bool)
	return ok && v
}

// AssetFilter narrows ListByOwner results.
type AssetFilter struct {
	Type        AssetType
	SourceJobID string
	Limit       int
	Offset      int
}
