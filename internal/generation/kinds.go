// Package generation drives the lifecycle of generation jobs from admission
// through provider resolution to durable assets.
package generation

import (
	"encoding/json"

	"github.com/Hakan2211/cinevido-sub002/internal/domain"
)

// modelPricing prices one provider model. A quality tier replaces the base
// cost outright; a premium style doubles whatever cost is in effect.
type modelPricing struct {
	base          int
	tiers         map[string]int
	premiumStyles map[string]struct{}
}

// kindSpec is one row of the kind registry. The orchestrator is generic over
// kinds; everything kind-specific lives here.
type kindSpec struct {
	defaultModel string
	assetType    domain.AssetType
	models       map[string]modelPricing
	extract      func(result json.RawMessage) []OutputItem
}

// OutputItem is one media artifact extracted from a provider result.
type OutputItem struct {
	URL      string
	Metadata map[string]any
}

var kinds = map[domain.JobKind]kindSpec{
	domain.JobKindImage: {
		defaultModel: "fal-ai/flux/dev",
		assetType:    domain.AssetTypeImage,
		models: map[string]modelPricing{
			"fal-ai/flux/dev": {
				base:          4,
				tiers:         map[string]int{"hd": 6},
				premiumStyles: map[string]struct{}{"cinematic": {}},
			},
			"fal-ai/flux-pro/v1.1": {
				base:          8,
				tiers:         map[string]int{"ultra": 12},
				premiumStyles: map[string]struct{}{"cinematic": {}},
			},
		},
		extract: extractImages,
	},
	domain.JobKindVideo: {
		defaultModel: "fal-ai/kling-video/v1.6/standard",
		assetType:    domain.AssetTypeVideo,
		models: map[string]modelPricing{
			"fal-ai/kling-video/v1.6/standard": {
				base:  20,
				tiers: map[string]int{"pro": 40},
			},
			"fal-ai/minimax/video-01": {base: 25},
		},
		extract: extractVideo,
	},
	domain.JobKindAudio: {
		defaultModel: "fal-ai/stable-audio",
		assetType:    domain.AssetTypeAudio,
		models: map[string]modelPricing{
			"fal-ai/stable-audio": {base: 5},
		},
		extract: extractAudio,
	},
	domain.JobKindAging: {
		defaultModel: "fal-ai/image-editing/age-progression",
		assetType:    domain.AssetTypeImage,
		models: map[string]modelPricing{
			"fal-ai/image-editing/age-progression": {base: 6},
		},
		extract: extractImages,
	},
	domain.JobKindUpscale: {
		defaultModel: "fal-ai/clarity-upscaler",
		assetType:    domain.AssetTypeImage,
		models: map[string]modelPricing{
			"fal-ai/clarity-upscaler": {base: 2},
		},
		extract: extractImages,
	},
	domain.JobKindVariation: {
		defaultModel: "fal-ai/flux/dev/image-to-image",
		assetType:    domain.AssetTypeImage,
		models: map[string]modelPricing{
			"fal-ai/flux/dev/image-to-image": {
				base:          4,
				premiumStyles: map[string]struct{}{"cinematic": {}},
			},
		},
		extract: extractImages,
	},
	domain.JobKindEdit: {
		defaultModel: "fal-ai/flux-pro/kontext",
		assetType:    domain.AssetTypeImage,
		models: map[string]modelPricing{
			"fal-ai/flux-pro/kontext": {base: 6},
		},
		extract: extractImages,
	},
}

func kindFor(kind domain.JobKind) (kindSpec, error) {
	spec, ok := kinds[kind]
	if !ok {
		return kindSpec{}, domain.ErrUnsupportedKind
	}
	return spec, nil
}

// DefaultModel returns the model used when the caller names none.
func DefaultModel(kind domain.JobKind) (string, error) {
	spec, err := kindFor(kind)
	if err != nil {
		return "", err
	}
	return spec.defaultModel, nil
}

// Cost computes the credit charge for one submission. Order is fixed: a
// quality tier replaces the base cost, a premium style then doubles it, and
// the result is multiplied by quantity.
func Cost(kind domain.JobKind, model string, params map[string]any, quantity int) (int, error) {
	spec, err := kindFor(kind)
	if err != nil {
		return 0, err
	}
	pricing, ok := spec.models[model]
	if !ok {
		return 0, domain.ErrUnknownModel
	}

	cost := pricing.base
	if tier, ok := params["quality"].(string); ok {
		if tierCost, ok := pricing.tiers[tier]; ok {
			cost = tierCost
		}
	}
	if style, ok := params["style"].(string); ok {
		if _, ok := pricing.premiumStyles[style]; ok {
			cost *= 2
		}
	}
	if quantity < 1 {
		quantity = 1
	}
	return cost * quantity, nil
}

// image results arrive either as {"images":[...]} or a single {"image":{}}.
// The top-level seed, when present, applies to every image in the batch.
func extractImages(result json.RawMessage) []OutputItem {
	var payload struct {
		Images []imagePayload `json:"images"`
		Image  *imagePayload  `json:"image"`
		Seed   *int64         `json:"seed"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil
	}
	images := payload.Images
	if len(images) == 0 && payload.Image != nil {
		images = []imagePayload{*payload.Image}
	}

	var items []OutputItem
	for _, img := range images {
		if img.URL == "" {
			continue
		}
		metadata := map[string]any{}
		if img.Width > 0 {
			metadata[domain.MetaWidth] = img.Width
		}
		if img.Height > 0 {
			metadata[domain.MetaHeight] = img.Height
		}
		if payload.Seed != nil {
			metadata[domain.MetaSeed] = *payload.Seed
		}
		items = append(items, OutputItem{URL: img.URL, Metadata: metadata})
	}
	return items
}

type imagePayload struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func extractVideo(result json.RawMessage) []OutputItem {
	var payload struct {
		Video *struct {
			URL      string  `json:"url"`
			Duration float64 `json:"duration"`
		} `json:"video"`
		VideoURL string `json:"video_url"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil
	}
	if payload.Video != nil && payload.Video.URL != "" {
		metadata := map[string]any{}
		if payload.Video.Duration > 0 {
			metadata[domain.MetaDuration] = payload.Video.Duration
		}
		return []OutputItem{{URL: payload.Video.URL, Metadata: metadata}}
	}
	if payload.VideoURL != "" {
		return []OutputItem{{URL: payload.VideoURL, Metadata: map[string]any{}}}
	}
	return nil
}

func extractAudio(result json.RawMessage) []OutputItem {
	var payload struct {
		Audio *struct {
			URL      string  `json:"url"`
			Duration float64 `json:"duration"`
		} `json:"audio"`
		AudioFile *struct {
			URL string `json:"url"`
		} `json:"audio_file"`
		AudioURL string `json:"audio_url"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil
	}
	if payload.Audio != nil && payload.Audio.URL != "" {
		metadata := map[string]any{}
		if payload.Audio.Duration > 0 {
			metadata[domain.MetaDuration] = payload.Audio.Duration
		}
		return []OutputItem{{URL: payload.Audio.URL, Metadata: metadata}}
	}
	if payload.AudioFile != nil && payload.AudioFile.URL != "" {
		return []OutputItem{{URL: payload.AudioFile.URL, Metadata: map[string]any{}}}
	}
	if payload.AudioURL != "" {
		return []OutputItem{{URL: payload.AudioURL, Metadata: map[string]any{}}}
	}
	return nil
}
