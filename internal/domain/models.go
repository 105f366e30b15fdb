package domain

import "github.com/samber/lo"

// ModelTier describes one selectable speech-recognition model size.
type ModelTier struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FileName    string `json:"fileName"`
	URL         string `json:"url"`
	SizeLabel   string `json:"sizeLabel,omitempty"`
	Description string `json:"description,omitempty"`
}

// DefaultModel is used on first launch.
const DefaultModel = "tiny"

var modelTiers = []ModelTier{
	{
		ID:          "tiny",
		Name:        "Tiny",
		FileName:    "ggml-tiny.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
		SizeLabel:   "~75 MB",
		Description: "Fastest, lowest accuracy.",
	},
	{
		ID:          "base",
		Name:        "Base",
		FileName:    "ggml-base.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
		SizeLabel:   "~142 MB",
		Description: "Balanced speed and quality.",
	},
	{
		ID:          "small",
		Name:        "Small",
		FileName:    "ggml-small.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		SizeLabel:   "~466 MB",
		Description: "Higher quality.",
	},
	{
		ID:          "medium",
		Name:        "Medium",
		FileName:    "ggml-medium.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
		SizeLabel:   "~1.5 GB",
		Description: "High quality, slower.",
	},
	{
		ID:          "large",
		Name:        "Large",
		FileName:    "ggml-large-v3.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
		SizeLabel:   "~2.9 GB",
		Description: "Best quality, slowest.",
	},
}

// ModelTiers returns a copy of the supported model tiers, smallest first.
func ModelTiers() []ModelTier {
	out := make([]ModelTier, len(modelTiers))
	copy(out, modelTiers)
	return out
}

// ModelTierByID looks up a tier by its id.
func ModelTierByID(id string) (ModelTier, bool) {
	return lo.Find(modelTiers, func(t ModelTier) bool { return t.ID == id })
}

// ModelTierIDs lists tier ids in catalog order.
func ModelTierIDs() []string {
	return lo.Map(modelTiers, func(t ModelTier, _ int) string { return t.ID })
}
