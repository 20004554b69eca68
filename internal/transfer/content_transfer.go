package transfer

const (
	GenerationTypeText          = "text"
	GenerationTypeImage         = "image"
	GenerationTypeImageAnalysis = "image_analysis"
	GenerationTypeHashtags      = "hashtags"
)

type GenerationRequest struct {
	Prompt   string `json:"prompt"`
	Type     string `json:"type"`
	ImageURL string `json:"image_url,omitempty"`
}

type GenerationResponse struct {
	Result string `json:"result"`
}
