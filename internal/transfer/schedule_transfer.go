package transfer

type ScheduleCreation struct {
	AccountID      string `json:"account_id"`
	CronExpression string `json:"cron_expression"`
	PromptText     string `json:"prompt_text"`
	PromptImage    string `json:"prompt_image,omitempty"`
	PromptHashtags string `json:"prompt_hashtags,omitempty"`
	ImagesSource   string `json:"images_source,omitempty"`
	UseAiOnImage   bool   `json:"use_ai_on_image,omitempty"`
	TargetURL      string `json:"target_url,omitempty"`
	PromotedOnly   bool   `json:"promoted_only"`
}
