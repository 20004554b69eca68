package models

import "time"

type ScheduledPost struct {
	ID             string    `db:"id" json:"id"`
	AccountID      string    `db:"account_id" json:"account_id"`
	CronExpression string    `db:"cron_expression" json:"cron_expression"`
	PromptText     string    `db:"prompt_text" json:"prompt_text"`
	PromptImage    string    `db:"prompt_image" json:"prompt_image,omitempty"`
	PromptHashtags string    `db:"prompt_hashtags" json:"prompt_hashtags,omitempty"`
	ImagesSource   string    `db:"images_source" json:"images_source,omitempty"` // Drive folder id
	UseAiOnImage   bool      `db:"use_ai_on_image" json:"use_ai_on_image"`
	TargetURL      string    `db:"target_url" json:"target_url,omitempty"`
	PromotedOnly   bool      `db:"promoted_only" json:"promoted_only"`
	Status         string    `db:"status" json:"status"`
	ScheduledAt    time.Time `db:"scheduled_at" json:"scheduled_at"` // next fire
	PostID         string    `db:"post_id" json:"post_id,omitempty"` // most recent published post
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Per-tick statuses. Every status except cancelled (and captcha_required,
// which stops the timer) returns to pending on the next cron fire.
const (
	ScheduleStatusPending         = "pending"
	ScheduleStatusDone            = "done"
	ScheduleStatusFailed          = "failed"
	ScheduleStatusCaptchaRequired = "captcha_required"
	ScheduleStatusNoImages        = "no_images"
	ScheduleStatusCancelled       = "cancelled"
)
