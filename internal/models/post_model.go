package models

import "time"

// Post is written exactly once per successful publish and never mutated.
type Post struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"account_id"`
	Content   string    `db:"content" json:"content"`
	ImageURL  string    `db:"image_url" json:"image_url,omitempty"`
	Hashtags  string    `db:"hashtags" json:"hashtags,omitempty"`
	TargetURL string    `db:"target_url" json:"target_url,omitempty"`
	Promoted  bool      `db:"promoted" json:"promoted"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
