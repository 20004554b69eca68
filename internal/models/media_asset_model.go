package models

import "time"

// MediaAsset is one Drive file discovered for a scheduled post. The claim
// transaction in the repository is the only writer of Used.
type MediaAsset struct {
	ID              int64     `db:"id"`
	ScheduledPostID string    `db:"scheduled_post_id"`
	FileID          string    `db:"file_id"`
	Used            bool      `db:"used"`
	CreatedAt       time.Time `db:"created_at"`
}
