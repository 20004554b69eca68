package models

import "time"

// Account is created once after a successful browser login. Password is
// stored AES-GCM encrypted; Proxy is "host:port" or "host:port:user:pass".
type Account struct {
	ID        string    `db:"id" json:"id"`
	Login     string    `db:"login" json:"login"`
	Password  string    `db:"password" json:"-"`
	Proxy     string    `db:"proxy" json:"proxy,omitempty"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
