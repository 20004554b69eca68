package service

import "errors"

var (
	// ErrNoImagesAvailable means the job's asset pool is exhausted even after
	// re-enumerating its source folder. Callers skip the tick, they do not
	// treat it as a failure.
	ErrNoImagesAvailable = errors.New("no unused images available")

	// ErrCaptchaDetected pauses the job until someone resolves the captcha by
	// hand; retrying would only dig the hole deeper.
	ErrCaptchaDetected = errors.New("captcha detected, manual intervention required")

	ErrSessionNotFound = errors.New("login session not found or expired")
	ErrAccountNotFound = errors.New("account not found")
)
