package transfer

type AccountCreation struct {
	Login     string `json:"login"`
	Password  string `json:"password"`
	Proxy     string `json:"proxy,omitempty"`
	UserAgent string `json:"user_agent"`
}

type ChallengeSubmission struct {
	SessionID      string `json:"session_id"`
	ChallengeInput string `json:"challenge_input"`
	Password       string `json:"password"`
}

type CodeSubmission struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}
