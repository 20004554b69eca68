package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	config "github.com/MarselBissengaliyev/x-backend/configs"
	"github.com/MarselBissengaliyev/x-backend/internal/browser"
	"github.com/MarselBissengaliyev/x-backend/internal/models"
	"github.com/MarselBissengaliyev/x-backend/internal/repository"
	"github.com/MarselBissengaliyev/x-backend/internal/transfer"
	"github.com/MarselBissengaliyev/x-backend/pkg/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const loginURL = "https://twitter.com/i/flow/login"

const (
	identifierInputSel   = `input[name="text"]`
	passwordInputSel     = `input[name="password"]`
	secondFactorInput    = `input[data-testid="ocfEnterTextTextInput"]`
	secondFactorNextBtn  = `[data-testid="ocfEnterTextNextButton"]`
	loggedInTimelineSel  = `a[data-testid="AppTabBar_Home_Link"]`
	challengeHeadingSel  = `h1[role="heading"]`
	challengeProbeWait   = 3 * time.Second
	secondFactorWait     = 5 * time.Second
	passwordFieldWait    = 30 * time.Second
	postSubmitSettleTime = 2 * time.Second
)

// LoginOutcome is the result of one login step. Exactly one of the state
// flags is set; SessionID is present for the two intermediate states.
type LoginOutcome struct {
	Authenticated     bool   `json:"success"`
	ChallengeRequired bool   `json:"challenge_required,omitempty"`
	TwoFactorRequired bool   `json:"two_factor_required,omitempty"`
	Rejected          bool   `json:"rejected,omitempty"`
	Reason            string `json:"reason,omitempty"`
	SessionID         string `json:"session_id,omitempty"`
	AccountID         string `json:"account_id,omitempty"`
}

type AuthService interface {
	BeginLogin(ctx context.Context, req *transfer.AccountCreation) (*LoginOutcome, error)
	ContinueChallenge(ctx context.Context, sessionID, challengeInput, password string) (*LoginOutcome, error)
	ContinueSecondFactor(ctx context.Context, sessionID, code string) (*LoginOutcome, error)
}

type authService struct {
	cfg        config.Config
	driver     browser.Driver
	classifier browser.Classifier
	cookies    *browser.CookieStore
	sessions   *SessionStore
	accounts   repository.AccountRepository
}

func NewAuthService(
	cfg config.Config,
	driver browser.Driver,
	classifier browser.Classifier,
	cookies *browser.CookieStore,
	sessions *SessionStore,
	accounts repository.AccountRepository) AuthService {
	return &authService{
		cfg:        cfg,
		driver:     driver,
		classifier: classifier,
		cookies:    cookies,
		sessions:   sessions,
		accounts:   accounts,
	}
}

// BeginLogin drives the login flow until it either completes or parks the
// page behind a session id waiting for user input.
func (s *authService) BeginLogin(ctx context.Context, req *transfer.AccountCreation) (*LoginOutcome, error) {
	slog.Info("starting login", "login", req.Login)

	page, err := s.driver.NewSession(ctx, browser.SessionOptions{
		UserAgent: req.UserAgent,
		Proxy:     req.Proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}

	outcome, keepPage, err := s.submitIdentifier(ctx, page, req)
	if !keepPage {
		page.Close()
	}
	return outcome, err
}

func (s *authService) submitIdentifier(ctx context.Context, page browser.Session, req *transfer.AccountCreation) (*LoginOutcome, bool, error) {
	if err := page.Navigate(ctx, loginURL); err != nil {
		return nil, false, fmt.Errorf("navigate to login: %w", err)
	}
	if err := page.WaitVisible(ctx, identifierInputSel, 10*time.Second); err != nil {
		return nil, false, fmt.Errorf("login form did not appear: %w", err)
	}
	if err := page.Type(ctx, identifierInputSel, req.Login); err != nil {
		return nil, false, err
	}
	if err := page.PressEnter(ctx); err != nil {
		return nil, false, err
	}
	settle(ctx, postSubmitSettleTime)

	// The unusual-activity interstitial appears before the password step.
	// Absence of the heading within the probe window is the normal path.
	_ = page.WaitVisible(ctx, challengeHeadingSel, challengeProbeWait)
	cls, err := s.classifier.Classify(ctx, page)
	if err != nil {
		return nil, false, fmt.Errorf("classify page after identifier: %w", err)
	}
	if cls.State == browser.StateChallenge {
		slog.Info("unusual login activity challenge detected", "login", req.Login)
		sessionID, err := s.sessions.Put(page, *req)
		if err != nil {
			return nil, false, err
		}
		return &LoginOutcome{ChallengeRequired: true, SessionID: sessionID}, true, nil
	}

	return s.submitPassword(ctx, page, req, req.Password)
}

// submitPassword runs the shared tail of the flow: password entry, inline
// error detection and the second-factor probe.
func (s *authService) submitPassword(ctx context.Context, page browser.Session, req *transfer.AccountCreation, password string) (*LoginOutcome, bool, error) {
	if err := page.WaitVisible(ctx, passwordInputSel, passwordFieldWait); err != nil {
		return nil, false, fmt.Errorf("password field did not appear: %w", err)
	}
	if err := page.Type(ctx, passwordInputSel, password); err != nil {
		return nil, false, err
	}
	if err := page.PressEnter(ctx); err != nil {
		return nil, false, err
	}
	settle(ctx, postSubmitSettleTime+time.Second)

	// Bounded probe: the 2FA input shows up shortly after the password step
	// when the account has it enabled.
	_ = page.WaitVisible(ctx, secondFactorInput, secondFactorWait)
	cls, err := s.classifier.Classify(ctx, page)
	if err != nil {
		return nil, false, fmt.Errorf("classify page after password: %w", err)
	}

	switch cls.State {
	case browser.StateError:
		slog.Info("login rejected", "login", req.Login, "reason", cls.Message)
		return &LoginOutcome{Rejected: true, Reason: cls.Message}, false, nil
	case browser.StateSecondFactor:
		slog.Info("second factor required", "login", req.Login)
		sessionID, err := s.sessions.Put(page, *req)
		if err != nil {
			return nil, false, err
		}
		return &LoginOutcome{TwoFactorRequired: true, SessionID: sessionID}, true, nil
	}

	accountID, err := s.finishLogin(ctx, page, req)
	if err != nil {
		return nil, false, err
	}
	return &LoginOutcome{Authenticated: true, AccountID: accountID}, false, nil
}

// ContinueChallenge resumes a parked ChallengeRequired session. Unexpected
// failures leave the session in the store for one retry.
func (s *authService) ContinueChallenge(ctx context.Context, sessionID, challengeInput, password string) (*LoginOutcome, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	page, pending := sess.page, sess.pending

	slog.Info("submitting challenge input", "login", pending.Login)
	if err := page.Type(ctx, identifierInputSel, challengeInput); err != nil {
		return nil, err
	}
	if err := page.PressEnter(ctx); err != nil {
		return nil, err
	}
	settle(ctx, postSubmitSettleTime)

	outcome, keepPage, err := s.submitPassword(ctx, page, &pending, password)
	if err != nil {
		return nil, err
	}

	if keepPage {
		// The page moved on to the 2FA stage under a fresh single-use id.
		s.sessions.Release(sessionID)
	} else {
		s.sessions.Discard(sessionID)
	}
	return outcome, nil
}

// ContinueSecondFactor resumes a parked SecondFactorRequired session with
// the out-of-band code.
func (s *authService) ContinueSecondFactor(ctx context.Context, sessionID, code string) (*LoginOutcome, error) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	page, pending := sess.page, sess.pending

	slog.Info("submitting second factor code", "login", pending.Login)
	if err := page.Type(ctx, secondFactorInput, code); err != nil {
		return nil, err
	}
	if err := page.Click(ctx, secondFactorNextBtn, 10*time.Second); err != nil {
		return nil, err
	}
	if err := page.WaitVisible(ctx, loggedInTimelineSel, 20*time.Second); err != nil {
		return nil, fmt.Errorf("timeline did not appear after code: %w", err)
	}

	accountID, err := s.finishLogin(ctx, page, &pending)
	if err != nil {
		return nil, err
	}

	s.sessions.Discard(sessionID)
	return &LoginOutcome{Authenticated: true, AccountID: accountID}, nil
}

// finishLogin persists the cookie jar and makes sure the account row exists.
func (s *authService) finishLogin(ctx context.Context, page browser.Session, req *transfer.AccountCreation) (string, error) {
	cookies, err := page.Cookies(ctx)
	if err != nil {
		return "", fmt.Errorf("read cookies: %w", err)
	}
	if err := s.cookies.Save(req.Login, cookies); err != nil {
		return "", fmt.Errorf("save cookies: %w", err)
	}
	slog.Info("cookies saved after successful login", "login", req.Login)

	existing, found, err := s.accounts.GetByLogin(ctx, req.Login)
	if err != nil {
		return "", err
	}
	if found {
		return existing.ID, nil
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	encrypted, err := utils.Encrypt([]byte(req.Password), []byte(s.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("encrypt password: %w", err)
	}

	account := &models.Account{
		ID:        id,
		Login:     req.Login,
		Password:  encrypted,
		Proxy:     req.Proxy,
		UserAgent: req.UserAgent,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return "", err
	}
	slog.Info("account created", "login", req.Login)
	return id, nil
}

// settle gives the page time to react to a submit, honouring cancellation.
func settle(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
