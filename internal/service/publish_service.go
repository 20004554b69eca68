package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/MarselBissengaliyev/x-backend/internal/browser"
	"github.com/MarselBissengaliyev/x-backend/internal/media"
	"github.com/MarselBissengaliyev/x-backend/internal/models"
)

const (
	adsHomeURL        = "https://ads.x.com"
	composerURLFormat = "https://ads.x.com/composer/%s/carousel"
)

// Publish step names; they double as the failure reason in StepError.
const (
	StepLoadCookies        = "load_cookies"
	StepNavigateComposer   = "navigate_composer"
	StepDetectInterstitial = "detect_interstitial"
	StepAttachMedia        = "attach_media"
	StepDestinationCard    = "set_destination_card"
	StepInsertContent      = "insert_content"
	StepPromotionToggle    = "set_promotion_toggle"
	StepAwaitPublishButton = "await_publish_button"
	StepClickPublish       = "click_publish"
	StepConfirmation       = "await_confirmation"
)

const (
	welcomeModalCloseSel = `.Dialog--modal.Dialog--withClose.is-open button[aria-label="Close"]`
	singleMediaFormatSel = `[data-testid="adFormatsGroup-SINGLE_MEDIA"]`
	addMediaButtonSel    = `button[data-test-id="addMediaButton"]`
	fileInputSel         = `.FilePicker-callToActionFileInput`
	tweetEditorSel       = `.TweetTextInput-editor`
	promotedCheckboxSel  = `[data-test-id="promotedOnlyCheckbox"] .Checkbox-input`
	destinationInputSel  = `[data-test-id="destinationUrlCard"] input[name="websiteUrl"]`
	publishButtonSel     = `button[data-test-id="tweetSaveButton"]`
	confirmationLinkSel  = `a[data-test-id="postedTweetLink"]`
)

var adsAccountIDPattern = regexp.MustCompile(`analytics/([^/]+)/campaigns`)

// StepError names the publish step that could not locate its element within
// its bounded wait. The next cron fire retries the whole attempt.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("publish step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

type PublishRequest struct {
	Content     string
	Hashtags    string
	ImageSource string // generated URL or claimed local path, empty for none
	TargetURL   string
	Promoted    bool
}

type PublishResult struct {
	PostedURL string
}

// PublishService drives the ads composer end to end for one post.
type PublishService interface {
	Publish(ctx context.Context, account *models.Account, req *PublishRequest) (*PublishResult, error)
}

type publishService struct {
	driver     browser.Driver
	classifier browser.Classifier
	cookies    *browser.CookieStore
}

func NewPublishService(driver browser.Driver, classifier browser.Classifier, cookies *browser.CookieStore) PublishService {
	return &publishService{driver: driver, classifier: classifier, cookies: cookies}
}

func (s *publishService) Publish(ctx context.Context, account *models.Account, req *PublishRequest) (*PublishResult, error) {
	jar, err := s.cookies.Load(account.Login)
	if err != nil {
		return nil, &StepError{Step: StepLoadCookies, Err: err}
	}

	page, err := s.driver.NewSession(ctx, browser.SessionOptions{
		UserAgent: account.UserAgent,
		Proxy:     account.Proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	defer page.Close()

	if err := page.SetCookies(ctx, jar); err != nil {
		return nil, &StepError{Step: StepLoadCookies, Err: err}
	}

	if err := s.navigateToComposer(ctx, page); err != nil {
		return nil, err
	}

	cls, err := s.classifier.Classify(ctx, page)
	if err != nil {
		return nil, &StepError{Step: StepDetectInterstitial, Err: err}
	}
	if cls.State == browser.StateCaptcha {
		slog.Warn("captcha interstitial detected", "login", account.Login)
		return nil, ErrCaptchaDetected
	}

	if closed, err := page.ClickIfPresent(ctx, welcomeModalCloseSel); err == nil && closed {
		slog.Info("welcome modal dismissed")
	}

	if req.ImageSource != "" {
		if err := s.attachMedia(ctx, page, req.ImageSource); err != nil {
			return nil, err
		}
	}
	if req.TargetURL != "" {
		if err := s.setDestinationCard(ctx, page, req.TargetURL); err != nil {
			return nil, err
		}
	}
	if err := s.insertContent(ctx, page, req); err != nil {
		return nil, err
	}
	if err := s.setPromotionToggle(ctx, page, req.Promoted); err != nil {
		return nil, err
	}

	return s.publishAndConfirm(ctx, page)
}

// navigateToComposer loads the ads home, extracts the ads account id from
// the post-redirect URL and opens the carousel composer.
func (s *publishService) navigateToComposer(ctx context.Context, page browser.Session) error {
	if err := page.Navigate(ctx, adsHomeURL); err != nil {
		return &StepError{Step: StepNavigateComposer, Err: err}
	}

	var adsAccountID string
	for attempt := 0; attempt < 10; attempt++ {
		url, err := page.URL(ctx)
		if err != nil {
			return &StepError{Step: StepNavigateComposer, Err: err}
		}
		if m := adsAccountIDPattern.FindStringSubmatch(url); m != nil {
			adsAccountID = m[1]
			break
		}
		settle(ctx, time.Second)
	}
	if adsAccountID == "" {
		return &StepError{Step: StepNavigateComposer, Err: fmt.Errorf("ads account id not found in URL")}
	}

	if err := page.Navigate(ctx, fmt.Sprintf(composerURLFormat, adsAccountID)); err != nil {
		return &StepError{Step: StepNavigateComposer, Err: err}
	}
	return nil
}

// attachMedia uploads the (transformed) image through the composer's file
// picker. The temp file produced by the transform is always removed.
func (s *publishService) attachMedia(ctx context.Context, page browser.Session, source string) error {
	localPath, err := media.PrepareForUpload(ctx, source)
	if err != nil {
		return &StepError{Step: StepAttachMedia, Err: err}
	}
	defer os.Remove(localPath)

	if err := page.Click(ctx, singleMediaFormatSel, 20*time.Second); err != nil {
		return &StepError{Step: StepAttachMedia, Err: err}
	}
	if err := page.Click(ctx, addMediaButtonSel, 20*time.Second); err != nil {
		return &StepError{Step: StepAttachMedia, Err: err}
	}
	if err := page.SetUploadFile(ctx, fileInputSel, localPath, 20*time.Second); err != nil {
		return &StepError{Step: StepAttachMedia, Err: err}
	}

	// The save button has no stable test id; match it by label.
	var saved bool
	saveJS := `(() => {
		for (const btn of document.querySelectorAll("button.Button--small")) {
			if (btn.textContent && btn.textContent.trim() === "Save") {
				btn.click();
				return true;
			}
		}
		return false;
	})()`
	if err := page.Evaluate(ctx, saveJS, &saved); err != nil {
		return &StepError{Step: StepAttachMedia, Err: err}
	}
	if !saved {
		return &StepError{Step: StepAttachMedia, Err: fmt.Errorf("save button not found")}
	}
	return nil
}

func (s *publishService) setDestinationCard(ctx context.Context, page browser.Session, targetURL string) error {
	if err := page.WaitVisible(ctx, destinationInputSel, 10*time.Second); err != nil {
		return &StepError{Step: StepDestinationCard, Err: err}
	}
	if err := page.Type(ctx, destinationInputSel, targetURL); err != nil {
		return &StepError{Step: StepDestinationCard, Err: err}
	}
	return nil
}

func (s *publishService) insertContent(ctx context.Context, page browser.Session, req *PublishRequest) error {
	if err := page.WaitVisible(ctx, tweetEditorSel, 10*time.Second); err != nil {
		return &StepError{Step: StepInsertContent, Err: err}
	}

	parts := []string{strings.TrimSpace(req.Content)}
	if h := strings.TrimSpace(req.Hashtags); h != "" {
		parts = append(parts, h)
	}
	if err := page.Type(ctx, tweetEditorSel, strings.Join(parts, "\n")); err != nil {
		return &StepError{Step: StepInsertContent, Err: err}
	}
	return nil
}

// setPromotionToggle is idempotent: it reads the current checkbox state and
// clicks only when it differs from the desired one.
func (s *publishService) setPromotionToggle(ctx context.Context, page browser.Session, promoted bool) error {
	var probe struct {
		Found   bool `json:"found"`
		Checked bool `json:"checked"`
	}
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return { found: !!el, checked: !!el && el.checked };
	})()`, promotedCheckboxSel)
	if err := page.Evaluate(ctx, js, &probe); err != nil {
		return &StepError{Step: StepPromotionToggle, Err: err}
	}
	if !probe.Found || probe.Checked == promoted {
		return nil
	}

	if err := page.Click(ctx, promotedCheckboxSel, 5*time.Second); err != nil {
		return &StepError{Step: StepPromotionToggle, Err: err}
	}
	settle(ctx, 500*time.Millisecond)
	return nil
}

func (s *publishService) publishAndConfirm(ctx context.Context, page browser.Session) (*PublishResult, error) {
	if err := page.WaitEnabled(ctx, publishButtonSel, 20*time.Second); err != nil {
		return nil, &StepError{Step: StepAwaitPublishButton, Err: err}
	}
	if err := page.Click(ctx, publishButtonSel, 10*time.Second); err != nil {
		return nil, &StepError{Step: StepClickPublish, Err: err}
	}

	if err := page.WaitVisible(ctx, confirmationLinkSel, 30*time.Second); err != nil {
		return nil, &StepError{Step: StepConfirmation, Err: err}
	}
	var postedURL string
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el ? el.href : "";
	})()`, confirmationLinkSel)
	if err := page.Evaluate(ctx, js, &postedURL); err != nil {
		return nil, &StepError{Step: StepConfirmation, Err: err}
	}

	slog.Info("post published", "url", postedURL)
	return &PublishResult{PostedURL: postedURL}, nil
}
