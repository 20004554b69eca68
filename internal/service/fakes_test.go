package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MarselBissengaliyev/x-backend/internal/browser"
	"github.com/MarselBissengaliyev/x-backend/internal/models"
)

// fakeSession scripts a browser page: selectors listed in visible resolve,
// everything else times out immediately. Evaluate answers the known probe
// scripts from canned JSON payloads.
type fakeSession struct {
	mu      sync.Mutex
	visible map[string]bool

	// canned Evaluate answers
	probeJSON   string // page classification probe
	promoJSON   string // promotion checkbox probe
	saveClicked bool
	postedURL   string

	redirects map[string]string // navigation target -> post-redirect URL

	typed    map[string][]string
	clicked  []string
	uploaded []string
	enters   int
	url      string
	cookies  []browser.Cookie
	received []browser.Cookie
	closed   bool
}

func newFakeSession(visible ...string) *fakeSession {
	v := make(map[string]bool, len(visible))
	for _, sel := range visible {
		v[sel] = true
	}
	return &fakeSession{visible: v, typed: make(map[string][]string)}
}

func (f *fakeSession) show(sel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible[sel] = true
}

func (f *fakeSession) hide(sel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.visible, sel)
}

func (f *fakeSession) isVisible(sel string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible[sel]
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if to, ok := f.redirects[url]; ok {
		f.url = to
	} else {
		f.url = url
	}
	return nil
}

func (f *fakeSession) WaitVisible(_ context.Context, sel string, _ time.Duration) error {
	if !f.isVisible(sel) {
		return fmt.Errorf("selector %s not visible", sel)
	}
	return nil
}

func (f *fakeSession) Type(_ context.Context, sel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed[sel] = append(f.typed[sel], text)
	return nil
}

func (f *fakeSession) PressEnter(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enters++
	return nil
}

func (f *fakeSession) Click(_ context.Context, sel string, _ time.Duration) error {
	if !f.isVisible(sel) {
		return fmt.Errorf("selector %s not clickable", sel)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicked = append(f.clicked, sel)
	return nil
}

func (f *fakeSession) ClickIfPresent(_ context.Context, sel string) (bool, error) {
	if !f.isVisible(sel) {
		return false, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicked = append(f.clicked, sel)
	return true, nil
}


func (f *fakeSession) Evaluate(_ context.Context, js string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.Contains(js, "hasCaptcha"):
		payload := f.probeJSON
		if payload == "" {
			payload = `{}`
		}
		return json.Unmarshal([]byte(payload), out)
	case strings.Contains(js, "Button--small"):
		return json.Unmarshal([]byte(strconv.FormatBool(f.saveClicked)), out)
	case strings.Contains(js, "postedTweetLink"):
		return json.Unmarshal([]byte(strconv.Quote(f.postedURL)), out)
	case strings.Contains(js, "checked"):
		payload := f.promoJSON
		if payload == "" {
			payload = `{"found":false,"checked":false}`
		}
		return json.Unmarshal([]byte(payload), out)
	}
	return nil
}

func (f *fakeSession) SetUploadFile(_ context.Context, _, path string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, path)
	return nil
}

func (f *fakeSession) WaitEnabled(_ context.Context, sel string, _ time.Duration) error {
	if !f.isVisible(sel) {
		return fmt.Errorf("selector %s not enabled", sel)
	}
	return nil
}

func (f *fakeSession) URL(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *fakeSession) Cookies(_ context.Context) ([]browser.Cookie, error) {
	return f.cookies, nil
}

func (f *fakeSession) SetCookies(_ context.Context, cookies []browser.Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = cookies
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeDriver struct {
	session *fakeSession
	err     error
}

func (d *fakeDriver) NewSession(_ context.Context, _ browser.SessionOptions) (browser.Session, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

// memAccountRepo is an in-memory AccountRepository.
type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[string]*models.Account)}
}

func (r *memAccountRepo) GetByID(_ context.Context, id string) (*models.Account, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	return a, ok, nil
}

func (r *memAccountRepo) GetByLogin(_ context.Context, login string) (*models.Account, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Login == login {
			return a, true, nil
		}
	}
	return nil, false, nil
}

func (r *memAccountRepo) Create(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
	return nil
}

func (r *memAccountRepo) List(_ context.Context) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (r *memAccountRepo) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
	return nil
}

// memAssetRepo mimics the claim semantics of the SQL repository, including
// the at-most-once guarantee under concurrency.
type memAssetRepo struct {
	mu     sync.Mutex
	nextID int64
	assets []*models.MediaAsset
}

func (r *memAssetRepo) ClaimUnused(_ context.Context, scheduledPostID string) (*models.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assets {
		if a.ScheduledPostID == scheduledPostID && !a.Used {
			a.Used = true
			claimed := *a
			return &claimed, nil
		}
	}
	return nil, nil
}

func (r *memAssetRepo) BulkCreate(_ context.Context, scheduledPostID string, fileIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fileID := range fileIDs {
		exists := false
		for _, a := range r.assets {
			if a.ScheduledPostID == scheduledPostID && a.FileID == fileID {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		r.nextID++
		r.assets = append(r.assets, &models.MediaAsset{
			ID:              r.nextID,
			ScheduledPostID: scheduledPostID,
			FileID:          fileID,
		})
	}
	return nil
}

func (r *memAssetRepo) CountUnused(_ context.Context, scheduledPostID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.assets {
		if a.ScheduledPostID == scheduledPostID && !a.Used {
			n++
		}
	}
	return n, nil
}

func (r *memAssetRepo) RemoveByScheduledPost(_ context.Context, scheduledPostID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.assets[:0]
	for _, a := range r.assets {
		if a.ScheduledPostID != scheduledPostID {
			kept = append(kept, a)
		}
	}
	r.assets = kept
	return nil
}

// fakeDrive serves folder listings and downloads from memory.
type fakeDrive struct {
	mu        sync.Mutex
	folders   map[string][]string
	listErr   error
	listCalls int
}

func (d *fakeDrive) ListFolder(_ context.Context, folderID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listCalls++
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.folders[folderID], nil
}

func (d *fakeDrive) Download(_ context.Context, fileID string) (string, error) {
	return "/tmp/" + fileID + ".jpg", nil
}

// scriptedGenerator returns canned strings or errors per generation kind.
type scriptedGenerator struct {
	text, image, analyzed, hashtags string
	textErr, imageErr, hashtagsErr  error

	mu    sync.Mutex
	calls []string
}

func (g *scriptedGenerator) record(kind string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, kind)
}

func (g *scriptedGenerator) GenerateText(_ context.Context, _ string) (string, error) {
	g.record("text")
	return g.text, g.textErr
}

func (g *scriptedGenerator) GenerateImage(_ context.Context, _ string) (string, error) {
	g.record("image")
	return g.image, g.imageErr
}

func (g *scriptedGenerator) AnalyzeAndRegenerateImage(_ context.Context, _, _ string) (string, error) {
	g.record("analyze")
	return g.analyzed, g.imageErr
}

func (g *scriptedGenerator) GenerateHashtags(_ context.Context, _ string) (string, error) {
	g.record("hashtags")
	return g.hashtags, g.hashtagsErr
}
