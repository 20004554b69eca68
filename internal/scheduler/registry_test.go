package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MarselBissengaliyev/x-backend/internal/models"
	"github.com/MarselBissengaliyev/x-backend/internal/service"
	"github.com/MarselBissengaliyev/x-backend/internal/transfer"
)

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
}

func (r *memAccounts) GetByID(_ context.Context, id string) (*models.Account, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	return a, ok, nil
}

func (r *memAccounts) GetByLogin(_ context.Context, login string) (*models.Account, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Login == login {
			return a, true, nil
		}
	}
	return nil, false, nil
}

func (r *memAccounts) Create(_ context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
	return nil
}

func (r *memAccounts) List(_ context.Context) ([]*models.Account, error) { return nil, nil }

func (r *memAccounts) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
	return nil
}

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]*models.ScheduledPost
}

func (r *memJobs) GetByID(_ context.Context, id string) (*models.ScheduledPost, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, false, nil
	}
	cp := *j
	return &cp, true, nil
}

func (r *memJobs) Create(_ context.Context, sp *models.ScheduledPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[sp.ID] = sp
	return nil
}

func (r *memJobs) GetByAccountID(_ context.Context, accountID string) ([]*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ScheduledPost
	for _, j := range r.jobs {
		if j.AccountID == accountID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (r *memJobs) ListActive(_ context.Context) ([]*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ScheduledPost
	for _, j := range r.jobs {
		if j.Status != models.ScheduleStatusCancelled && j.Status != models.ScheduleStatusCaptchaRequired {
			out = append(out, j)
		}
	}
	return out, nil
}

func (r *memJobs) UpdateStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.Status = status
	}
	return nil
}

func (r *memJobs) UpdateResult(_ context.Context, id, status, postID string, nextRun time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.Status = status
		if postID != "" {
			j.PostID = postID
		}
		j.ScheduledAt = nextRun
	}
	return nil
}

func (r *memJobs) UpdateNextRun(_ context.Context, id string, nextRun time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.ScheduledAt = nextRun
	}
	return nil
}

func (r *memJobs) Remove(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return false, nil
	}
	delete(r.jobs, id)
	return true, nil
}

type memPosts struct {
	mu    sync.Mutex
	posts []*models.Post
}

func (r *memPosts) GetByID(_ context.Context, _ string) (*models.Post, error) { return nil, nil }

func (r *memPosts) Create(_ context.Context, p *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, p)
	return nil
}

func (r *memPosts) GetByAccountID(_ context.Context, _ string) ([]*models.Post, error) {
	return nil, nil
}

func (r *memPosts) Remove(_ context.Context, _ string) error { return nil }

type memAssets struct {
	mu      sync.Mutex
	removed []string
}

func (r *memAssets) ClaimUnused(_ context.Context, _ string) (*models.MediaAsset, error) {
	return nil, nil
}

func (r *memAssets) BulkCreate(_ context.Context, _ string, _ []string) error { return nil }

func (r *memAssets) CountUnused(_ context.Context, _ string) (int64, error) { return 0, nil }

func (r *memAssets) RemoveByScheduledPost(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
	return nil
}

type stubClaims struct {
	asset *models.MediaAsset
	err   error
}

func (s *stubClaims) Claim(_ context.Context, _ *models.ScheduledPost) (*models.MediaAsset, error) {
	return s.asset, s.err
}

func (s *stubClaims) Resolve(_ context.Context, asset *models.MediaAsset) (string, error) {
	return "/tmp/" + asset.FileID + ".jpg", nil
}

type stubContent struct {
	err error
}

func (s *stubContent) Generate(_ context.Context, sp *models.ScheduledPost, claimed string) (*service.GeneratedContent, error) {
	if s.err != nil {
		return nil, s.err
	}
	content := &service.GeneratedContent{
		Text: service.Field{Value: "generated text", Requested: true},
	}
	if claimed != "" {
		content.Image = service.Field{Value: claimed, Requested: true}
	}
	return content, nil
}

type stubPublisher struct {
	mu       sync.Mutex
	err      error
	requests []*service.PublishRequest
}

func (s *stubPublisher) Publish(_ context.Context, _ *models.Account, req *service.PublishRequest) (*service.PublishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &service.PublishResult{PostedURL: "https://x.com/user/status/1"}, nil
}

type fixture struct {
	registry  *Registry
	accounts  *memAccounts
	jobs      *memJobs
	posts     *memPosts
	assets    *memAssets
	claims    *stubClaims
	publisher *stubPublisher
	content   *stubContent
}

func newFixture() *fixture {
	f := &fixture{
		accounts:  &memAccounts{accounts: map[string]*models.Account{"acc1": {ID: "acc1", Login: "user"}}},
		jobs:      &memJobs{jobs: make(map[string]*models.ScheduledPost)},
		posts:     &memPosts{},
		assets:    &memAssets{},
		claims:    &stubClaims{},
		publisher: &stubPublisher{},
		content:   &stubContent{},
	}
	f.registry = NewRegistry(f.accounts, f.jobs, f.posts, f.assets, f.claims, f.content, f.publisher)
	return f
}

func (f *fixture) schedule(t *testing.T, req *transfer.ScheduleCreation) *models.ScheduledPost {
	t.Helper()
	sp, err := f.registry.Schedule(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	return sp
}

func baseRequest() *transfer.ScheduleCreation {
	return &transfer.ScheduleCreation{
		AccountID:      "acc1",
		CronExpression: "0 12 * * *",
		PromptText:     "write a post",
	}
}

func TestScheduleRegistersTimer(t *testing.T) {
	f := newFixture()

	sp := f.schedule(t, baseRequest())
	if sp.Status != models.ScheduleStatusPending {
		t.Errorf("status = %q", sp.Status)
	}
	if sp.ScheduledAt.IsZero() {
		t.Error("next fire time not computed")
	}
	if ids := f.registry.ActiveJobIDs(); len(ids) != 1 || ids[0] != sp.ID {
		t.Errorf("active jobs = %v", ids)
	}
}

func TestScheduleRejectsInvalidCron(t *testing.T) {
	f := newFixture()
	req := baseRequest()
	req.CronExpression = "not a cron"

	if _, err := f.registry.Schedule(context.Background(), req); err == nil {
		t.Fatal("expected cron validation error")
	}
	if len(f.registry.ActiveJobIDs()) != 0 {
		t.Error("invalid job must not leave a timer behind")
	}
}

func TestScheduleRejectsUnknownAccount(t *testing.T) {
	f := newFixture()
	req := baseRequest()
	req.AccountID = "ghost"

	_, err := f.registry.Schedule(context.Background(), req)
	if !errors.Is(err, service.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	f := newFixture()
	sp := f.schedule(t, baseRequest())

	if err := f.registry.Remove(context.Background(), sp.ID); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	if len(f.registry.ActiveJobIDs()) != 0 {
		t.Error("timer must be gone after remove")
	}
	if len(f.assets.removed) != 1 {
		t.Error("asset pool must be cleared with the job")
	}

	err := f.registry.Remove(context.Background(), sp.ID)
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("second remove: want ErrJobNotFound, got %v", err)
	}
}

func TestTickPublishesAndRecordsPost(t *testing.T) {
	f := newFixture()
	sp := f.schedule(t, baseRequest())

	f.registry.runTick(sp.ID)

	job, _, _ := f.jobs.GetByID(context.Background(), sp.ID)
	if job.Status != models.ScheduleStatusDone {
		t.Errorf("status = %q", job.Status)
	}
	if job.PostID == "" {
		t.Error("done tick must record the post id")
	}
	if len(f.posts.posts) != 1 {
		t.Fatalf("posts created = %d", len(f.posts.posts))
	}
	if f.posts.posts[0].Content != "generated text" {
		t.Errorf("post content = %q", f.posts.posts[0].Content)
	}
	if job.ScheduledAt.IsZero() {
		t.Error("next fire time must be rescheduled")
	}
}

func TestTickNoImagesIsSoft(t *testing.T) {
	f := newFixture()
	f.claims.err = service.ErrNoImagesAvailable
	req := baseRequest()
	req.ImagesSource = "folder123"
	sp := f.schedule(t, req)

	f.registry.runTick(sp.ID)

	job, _, _ := f.jobs.GetByID(context.Background(), sp.ID)
	if job.Status != models.ScheduleStatusNoImages {
		t.Errorf("status = %q", job.Status)
	}
	if len(f.publisher.requests) != 0 {
		t.Error("nothing must be published without an image")
	}
	if len(f.registry.ActiveJobIDs()) != 1 {
		t.Error("no_images must keep the timer running")
	}
}

func TestTickCaptchaStopsTimer(t *testing.T) {
	f := newFixture()
	f.publisher.err = service.ErrCaptchaDetected
	sp := f.schedule(t, baseRequest())

	f.registry.runTick(sp.ID)

	job, _, _ := f.jobs.GetByID(context.Background(), sp.ID)
	if job.Status != models.ScheduleStatusCaptchaRequired {
		t.Errorf("status = %q", job.Status)
	}
	if len(f.registry.ActiveJobIDs()) != 0 {
		t.Error("captcha must stop the timer")
	}
}

func TestTickPublishFailureKeepsTimer(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("composer broke")
	sp := f.schedule(t, baseRequest())

	f.registry.runTick(sp.ID)

	job, _, _ := f.jobs.GetByID(context.Background(), sp.ID)
	if job.Status != models.ScheduleStatusFailed {
		t.Errorf("status = %q", job.Status)
	}
	if len(f.registry.ActiveJobIDs()) != 1 {
		t.Error("a failed tick must leave the timer for the next fire")
	}
}

func TestFailedTickKeepsLastPostReference(t *testing.T) {
	f := newFixture()
	sp := f.schedule(t, baseRequest())

	f.registry.runTick(sp.ID)
	job, _, _ := f.jobs.GetByID(context.Background(), sp.ID)
	firstPost := job.PostID
	if firstPost == "" {
		t.Fatal("done tick must record the post id")
	}

	f.publisher.err = errors.New("composer broke")
	f.registry.runTick(sp.ID)

	job, _, _ = f.jobs.GetByID(context.Background(), sp.ID)
	if job.Status != models.ScheduleStatusFailed {
		t.Errorf("status = %q", job.Status)
	}
	if job.PostID != firstPost {
		t.Errorf("post reference = %q, want %q", job.PostID, firstPost)
	}
}

func TestTickTearsDownOrphanedJob(t *testing.T) {
	f := newFixture()
	sp := f.schedule(t, baseRequest())
	if err := f.accounts.Remove(context.Background(), "acc1"); err != nil {
		t.Fatal(err)
	}

	f.registry.runTick(sp.ID)

	if _, found, _ := f.jobs.GetByID(context.Background(), sp.ID); found {
		t.Error("orphaned job must be deleted")
	}
	if len(f.registry.ActiveJobIDs()) != 0 {
		t.Error("orphaned job must lose its timer")
	}
	if len(f.assets.removed) != 1 {
		t.Error("orphaned job must drop its asset pool")
	}
}

func TestTickAfterRemoveDoesNothing(t *testing.T) {
	f := newFixture()
	sp := f.schedule(t, baseRequest())
	if err := f.registry.Remove(context.Background(), sp.ID); err != nil {
		t.Fatal(err)
	}

	f.registry.runTick(sp.ID)

	if len(f.publisher.requests) != 0 {
		t.Error("a removed job must not publish")
	}
	if len(f.posts.posts) != 0 {
		t.Error("a removed job must not create posts")
	}
}

func TestRestoreSkipsCaptchaJobs(t *testing.T) {
	f := newFixture()
	f.jobs.jobs["j1"] = &models.ScheduledPost{ID: "j1", AccountID: "acc1", CronExpression: "0 12 * * *", Status: models.ScheduleStatusPending}
	f.jobs.jobs["j2"] = &models.ScheduledPost{ID: "j2", AccountID: "acc1", CronExpression: "0 12 * * *", Status: models.ScheduleStatusCaptchaRequired}

	if err := f.registry.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}

	ids := f.registry.ActiveJobIDs()
	if len(ids) != 1 || ids[0] != "j1" {
		t.Errorf("restored jobs = %v", ids)
	}
	if f.jobs.jobs["j1"].ScheduledAt.IsZero() {
		t.Error("restore must recompute the next fire time")
	}
}
