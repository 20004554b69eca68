// Package scheduler owns the recurring publish jobs: one cron entry per
// scheduled post, ticking independently, with statuses written back to the
// store after every run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/MarselBissengaliyev/x-backend/internal/models"
	"github.com/MarselBissengaliyev/x-backend/internal/repository"
	"github.com/MarselBissengaliyev/x-backend/internal/service"
	"github.com/MarselBissengaliyev/x-backend/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/robfig/cron/v3"
)

var ErrJobNotFound = errors.New("scheduled post not found")

// Collaborator errors never escape a tick; they are mapped to a status and
// the tick ends. tickTimeout bounds one whole pipeline run.
const tickTimeout = 15 * time.Minute

type Registry struct {
	mu      sync.Mutex
	entries map[string]cron.EntryID
	cron    *cron.Cron
	wg      sync.WaitGroup

	accounts  repository.AccountRepository
	jobs      repository.ScheduledPostRepository
	posts     repository.PostRepository
	assets    repository.MediaAssetRepository
	claims    service.ClaimService
	content   service.ContentService
	publisher service.PublishService
}

func NewRegistry(
	accounts repository.AccountRepository,
	jobs repository.ScheduledPostRepository,
	posts repository.PostRepository,
	assets repository.MediaAssetRepository,
	claims service.ClaimService,
	content service.ContentService,
	publisher service.PublishService) *Registry {
	return &Registry{
		entries:   make(map[string]cron.EntryID),
		cron:      cron.New(),
		accounts:  accounts,
		jobs:      jobs,
		posts:     posts,
		assets:    assets,
		claims:    claims,
		content:   content,
		publisher: publisher,
	}
}

func (r *Registry) Start() {
	r.cron.Start()
	slog.Info("job registry started")
}

// Stop halts the cron engine and waits for in-flight ticks, bounded by ctx.
func (r *Registry) Stop(ctx context.Context) {
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Restore re-registers timers for persisted jobs after a restart. Jobs in
// captcha_required stay paused until someone intervenes.
func (r *Registry) Restore(ctx context.Context) error {
	jobs, err := r.jobs.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := r.register(job.ID, job.CronExpression); err != nil {
			slog.Error("could not restore job timer", "scheduled_post_id", job.ID, "error", err.Error())
			continue
		}
		// Fire times computed before the restart are stale now.
		if err := r.jobs.UpdateNextRun(ctx, job.ID, nextFire(job.CronExpression)); err != nil {
			slog.Info(err.Error())
		}
	}
	slog.Info("restored scheduled jobs", "count", len(jobs))
	return nil
}

// Schedule validates the request, persists the job and starts its timer.
func (r *Registry) Schedule(ctx context.Context, req *transfer.ScheduleCreation) (*models.ScheduledPost, error) {
	_, found, err := r.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, service.ErrAccountNotFound
	}

	sched, err := cron.ParseStandard(req.CronExpression)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", req.CronExpression, err)
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	sp := &models.ScheduledPost{
		ID:             id,
		AccountID:      req.AccountID,
		CronExpression: req.CronExpression,
		PromptText:     req.PromptText,
		PromptImage:    req.PromptImage,
		PromptHashtags: req.PromptHashtags,
		ImagesSource:   req.ImagesSource,
		UseAiOnImage:   req.UseAiOnImage,
		TargetURL:      req.TargetURL,
		PromotedOnly:   req.PromotedOnly,
		Status:         models.ScheduleStatusPending,
		ScheduledAt:    sched.Next(time.Now()),
	}
	if err := r.jobs.Create(ctx, sp); err != nil {
		return nil, err
	}

	if err := r.register(id, req.CronExpression); err != nil {
		// Keep the store consistent with the timer set.
		if _, removeErr := r.jobs.Remove(ctx, id); removeErr != nil {
			slog.Error(removeErr.Error())
		}
		return nil, err
	}

	slog.Info("post scheduled", "scheduled_post_id", id, "cron", req.CronExpression, "next_run", sp.ScheduledAt)
	return sp, nil
}

// Remove stops the timer before deleting the row so no fresh tick can fire
// against a job that no longer exists. Calling it twice reports not-found
// the second time.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.stopTimer(id)

	if err := r.assets.RemoveByScheduledPost(ctx, id); err != nil {
		return err
	}
	deleted, err := r.jobs.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrJobNotFound
	}
	slog.Info("scheduled post removed", "scheduled_post_id", id)
	return nil
}

func (r *Registry) List(ctx context.Context, accountID string) ([]*models.ScheduledPost, error) {
	return r.jobs.GetByAccountID(ctx, accountID)
}

func (r *Registry) ActiveJobIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) register(id, spec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return nil
	}

	// The closure captures only the job id; every tick reloads a fresh
	// snapshot of the job row, so timer mechanics and job parameters stay
	// decoupled.
	entryID, err := r.cron.AddFunc(spec, func() { r.runTick(id) })
	if err != nil {
		return err
	}
	r.entries[id] = entryID
	return nil
}

func (r *Registry) stopTimer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entryID, ok := r.entries[id]; ok {
		r.cron.Remove(entryID)
		delete(r.entries, id)
	}
}

// runTick executes one scheduled publish. It never returns an error: every
// outcome is mapped to a persisted status.
func (r *Registry) runTick(jobID string) {
	r.wg.Add(1)
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	job, found, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		slog.Error("tick aborted, job fetch failed", "scheduled_post_id", jobID, "error", err.Error())
		return
	}
	if !found {
		// Cancelled underneath an already-queued fire.
		r.stopTimer(jobID)
		return
	}

	account, found, err := r.accounts.GetByID(ctx, job.AccountID)
	if err != nil {
		slog.Error("tick aborted, account fetch failed", "scheduled_post_id", jobID, "error", err.Error())
		return
	}
	if !found {
		slog.Warn("account gone, tearing down job", "scheduled_post_id", jobID, "account_id", job.AccountID)
		r.stopTimer(jobID)
		if err := r.assets.RemoveByScheduledPost(ctx, jobID); err != nil {
			slog.Error(err.Error())
		}
		if _, err := r.jobs.Remove(ctx, jobID); err != nil {
			slog.Error(err.Error())
		}
		return
	}

	if err := r.jobs.UpdateStatus(ctx, jobID, models.ScheduleStatusPending); err != nil {
		slog.Info(err.Error())
	}

	status, postID := r.executeTick(ctx, job, account)

	nextRun := nextFire(job.CronExpression)
	if err := r.jobs.UpdateResult(ctx, jobID, status, postID, nextRun); err != nil {
		slog.Error("status write failed", "scheduled_post_id", jobID, "status", status, "error", err.Error())
	}
	if status == models.ScheduleStatusCaptchaRequired {
		slog.Warn("captcha detected, pausing job until manual intervention", "scheduled_post_id", jobID)
		r.stopTimer(jobID)
	}
}

// executeTick runs claim → generate → publish → persist and reports the
// resulting status. Temp files are removed whichever branch runs.
func (r *Registry) executeTick(ctx context.Context, job *models.ScheduledPost, account *models.Account) (status, postID string) {
	var claimedImage string
	defer func() {
		if claimedImage != "" {
			if err := os.Remove(claimedImage); err != nil && !os.IsNotExist(err) {
				slog.Info(err.Error())
			}
		}
	}()

	if job.ImagesSource != "" {
		asset, err := r.claims.Claim(ctx, job)
		if errors.Is(err, service.ErrNoImagesAvailable) {
			slog.Info("no unused images this tick", "scheduled_post_id", job.ID)
			return models.ScheduleStatusNoImages, ""
		}
		if err != nil {
			slog.Error("asset claim failed", "scheduled_post_id", job.ID, "error", err.Error())
			return models.ScheduleStatusFailed, ""
		}
		claimedImage, err = r.claims.Resolve(ctx, asset)
		if err != nil {
			slog.Error("asset download failed", "scheduled_post_id", job.ID, "error", err.Error())
			return models.ScheduleStatusFailed, ""
		}
	}

	content, err := r.content.Generate(ctx, job, claimedImage)
	if err != nil {
		slog.Error("content generation failed", "scheduled_post_id", job.ID, "error", err.Error())
		return models.ScheduleStatusFailed, ""
	}

	req := &service.PublishRequest{
		Content:   content.Text.Value,
		TargetURL: job.TargetURL,
		Promoted:  job.PromotedOnly,
	}
	if content.Image.Present() {
		req.ImageSource = content.Image.Value
	}
	if content.Hashtags.Present() {
		req.Hashtags = content.Hashtags.Value
	}

	result, err := r.publisher.Publish(ctx, account, req)
	if errors.Is(err, service.ErrCaptchaDetected) {
		return models.ScheduleStatusCaptchaRequired, ""
	}
	if err != nil {
		slog.Error("publish failed", "scheduled_post_id", job.ID, "error", err.Error())
		return models.ScheduleStatusFailed, ""
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Error(err.Error())
		return models.ScheduleStatusFailed, ""
	}
	post := &models.Post{
		ID:        id,
		AccountID: account.ID,
		Content:   req.Content,
		ImageURL:  req.ImageSource,
		Hashtags:  req.Hashtags,
		TargetURL: job.TargetURL,
		Promoted:  job.PromotedOnly,
	}
	if err := r.posts.Create(ctx, post); err != nil {
		slog.Error("post record write failed", "scheduled_post_id", job.ID, "error", err.Error())
		return models.ScheduleStatusFailed, ""
	}

	slog.Info("scheduled publish succeeded", "scheduled_post_id", job.ID, "post_id", id, "url", result.PostedURL)
	return models.ScheduleStatusDone, id
}

func nextFire(spec string) time.Time {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(time.Now())
}
