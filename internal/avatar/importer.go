package avatar

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/redmonkez12/chatbot-auth/internal/config"
	"github.com/redmonkez12/chatbot-auth/internal/logging"
)

// Job is one avatar to copy from the identity provider into our storage
type Job struct {
	UserID     uuid.UUID
	PictureURL string
}

// permanentError marks failures that another attempt cannot fix
type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(format string, args ...any) error {
	return permanentError{err: fmt.Errorf(format, args...)}
}

// Importer copies remote avatars into object storage in the background.
// Requests only enqueue; workers fetch, upload and store the URL. Failures
// are logged and never reach the request that scheduled the job.
type Importer struct {
	store       ObjectStore
	users       AvatarUpdater
	client      *resty.Client
	limiter     *rate.Limiter
	logger      *logging.Logger
	jobs        chan Job
	workers     int
	maxAttempts int
	backoff     time.Duration
	maxBytes    int64

	mu      sync.RWMutex
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	newName func(job Job, ext string) (string, error)
}

func NewImporter(store ObjectStore, users AvatarUpdater, cfg config.AvatarConfig, logger *logging.Logger) *Importer {
	return &Importer{
		store:       store,
		users:       users,
		client:      resty.New().SetTimeout(cfg.FetchTimeout),
		limiter:     rate.NewLimiter(rate.Limit(cfg.FetchRate), 1),
		logger:      logger.With("component", "avatar_importer"),
		jobs:        make(chan Job, cfg.QueueSize),
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.RetryBackoff,
		maxBytes:    cfg.MaxBytes,
		newName:     randomName,
	}
}

// Start launches the workers. They run until Stop, independent of any request.
func (i *Importer) Start(ctx context.Context) {
	ctx, i.cancel = context.WithCancel(logging.WithLogger(ctx, i.logger))

	for w := 0; w < i.workers; w++ {
		i.wg.Add(1)
		go func() {
			defer i.wg.Done()
			for job := range i.jobs {
				i.run(ctx, job)
			}
		}()
	}

	i.logger.Info("avatar importer started", "workers", i.workers)
}

// Stop refuses new jobs, lets the workers drain the queue and waits for them.
// Cancelling ctx abandons whatever is still queued.
func (i *Importer) Stop(ctx context.Context) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	close(i.jobs)
	i.mu.Unlock()

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if i.cancel != nil {
			i.cancel()
		}
		<-done
		return ctx.Err()
	}

	if i.cancel != nil {
		i.cancel()
	}
	i.logger.Info("avatar importer stopped")
	return nil
}

// Schedule queues an import without blocking. It reports false when the job
// was dropped because the queue is full or the importer is stopping.
func (i *Importer) Schedule(userID uuid.UUID, pictureURL string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return false
	}

	select {
	case i.jobs <- Job{UserID: userID, PictureURL: pictureURL}:
		return true
	default:
		i.logger.Warn("avatar queue full, dropping job", "user_id", userID)
		return false
	}
}

// run retries a job with exponential backoff until it succeeds, fails
// permanently or runs out of attempts
func (i *Importer) run(ctx context.Context, job Job) {
	logger := i.logger.With("user_id", job.UserID)
	delay := i.backoff

	for attempt := 1; attempt <= i.maxAttempts; attempt++ {
		avatarURL, err := i.importOnce(ctx, job)
		if err == nil {
			logger.Info("avatar imported", "url", avatarURL, "attempt", attempt)
			return
		}

		var perm permanentError
		if errors.As(err, &perm) || attempt == i.maxAttempts {
			logger.Error("avatar import failed", "error", err, "attempt", attempt)
			return
		}

		logger.Warn("avatar import attempt failed, retrying", "error", err, "attempt", attempt, "retry_in", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			logger.Warn("avatar import abandoned", "error", ctx.Err())
			return
		}
		delay *= 2
	}
}

func (i *Importer) importOnce(ctx context.Context, job Job) (string, error) {
	if err := i.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := i.client.R().SetContext(ctx).Get(job.PictureURL)
	if err != nil {
		return "", fmt.Errorf("fetch avatar: %w", err)
	}

	switch {
	case resp.StatusCode() >= 500 || resp.StatusCode() == http.StatusTooManyRequests:
		return "", fmt.Errorf("fetch avatar: status %d", resp.StatusCode())
	case resp.IsError():
		return "", permanent("fetch avatar: status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) == 0 {
		return "", permanent("fetch avatar: empty body")
	}
	if int64(len(body)) > i.maxBytes {
		return "", permanent("fetch avatar: %d bytes exceeds limit %d", len(body), i.maxBytes)
	}

	contentType, ext, err := imageType(resp.Header().Get("Content-Type"), body)
	if err != nil {
		return "", permanentError{err: err}
	}

	name, err := i.newName(job, ext)
	if err != nil {
		return "", fmt.Errorf("name avatar: %w", err)
	}

	avatarURL, err := i.store.Upload(ctx, name, contentType, body)
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}

	if err := i.users.UpdateAvatarURL(ctx, job.UserID, avatarURL); err != nil {
		return "", fmt.Errorf("store avatar url: %w", err)
	}

	return avatarURL, nil
}

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// imageType trusts the declared type when it is an image and sniffs otherwise
func imageType(declared string, body []byte) (string, string, error) {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(body))
	}

	ext, ok := imageExtensions[mediaType]
	if !ok {
		return "", "", fmt.Errorf("unsupported avatar type %q", mediaType)
	}
	return mediaType, ext, nil
}

func randomName(job Job, ext string) (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s%s", job.UserID, hex.EncodeToString(b), ext), nil
}
