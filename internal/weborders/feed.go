package weborders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/angelmondragon/cafepos-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/cafepos-backend/pkg/errors"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

const maxFeedBody = 4 << 20

type feedResponse struct {
	Orders []IntakeInput `json:"orders"`
}

type attemptRecorder interface {
	IncFetchAttempt(outcome string)
}

// Fetcher pulls the upstream web order feed and runs an import pass.
type Fetcher struct {
	client  *http.Client
	cfg     config.WebOrdersConfig
	svc     Service
	metrics attemptRecorder
	logg    *logger.Logger
}

func NewFetcher(cfg config.WebOrdersConfig, svc Service, client *http.Client, metrics attemptRecorder, logg *logger.Logger) (*Fetcher, error) {
	if strings.TrimSpace(cfg.FeedURL) == "" {
		return nil, errors.New("web order feed url required")
	}
	if svc == nil {
		return nil, errors.New("web order service required")
	}
	if client == nil {
		client = &http.Client{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Fetcher{client: client, cfg: cfg, svc: svc, metrics: metrics, logg: logg}, nil
}

// Sync fetches the feed, queues every order it returns, then imports.
func (f *Fetcher) Sync(ctx context.Context) (SyncResult, error) {
	var result SyncResult
	inputs, err := f.Fetch(ctx)
	if err != nil {
		return result, err
	}
	result.Fetched = len(inputs)

	var intakeErr error
	for _, input := range inputs {
		if _, err := f.svc.Intake(ctx, input); err != nil {
			intakeErr = multierr.Append(intakeErr, fmt.Errorf("intake %s: %w", input.ID, err))
		}
	}
	if intakeErr != nil {
		f.logg.Warn(f.logg.WithField(ctx, "error", intakeErr.Error()), "weborders.sync.intake_failures")
	}

	imported, err := f.svc.ImportPending(ctx)
	result.Import = imported
	return result, err
}

// Fetch retries the feed with capped exponential backoff. Each attempt gets
// its own timeout; exhaustion surfaces as a sync failure.
func (f *Fetcher) Fetch(ctx context.Context) ([]IntakeInput, error) {
	backoff := retry.NewExponential(f.cfg.BaseBackoff)
	backoff = retry.WithCappedDuration(f.cfg.MaxBackoff, backoff)
	backoff = retry.WithMaxRetries(uint64(f.cfg.MaxAttempts-1), backoff)

	var (
		orders   []IntakeInput
		attempts int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		got, err := f.fetchOnce(ctx)
		if err != nil {
			f.record("error")
			f.logg.Warn(f.logg.WithFields(ctx, map[string]any{"attempt": attempts, "error": err.Error()}), "weborders.fetch.attempt_failed")
			return err
		}
		f.record("success")
		orders = got
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSyncFailure, err, fmt.Sprintf("web order feed failed after %d attempts", attempts)).
			WithDetails(map[string]any{"attempts": attempts})
	}
	return orders, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context) ([]IntakeInput, error) {
	attemptCtx := ctx
	if f.cfg.AttemptLimit > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.cfg.AttemptLimit)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, f.cfg.FeedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token := strings.TrimSpace(f.cfg.FeedToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, retry.RetryableError(err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, retry.RetryableError(fmt.Errorf("feed returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("feed returned %d", resp.StatusCode)
	}

	var decoded feedResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return decoded.Orders, nil
}

func (f *Fetcher) record(outcome string) {
	if f.metrics != nil {
		f.metrics.IncFetchAttempt(outcome)
	}
}
