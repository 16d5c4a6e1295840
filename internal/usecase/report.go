package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"StockCast/internal/domain/errs"
	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/services/agents"
	"StockCast/pkg/cache"
	"StockCast/pkg/logger"
	"StockCast/pkg/queue"
	"StockCast/pkg/util"
)

const (
	reportCachePrefix = "report"

	// ReportJobType is the queue message type of asynchronous report generation.
	ReportJobType = "report.generate"
)

type reportPayload struct {
	JobID     string `json:"job_id"`
	StockName string `json:"stock_name"`
}

// ReportUseCase produces markdown analysis reports, inline or through the job queue.
type ReportUseCase struct {
	agg      agents.Agent
	cache    cache.Service
	cacheTTL time.Duration
	jobs     domrepo.ReportJobStore
	queue    queue.Enqueuer
	lockTTL  time.Duration
	timeout  time.Duration
	metrics  domrepo.Metrics
	log      *logger.Logger
	now      func() time.Time
}

// ReportConfig holds the report use case knobs.
type ReportConfig struct {
	CacheTTL time.Duration
	LockTTL  time.Duration
	Timeout  time.Duration
}

func NewReportUseCase(
	agg agents.Agent,
	c cache.Service,
	jobs domrepo.ReportJobStore,
	q queue.Enqueuer,
	cfg ReportConfig,
	metrics domrepo.Metrics,
	l *logger.Logger,
) *ReportUseCase {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	return &ReportUseCase{
		agg:      agg,
		cache:    c,
		cacheTTL: cfg.CacheTTL,
		jobs:     jobs,
		queue:    q,
		lockTTL:  cfg.LockTTL,
		timeout:  cfg.Timeout,
		metrics:  metrics,
		log:      l,
		now:      time.Now,
	}
}

func (uc *ReportUseCase) contentKey(stockName string) string {
	return cache.Key(reportCachePrefix, "content", cache.HashKey(stockName), util.DayKey(uc.now()))
}

func pendingKey(stockName string) string {
	return cache.Key(reportCachePrefix, "pending", cache.HashKey(stockName))
}

func lockKey(stockName string) string {
	return cache.Key(reportCachePrefix, "lock", cache.HashKey(stockName))
}

// Generate runs the agents synchronously. Reports are cached per stock and day.
func (uc *ReportUseCase) Generate(ctx context.Context, stockName string) (string, error) {
	const op = "usecase.Report.Generate"
	if stockName == "" {
		return "", errs.InvalidArgument(op, "stock_name is required")
	}

	key := uc.contentKey(stockName)
	if uc.cache != nil && uc.cacheTTL > 0 {
		content, err := cache.GetTyped[string](ctx, uc.cache, key)
		if err == nil {
			uc.metrics.RecordCache(reportCachePrefix, true)
			return content, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			uc.log.Warn("report cache get failed", logger.Error(err))
		}
		uc.metrics.RecordCache(reportCachePrefix, false)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	content, err := agents.Analyze(ctx, uc.agg, stockName)
	uc.metrics.RecordLatency("report", time.Since(start))
	if err != nil {
		uc.metrics.RecordError("report")
		uc.log.Error("report generation failed", logger.String("stock", stockName), logger.Error(err))
		return "", errs.Wrap(errs.KindUnavailable, op, err, "report generation failed")
	}

	if uc.cache != nil && uc.cacheTTL > 0 {
		if err := uc.cache.Set(ctx, key, content, uc.cacheTTL); err != nil {
			uc.log.Warn("report cache set failed", logger.Error(err))
		}
	}
	return content, nil
}

// Submit queues a report job. While a job for the same stock is pending, that job is returned instead.
func (uc *ReportUseCase) Submit(ctx context.Context, stockName string) (*models.ReportJob, error) {
	const op = "usecase.Report.Submit"
	if stockName == "" {
		return nil, errs.InvalidArgument(op, "stock_name is required")
	}

	locked, err := uc.cache.TryLock(ctx, lockKey(stockName), uc.lockTTL)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, op, err, "report queue is unavailable")
	}
	if !locked {
		if id, err := cache.GetTyped[string](ctx, uc.cache, pendingKey(stockName)); err == nil {
			if job, err := uc.jobs.Get(ctx, id); err == nil {
				return job, nil
			}
		}
		return nil, errs.Unavailable(op, "a report for %s is already being generated", stockName)
	}

	now := uc.now().UTC()
	job := &models.ReportJob{
		ID:        uuid.NewString(),
		StockName: stockName,
		Status:    models.ReportQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.jobs.Save(ctx, job); err != nil {
		uc.release(ctx, stockName)
		return nil, errs.Wrap(errs.KindUnavailable, op, err, "report queue is unavailable")
	}
	if err := uc.cache.Set(ctx, pendingKey(stockName), job.ID, uc.lockTTL); err != nil {
		uc.log.Warn("report pending marker failed", logger.Error(err))
	}
	if err := uc.queue.Enqueue(ctx, ReportJobType, &reportPayload{JobID: job.ID, StockName: stockName}); err != nil {
		uc.metrics.RecordError("report_enqueue")
		failed := errs.Wrap(errs.KindUnavailable, op, err, "report queue is unavailable")
		job.Status = models.ReportFailed
		job.Error = errs.MessageOf(failed)
		job.UpdatedAt = uc.now().UTC()
		if err := uc.jobs.Save(ctx, job); err != nil {
			uc.log.Warn("report job failure not recorded", logger.String("job_id", job.ID), logger.Error(err))
		}
		uc.release(ctx, stockName)
		return nil, failed
	}
	uc.log.Info("report queued", logger.String("job_id", job.ID), logger.String("stock", stockName))
	return job, nil
}

// Job returns a report job by id.
func (uc *ReportUseCase) Job(ctx context.Context, id string) (*models.ReportJob, error) {
	return uc.jobs.Get(ctx, id)
}

func (uc *ReportUseCase) release(ctx context.Context, stockName string) {
	if err := uc.cache.Delete(ctx, pendingKey(stockName)); err != nil {
		uc.log.Warn("report pending marker delete failed", logger.Error(err))
	}
	if err := uc.cache.Unlock(ctx, lockKey(stockName)); err != nil {
		uc.log.Warn("report unlock failed", logger.Error(err))
	}
}

func (uc *ReportUseCase) run(ctx context.Context, p *reportPayload) error {
	job, err := uc.jobs.Get(ctx, p.JobID)
	if err != nil {
		// expired or unknown; nothing to report back to
		uc.log.Warn("report job missing", logger.String("job_id", p.JobID), logger.Error(err))
		uc.release(ctx, p.StockName)
		return nil
	}
	defer uc.release(ctx, job.StockName)

	job.Status = models.ReportRunning
	job.UpdatedAt = uc.now().UTC()
	if err := uc.jobs.Save(ctx, job); err != nil {
		return err
	}

	content, genErr := uc.Generate(ctx, job.StockName)
	job.UpdatedAt = uc.now().UTC()
	if genErr != nil {
		job.Status = models.ReportFailed
		job.Error = errs.MessageOf(genErr)
	} else {
		job.Status = models.ReportDone
		job.Content = content
	}
	return uc.jobs.Save(ctx, job)
}

// ReportJob is the queue handler that runs submitted report jobs.
type ReportJob struct {
	uc *ReportUseCase
}

var _ queue.Job = (*ReportJob)(nil)

func NewReportJob(uc *ReportUseCase) *ReportJob {
	return &ReportJob{uc: uc}
}

func (j *ReportJob) Name() string { return "report_generator" }
func (j *ReportJob) Type() string { return ReportJobType }

func (j *ReportJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[reportPayload](payload)
	if err != nil {
		return err
	}
	return j.uc.run(ctx, p)
}
