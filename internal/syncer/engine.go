package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"catalogsync/internal/model"
	"catalogsync/internal/observability"
	"catalogsync/internal/repository"
	"catalogsync/internal/sheets"
)

const defaultCallTimeout = 30 * time.Second

// Failure is a product whose store operation failed during a pass.
type Failure struct {
	Article int
	Op      string
	Err     error
}

// Result summarises one reconciliation cycle.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Products   int
	Created    int
	Updated    int
	Unchanged  int
	Rejected   int
	Duplicates int
	Failures   []Failure
}

// Engine runs reconciliation cycles of the spreadsheet against the store.
type Engine struct {
	source      sheets.Source
	store       repository.ProductStore
	logger      *zap.Logger
	callTimeout time.Duration
	now         func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCallTimeout bounds each store call.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(source sheets.Source, store repository.ProductStore, opts ...Option) *Engine {
	e := &Engine{
		source:      source,
		store:       store,
		logger:      zap.NewNop(),
		callTimeout: defaultCallTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one cycle: snapshot, create pass, sizes pass. Only a source
// failure is returned as an error; per-product store failures are collected
// in Result.Failures and do not stop the pass.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString(), StartedAt: e.now()}
	log := e.logger.With(zap.String("run_id", res.RunID))

	snap, err := sheets.FetchSnapshot(ctx, e.source)
	if err != nil {
		res.FinishedAt = e.now()
		observability.SyncRunsTotal.WithLabelValues("aborted").Inc()
		log.Error("sync aborted: source unavailable", zap.Error(err))
		return res, fmt.Errorf("build snapshot: %w", err)
	}

	for _, rej := range snap.Rejected {
		log.Warn("column rejected", zap.String("sheet", rej.Sheet), zap.Int("column", rej.Column),
			zap.String("field", rej.Field), zap.String("value", rej.Value))
	}
	res.Rejected = len(snap.Rejected)
	observability.ColumnsRejectedTotal.Add(float64(res.Rejected))

	products := e.dedupe(snap.Products, &res, log)
	res.Products = len(products)

	e.createPass(ctx, products, &res, log)
	log.Info("create pass completed", zap.Int("created", res.Created))

	e.sizesPass(ctx, products, &res, log)
	log.Info("sizes pass completed", zap.Int("updated", res.Updated), zap.Int("unchanged", res.Unchanged))

	res.FinishedAt = e.now()
	status := "success"
	if len(res.Failures) > 0 {
		status = "partial"
	}
	observability.SyncRunsTotal.WithLabelValues(status).Inc()
	observability.SyncDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())

	log.Info("sync with spreadsheet completed",
		zap.Strings("sheets", snap.Sheets),
		zap.Int("products", res.Products),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("rejected", res.Rejected+res.Duplicates),
		zap.Int("failed", len(res.Failures)),
		zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

// dedupe keeps the first product seen for each article.
func (e *Engine) dedupe(products []model.Product, res *Result, log *zap.Logger) []model.Product {
	seen := make(map[int]string, len(products))
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if sheet, ok := seen[p.Article]; ok {
			res.Duplicates++
			log.Warn("duplicate article ignored", zap.Int("article", p.Article),
				zap.String("sheet", p.Model), zap.String("first_sheet", sheet))
			continue
		}
		seen[p.Article] = p.Model
		out = append(out, p)
	}
	return out
}

func (e *Engine) createPass(ctx context.Context, products []model.Product, res *Result, log *zap.Logger) {
	for _, p := range products {
		_, err := e.find(ctx, p.Article)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			e.fail(res, log, p.Article, "find", err)
			continue
		}

		if err := e.call(ctx, func(ctx context.Context) error {
			_, err := e.store.Create(ctx, p)
			return err
		}); err != nil {
			e.fail(res, log, p.Article, "create", err)
			continue
		}
		res.Created++
		observability.ProductsCreatedTotal.Inc()
		log.Info("product added", zap.Int("article", p.Article), zap.String("name", p.Name),
			zap.String("model", p.Model), zap.Int("price", p.Price), zap.Ints("sizes", p.Sizes))
	}
}

func (e *Engine) sizesPass(ctx context.Context, products []model.Product, res *Result, log *zap.Logger) {
	for _, p := range products {
		stored, err := e.find(ctx, p.Article)
		if errors.Is(err, repository.ErrNotFound) {
			// creation failed in the previous pass and is already reported
			continue
		}
		if err != nil {
			e.fail(res, log, p.Article, "find", err)
			continue
		}
		if model.SameSizes(stored.Sizes, p.Sizes) {
			res.Unchanged++
			continue
		}

		if err := e.call(ctx, func(ctx context.Context) error {
			return e.store.UpdateSizes(ctx, p.Article, p.Sizes)
		}); err != nil {
			e.fail(res, log, p.Article, "update_sizes", err)
			continue
		}
		res.Updated++
		observability.SizesUpdatedTotal.Inc()
		log.Debug("sizes replaced", zap.Int("article", p.Article),
			zap.Ints("from", stored.Sizes), zap.Ints("to", p.Sizes))
	}
}

func (e *Engine) find(ctx context.Context, article int) (model.Product, error) {
	var p model.Product
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		p, err = e.store.FindByArticle(ctx, article)
		return err
	})
	return p, err
}

func (e *Engine) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return fn(ctx)
}

func (e *Engine) fail(res *Result, log *zap.Logger, article int, op string, err error) {
	res.Failures = append(res.Failures, Failure{Article: article, Op: op, Err: err})
	observability.StoreFailuresTotal.WithLabelValues(op).Inc()
	log.Warn("product sync failed", zap.Int("article", article), zap.String("op", op), zap.Error(err))
}
