// Command importer bulk-loads a review export into the review database and
// optionally prints the time-weighted rating and most helpful reviews.
//
//	importer -file amazon_review.csv
//	importer -file amazon_review.csv -dry-run -report -as-of 2014-12-08
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utafrali/reviewrank/internal/config"
	"github.com/utafrali/reviewrank/internal/domain"
	"github.com/utafrali/reviewrank/internal/importer"
	"github.com/utafrali/reviewrank/internal/repository/postgres"
	"github.com/utafrali/reviewrank/internal/scoring"
	"github.com/utafrali/reviewrank/migrations"
	"github.com/utafrali/reviewrank/pkg/database"
	"github.com/utafrali/reviewrank/pkg/logger"
)

// maxLoggedSkips bounds how many skipped rows are logged individually.
const maxLoggedSkips = 20

func main() {
	var (
		file       = flag.String("file", "", "path to the review export (CSV with header)")
		batch      = flag.Int("batch", importer.DefaultBatchSize, "rows per COPY batch")
		dryRun     = flag.Bool("dry-run", false, "parse and validate only, do not write to the database")
		strict     = flag.Bool("strict", false, "abort on the first invalid row instead of skipping it")
		report     = flag.Bool("report", false, "print the rating report for the imported reviews")
		asOf       = flag.String("as-of", "", "reference date for day diffs (YYYY-MM-DD), default SCORING_REFERENCE_DATE or today")
		weights    = flag.String("weights", "", "band weights, e.g. 50,25,15,10 (default SCORING_WEIGHTS)")
		confidence = flag.Float64("confidence", 0, "Wilson confidence level (default SCORING_CONFIDENCE)")
		top        = flag.Int("top", 0, "number of reviews to list (default SCORING_TOP_N)")
		product    = flag.String("product", "", "restrict the report to one product id")
	)
	flag.Parse()

	// -confidence=0 is an invalid level, not a request for the default
	var confidenceOverride *float64
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "confidence" {
			confidenceOverride = confidence
		}
	})

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("review-importer", cfg.LogLevel)

	if *file == "" {
		log.Error("missing -file")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reviews, err := parseFile(*file, *strict, log)
	if err != nil {
		log.Error("failed to read review export", slog.String("file", *file), slog.String("error", err.Error()))
		os.Exit(1)
	}

	if !*dryRun {
		if err := load(ctx, cfg, reviews, *batch, log); err != nil {
			log.Error("import failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if *report {
		opts, err := reportOptions(cfg, *asOf, *weights, confidenceOverride, *top)
		if err != nil {
			log.Error("invalid report options", slog.String("error", err.Error()))
			os.Exit(2)
		}
		if *product != "" {
			reviews = forProduct(reviews, *product)
		}
		if err := importer.Report(ctx, os.Stdout, reviews, opts); err != nil {
			log.Error("report failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
}

func parseFile(path string, strict bool, log *slog.Logger) ([]domain.ProductReview, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := importer.Parse(f, strict, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	for i, skip := range res.Skipped {
		if i == maxLoggedSkips {
			log.Warn("further skipped rows not logged", slog.Int("remaining", len(res.Skipped)-i))
			break
		}
		log.Warn("skipped invalid row", slog.Int("line", skip.Line), slog.String("error", skip.Err.Error()))
	}
	log.Info("review export parsed",
		slog.String("file", path),
		slog.Int("valid", len(res.Reviews)),
		slog.Int("skipped", len(res.Skipped)),
	)
	return res.Reviews, nil
}

func load(ctx context.Context, cfg *config.Config, reviews []domain.ProductReview, batch int, log *slog.Logger) error {
	pool, err := database.NewPostgresPoolWithLogger(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 5 * time.Minute,
	}, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	n, err := importer.Load(ctx, postgres.NewReviewRepository(pool), reviews, batch, log)
	if err != nil {
		return err
	}
	log.Info("reviews imported", slog.Int64("rows", n))
	return nil
}

func reportOptions(cfg *config.Config, asOf, weights string, confidence *float64, top int) (importer.ReportOptions, error) {
	opts := importer.ReportOptions{
		AsOf:       cfg.ReferenceDate(),
		Weights:    cfg.ScoringWeights,
		Confidence: cfg.ScoringConfidence,
		TopN:       cfg.ScoringTopN,
		Workers:    cfg.ScoringWorkers,
	}
	if asOf != "" {
		t, err := time.Parse(config.ReferenceDateLayout, asOf)
		if err != nil {
			return opts, fmt.Errorf("-as-of: %w", err)
		}
		opts.AsOf = t
	}
	if opts.AsOf.IsZero() {
		opts.AsOf = time.Now().UTC()
	}
	if weights != "" {
		w, err := scoring.ParseWeights(weights)
		if err != nil {
			return opts, fmt.Errorf("-weights: %w", err)
		}
		opts.Weights = w
	}
	if confidence != nil {
		if err := scoring.ValidateConfidence(*confidence); err != nil {
			return opts, fmt.Errorf("-confidence: %w", err)
		}
		opts.Confidence = *confidence
	}
	if top > 0 {
		opts.TopN = top
	}
	return opts, nil
}

func forProduct(reviews []domain.ProductReview, productID string) []domain.ProductReview {
	out := reviews[:0:0]
	for _, r := range reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out
}
