package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"voiceauth/internal/audio"
	"voiceauth/internal/audit"
	"voiceauth/internal/auth"
	"voiceauth/internal/config"
	"voiceauth/internal/database"
	"voiceauth/internal/enroll"
	"voiceauth/internal/extractor"
	"voiceauth/internal/maintenance"
	"voiceauth/internal/matching"
	"voiceauth/internal/metrics"
	"voiceauth/internal/ratelimit"
	"voiceauth/internal/server"
	"voiceauth/internal/template"
	"voiceauth/internal/verify"
)

// loadConfig loads the configuration file, falling back to defaults when the
// default config path does not exist. CLI flags override file values.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) && cfgFile == "config.json" {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	return cfg, nil
}

// engine is the fully wired set of collaborators behind the server.
type engine struct {
	db        *sql.DB
	extractor extractor.Extractor
	templates template.Store
	attempts  audit.Store
	limiter   *ratelimit.FailureWindow
	enroller  *enroll.Orchestrator
	verifier  *verify.Orchestrator
	tokens    *auth.TokenStore
	metrics   *metrics.Metrics
}

func (e *engine) close() {
	if e.limiter != nil {
		e.limiter.Stop()
	}
	if e.db != nil {
		e.db.Close()
	}
}

// timedExtractor reports extraction latency to the metrics histogram.
type timedExtractor struct {
	extractor.Extractor
	hist prometheus.Histogram
}

func (t timedExtractor) Extract(ctx context.Context, sample *audio.Sample) (extractor.Embedding, error) {
	start := time.Now()
	emb, err := t.Extractor.Extract(ctx, sample)
	t.hist.Observe(time.Since(start).Seconds())
	return emb, err
}

// buildEngine opens the database and wires every component from config.
func buildEngine(cfg *config.Config, withMetrics bool) (*engine, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if withMetrics {
		m = metrics.New()
	}

	var ext extractor.Extractor = extractor.NewFilterbank(extractor.FilterbankConfig{
		Dimensions:       cfg.Extractor.Dimensions,
		SilenceThreshold: float32(cfg.Extractor.SilenceThreshold),
		MinVoicedSec:     cfg.Extractor.MinVoicedSec,
	})
	if m != nil {
		ext = timedExtractor{Extractor: ext, hist: m.ExtractionDuration}
	}

	policy := matching.Policy{Threshold: float32(cfg.Verification.Threshold)}
	consistency := float32(cfg.Enrollment.ConsistencyThreshold)
	minQuality := float32(cfg.Enrollment.MinQuality)

	// A calibration profile, when configured, overrides the static thresholds.
	if cfg.Verification.CalibrationPath != "" {
		profile, err := matching.LoadCalibration(cfg.Verification.CalibrationPath)
		if err != nil {
			db.Close()
			return nil, err
		}
		policy = profile.Policy()
		consistency = profile.ConsistencyThreshold
		minQuality = profile.MinQuality
		log.Printf("[Engine] Loaded calibration profile from %s (threshold %.3f, %d trials)",
			cfg.Verification.CalibrationPath, profile.Threshold, profile.SampleCount)
	}

	templates := template.NewSQLite(db, minQuality)
	attempts := audit.NewSQLite(db)
	limiter := ratelimit.NewFailureWindow(
		time.Duration(cfg.Verification.WindowSeconds)*time.Second,
		cfg.Verification.MaxFailedAttempts,
		time.Duration(cfg.Verification.CleanupIntervalSeconds)*time.Second,
	)

	constraints := cfg.Audio.Constraints()
	enroller := enroll.New(ext, templates, enroll.Config{
		MinSuccessfulSamples: cfg.Enrollment.MinSuccessfulSamples,
		MaxCaptureAttempts:   cfg.Enrollment.MaxCaptureAttempts,
		ConsistencyThreshold: consistency,
		SilenceThreshold:     float32(cfg.Extractor.SilenceThreshold),
		Constraints:          constraints,
	})
	verifier := verify.New(ext, templates, matching.NewEngine(), limiter, attempts, verify.Config{
		Constraints: constraints,
		Policy:      policy,
	})

	e := &engine{
		db:        db,
		extractor: ext,
		templates: templates,
		attempts:  attempts,
		limiter:   limiter,
		enroller:  enroller,
		verifier:  verifier,
		tokens:    auth.NewTokenStore(db),
		metrics:   m,
	}
	return e, nil
}

// registerMaintenance sets up the background maintenance tasks.
func registerMaintenance(sched *maintenance.Scheduler, e *engine, cfg *config.Config) error {
	retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
	if err := sched.Register(maintenance.Task{
		Name:     "audit-prune",
		Schedule: cfg.Audit.PruneSchedule,
		Run: func(ctx context.Context) error {
			n, err := e.attempts.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				log.Printf("[Maintenance] Pruned %d attempt records older than %d days",
					n, cfg.Audit.RetentionDays)
			}
			return nil
		},
	}); err != nil {
		return err
	}

	// Keep the active-template gauge fresh and surface lockout tracker load.
	return sched.Register(maintenance.Task{
		Name:     "engine-stats",
		Schedule: "0 * * * * *",
		Run: func(ctx context.Context) error {
			var active int64
			err := e.db.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM voice_templates WHERE active = 1").Scan(&active)
			if err != nil {
				return err
			}
			e.metrics.ActiveTemplates.Set(float64(active))

			stats := e.limiter.GetStats()
			if verbose {
				log.Printf("[Maintenance] templates=%d lockout_buckets=%d tracked_failures=%d",
					active, stats.ActiveBuckets, stats.TotalFailures)
			}
			return nil
		},
	})
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng, err := buildEngine(cfg, true)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer eng.close()

	sched := maintenance.NewScheduler(log.Default())
	if err := registerMaintenance(sched, eng, cfg); err != nil {
		return fmt.Errorf("failed to register maintenance tasks: %w", err)
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	srv := server.New(cfg, eng.tokens, eng.templates, eng.enroller, eng.verifier,
		eng.attempts, eng.metrics, eng.extractor.Version())

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Println("Engine stopped gracefully")
	return nil
}
