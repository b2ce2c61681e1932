package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"kppsim/internal/adapter/conditions"
	httpadapter "kppsim/internal/adapter/http"
	metricsinmem "kppsim/internal/adapter/metrics/inmemory"
	gormrepo "kppsim/internal/adapter/repo/gorm"
	"kppsim/internal/adapter/repo/memory"
	"kppsim/internal/adapter/sink/influx"
	"kppsim/internal/adapter/sink/natspub"
	"kppsim/internal/adapter/sink/rediscache"
	"kppsim/internal/app/engine"
	"kppsim/internal/app/params"
	"kppsim/internal/app/ports"
	"kppsim/internal/app/publish"
	"kppsim/migrations"

	"github.com/cloudwego/hertz/pkg/app/server"
)

type config struct {
	HTTPAddr      string
	CORSOrigin    string
	ParamsFile    string
	GridProfile   string
	ProfileLoop   bool
	Autostart     bool
	MemoryRetain  int
	DBDSN         string
	MigrationsDir string
	NATSURL       string
	NATSSubject   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	InfluxURL     string
	InfluxToken   string
	InfluxOrg     string
	InfluxBucket  string
	BatchSize     int
	SinkTimeout   time.Duration
}

func loadConfig() config {
	return config{
		HTTPAddr:      stringEnv("KPP_HTTP_ADDR", ":8080"),
		CORSOrigin:    stringEnv("KPP_CORS_ORIGIN", ""),
		ParamsFile:    stringEnv("KPP_PARAMS_FILE", ""),
		GridProfile:   stringEnv("KPP_GRID_PROFILE", ""),
		ProfileLoop:   boolEnv("KPP_GRID_PROFILE_LOOP", true),
		Autostart:     boolEnv("KPP_AUTOSTART", false),
		MemoryRetain:  intEnv("KPP_MEMORY_RETAIN", 10000),
		DBDSN:         stringEnv("KPP_DB_DSN", ""),
		MigrationsDir: stringEnv("KPP_MIGRATIONS_DIR", ""),
		NATSURL:       stringEnv("KPP_NATS_URL", ""),
		NATSSubject:   stringEnv("KPP_NATS_SUBJECT", natspub.DefaultSubject),
		RedisAddr:     stringEnv("KPP_REDIS_ADDR", ""),
		RedisPassword: stringEnv("KPP_REDIS_PASSWORD", ""),
		RedisDB:       intEnv("KPP_REDIS_DB", 0),
		RedisTTL:      time.Duration(floatEnv("KPP_REDIS_TTL_SECONDS", 0) * float64(time.Second)),
		InfluxURL:     stringEnv("KPP_INFLUX_URL", ""),
		InfluxToken:   stringEnv("KPP_INFLUX_TOKEN", ""),
		InfluxOrg:     stringEnv("KPP_INFLUX_ORG", ""),
		InfluxBucket:  stringEnv("KPP_INFLUX_BUCKET", "kpp"),
		BatchSize:     intEnv("KPP_PUBLISH_BATCH", 100),
		SinkTimeout:   time.Duration(floatEnv("KPP_SINK_TIMEOUT_SECONDS", 5) * float64(time.Second)),
	}
}

func main() {
	cfg := loadConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	p, err := params.Load(cfg.ParamsFile)
	if err != nil {
		log.Fatalf("load params: %v", err)
	}
	source, err := buildConditions(cfg, p)
	if err != nil {
		log.Fatalf("grid profile: %v", err)
	}
	recorder := metricsinmem.NewRecorder()

	eng, err := engine.New(p,
		engine.WithLogger(logger),
		engine.WithConditions(source),
		engine.WithMetrics(recorder),
	)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	store, closers := mustBuildStore(cfg, eng)
	sinks := []ports.SnapshotSink{store}
	extra, extraClosers := buildSinks(cfg, logger)
	sinks = append(sinks, extra...)
	closers = append(closers, extraClosers...)

	pub := publish.Publisher{
		Queue:       eng.Queue(),
		Sinks:       sinks,
		Logger:      logger,
		Metrics:     recorder,
		BatchSize:   cfg.BatchSize,
		SinkTimeout: cfg.SinkTimeout,
	}
	pubCtx, cancelPub := context.WithCancel(context.Background())
	var pubWG sync.WaitGroup
	pubWG.Add(1)
	go func() {
		defer pubWG.Done()
		pub.Run(pubCtx)
	}()

	if cfg.Autostart {
		if err := eng.Start(); err != nil {
			log.Fatalf("autostart: %v", err)
		}
	}

	h := httpadapter.Handler{Sim: eng, Metrics: recorder, AllowOrigin: cfg.CORSOrigin}
	s := server.Default(server.WithHostPorts(cfg.HTTPAddr))
	h.RegisterRoutes(s)
	s.OnShutdown = append(s.OnShutdown, func(ctx context.Context) {
		if eng.Running() {
			if err := eng.Stop(); err != nil {
				logger.Warn("stop engine", "error", err)
			}
		}
		cancelPub()
		pubWG.Wait()
		if err := store.Runs.MarkStopped(ctx, eng.RunID(), time.Now()); err != nil && !errors.Is(err, ports.ErrNotFound) {
			logger.Warn("mark run stopped", "run_id", eng.RunID(), "error", err)
		}
		for _, c := range closers {
			c()
		}
	})

	logger.Info("kpp simulator listening", "addr", cfg.HTTPAddr, "run_id", eng.RunID(), "sinks", len(sinks))
	s.Spin()
}

func buildConditions(cfg config, p params.Params) (ports.ConditionsSource, error) {
	if cfg.GridProfile == "" {
		return conditions.NewNominal(p.RatedFrequency), nil
	}
	return conditions.LoadProfile(cfg.GridProfile, conditions.Config{Loop: cfg.ProfileLoop})
}

// mustBuildStore picks Postgres when a DSN is configured and the in-process
// store otherwise.
func mustBuildStore(cfg config, eng *engine.Engine) (publish.StoreSink, []func()) {
	paramsFn := func() (map[string]any, error) { return eng.Params().Map() }
	if cfg.DBDSN == "" {
		st := memory.NewStore(cfg.MemoryRetain)
		return publish.StoreSink{
			TxManager: memory.NewTxManager(st),
			Runs:      memory.NewRunRepo(st),
			Snapshots: memory.NewSnapshotRepo(st),
			Faults:    memory.NewFaultRepo(st),
			Params:    paramsFn,
			Now:       time.Now,
		}, nil
	}

	db, err := gormrepo.OpenPostgres(cfg.DBDSN, gormrepo.PoolConfig{
		MaxOpenConns:    intEnv("KPP_DB_MAX_OPEN", 10),
		MaxIdleConns:    intEnv("KPP_DB_MAX_IDLE", 5),
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if cfg.MigrationsDir != "" {
		err = gormrepo.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	} else {
		err = gormrepo.ApplyMigrationsFS(ctx, db, migrations.Files)
	}
	if err != nil {
		log.Fatalf("apply migrations: %v", err)
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return publish.StoreSink{
		TxManager: gormrepo.NewTxManager(db),
		Runs:      gormrepo.NewRunRepo(db),
		Snapshots: gormrepo.NewSnapshotRepo(db),
		Faults:    gormrepo.NewFaultRepo(db),
		Params:    paramsFn,
		Now:       time.Now,
	}, []func(){closeDB}
}

// buildSinks wires the optional fan-out sinks. A sink whose backend cannot
// be reached at boot is skipped with a warning.
func buildSinks(cfg config, logger *slog.Logger) ([]ports.SnapshotSink, []func()) {
	var sinks []ports.SnapshotSink
	var closers []func()

	if cfg.NATSURL != "" {
		conn, err := natspub.Connect(natspub.Config{URL: cfg.NATSURL, Subject: cfg.NATSSubject})
		if err != nil {
			logger.Warn("nats sink disabled", "url", cfg.NATSURL, "error", err)
		} else {
			sinks = append(sinks, natspub.NewSink(conn, cfg.NATSSubject))
			closers = append(closers, func() { _ = conn.Drain() })
		}
	}
	if cfg.RedisAddr != "" {
		rc := rediscache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
		}
		client := rediscache.NewClient(rc)
		sinks = append(sinks, rediscache.NewCache(client, rc))
		closers = append(closers, func() { _ = client.Close() })
	}
	if cfg.InfluxURL != "" {
		ic := influx.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
			Epoch:  time.Now(),
		}
		client := influx.NewClient(ic)
		sinks = append(sinks, influx.NewWriter(client, ic))
		closers = append(closers, client.Close)
	}
	return sinks, closers
}

func intEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func floatEnv(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func stringEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func boolEnv(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
