package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"k8s.io/klog/v2"

	"github.com/FatimahAdwan/survey-alignment/config"
	"github.com/FatimahAdwan/survey-alignment/internal/eventbus"
	"github.com/FatimahAdwan/survey-alignment/internal/handler"
	"github.com/FatimahAdwan/survey-alignment/internal/pkg/database"
	"github.com/FatimahAdwan/survey-alignment/internal/pkg/llm"
	"github.com/FatimahAdwan/survey-alignment/internal/pkg/locker"
	"github.com/FatimahAdwan/survey-alignment/internal/pkg/metrics"
	"github.com/FatimahAdwan/survey-alignment/internal/repository"
	"github.com/FatimahAdwan/survey-alignment/internal/router"
	"github.com/FatimahAdwan/survey-alignment/internal/service/catalog"
	"github.com/FatimahAdwan/survey-alignment/internal/service/conversation"
	"github.com/FatimahAdwan/survey-alignment/internal/service/exporter"
	"github.com/FatimahAdwan/survey-alignment/internal/service/generator"
	"github.com/FatimahAdwan/survey-alignment/internal/service/survey"
	"github.com/FatimahAdwan/survey-alignment/internal/subscriber"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	if err := os.MkdirAll(cfg.Data.ExportDir, 0755); err != nil {
		log.Fatalf("Failed to create export directory: %v", err)
	}

	// 主题目录加载后不再修改
	themes := catalog.Default()
	if cfg.Survey.ThemesFile != "" {
		c, err := catalog.Load(cfg.Survey.ThemesFile)
		if err != nil {
			log.Fatalf("Failed to load themes: %v", err)
		}
		themes = c
	}

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化 Repository
	sessionRepo := repository.NewSessionRepository(db)
	recordRepo := repository.NewRecordRepository(db)

	gen, err := llm.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize llm: %v", err)
	}

	lk, err := locker.New(cfg.Lock)
	if err != nil {
		log.Fatalf("Failed to initialize locker: %v", err)
	}
	if closer, ok := lk.(io.Closer); ok {
		defer closer.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// 导出协程池：会话结束后写出记录并归档
	// workers 默认 2，导出只涉及本地磁盘
	exportPool, err := exporter.NewPool(exporter.PoolOptions{
		Workers:    cfg.Export.Workers,
		MaxRetries: cfg.Export.MaxRetries,
	}, exporter.NewExporter(sessionRepo, cfg.Data.ExportDir, collector))
	if err != nil {
		log.Fatalf("Failed to initialize export pool: %v", err)
	}
	exportPool.Start()
	collector.WatchExportQueue(func() (int, int) {
		st := exportPool.Status()
		return st.QueueLength, st.ActiveWorkers
	})

	bus := eventbus.NewBus()
	subscriber.NewExportSubscriber(exportPool).Register(bus)

	// 初始化 Service
	surveyService := survey.NewService(survey.Deps{
		Catalog: themes,
		Engine: conversation.NewEngine(conversation.Policy{
			FollowUpMinWords:  cfg.Survey.FollowUpMinWords,
			MinQuestionLength: cfg.Survey.MinQuestionLength,
			MaxQuestionLength: cfg.Survey.MaxQuestionLength,
		}),
		Proposer: generator.NewAdapter(gen, generator.Options{
			Timeout:       cfg.LLM.Timeout,
			HistoryWindow: cfg.Survey.HistoryWindow,
		}),
		Sessions: sessionRepo,
		Records:  recordRepo,
		Locker:   lk,
		Bus:      bus,
		Metrics:  collector,
	}, survey.Options{
		MaxAttempts: cfg.Survey.MaxAttempts,
		SessionTTL:  cfg.Survey.SessionTTL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 启动时清理超时会话，并补齐上次未完成的导出
	cleanupStaleSessions(ctx, surveyService)
	recoverPendingExports(ctx, surveyService, exportPool)
	go runStaleCleanup(ctx, surveyService, cfg.Survey.StaleCleanupInterval)

	// 设置路由
	r := router.Setup(cfg, handler.NewSurveyHandler(surveyService), registry)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on port %s...", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	klog.V(6).Info("服务关闭中...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		klog.Errorf("HTTP 服务关闭失败: %v", err)
	}
	exportPool.Stop(30 * time.Second)
}
