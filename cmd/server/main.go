package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/fundgate/internal/chain"
	"github.com/blues/fundgate/internal/config"
	"github.com/blues/fundgate/internal/device"
	"github.com/blues/fundgate/internal/fraud"
	"github.com/blues/fundgate/internal/handler"
	"github.com/blues/fundgate/internal/logger"
	"github.com/blues/fundgate/internal/logic"
	"github.com/blues/fundgate/internal/metrics"
	"github.com/blues/fundgate/internal/monitor"
	"github.com/blues/fundgate/internal/payment"
	"github.com/blues/fundgate/internal/pricing"
	"github.com/blues/fundgate/internal/repository"
	"github.com/blues/fundgate/internal/repository/memory"
	"github.com/blues/fundgate/internal/router"
	"github.com/blues/fundgate/internal/scheduler"
)

// stores 活动和支付的持久化实现
type stores interface {
	repository.CampaignRepository
	repository.PaymentRepository
}

func main() {
	// 加载配置
	cfg := config.Load()
	if err := logger.Init(cfg.Log); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	metrics.Register()

	ctx := context.Background()

	// 初始化数据库
	store, err := openStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// 设备存储
	deviceStorage, closeDevice, err := openDeviceStorage(ctx, cfg.Device)
	if err != nil {
		logger.Fatal("Failed to initialize device storage: %v", err)
	}
	defer closeDevice()

	detector := fraud.NewDetector(deviceStorage, nil,
		fraud.WithSessionWindow(cfg.Fraud.SessionWindow),
		fraud.WithSessionRetention(cfg.Fraud.SessionRetain),
		fraud.WithTimingRule(cfg.Fraud.TimingWindow, cfg.Fraud.TimingThreshold),
		fraud.WithAttemptHistory(cfg.Fraud.AttemptHistory),
	)

	calc, err := pricing.NewCalculatorFromStrings(cfg.Pricing.NativeRate, cfg.Pricing.StableRate)
	if err != nil {
		logger.Fatal("Invalid pricing config: %v", err)
	}

	campaignLogic := logic.NewCampaignLogic(store, store, calc, detector, cfg.Chain.Treasury)
	contributionLogic := logic.NewContributionLogic(store, store, detector)
	paymentLogic := logic.NewPaymentLogic(store, store)

	// 链上支付监控
	var status router.StatusFunc
	if cfg.Chain.RpcUrl != "" {
		client, err := chain.Dial(ctx, cfg.Chain)
		if err != nil {
			logger.Fatal("Failed to initialize chain client: %v", err)
		}
		processors := payment.NewProcessorManager(
			payment.NewCreateProcessor(campaignLogic),
			payment.NewExtendProcessor(campaignLogic),
			payment.NewContributeProcessor(contributionLogic),
		)
		paymentMonitor, err := monitor.NewPaymentMonitor(client, store, processors, cfg.Monitor)
		if err != nil {
			logger.Fatal("Failed to create payment monitor: %v", err)
		}
		paymentMonitor.Start()
		defer paymentMonitor.Stop()
		status = paymentMonitor.GetStatus
	} else {
		logger.Warn("No RPC URL configured, payment monitor disabled")
	}

	// 启动定时任务
	tasks, err := scheduler.NewManager(scheduler.NewCampaignStatsJob(campaignLogic, cfg.Task.Interval))
	if err != nil {
		logger.Fatal("Failed to create task manager: %v", err)
	}
	if err := tasks.Start(); err != nil {
		logger.Fatal("Failed to start task manager: %v", err)
	}
	defer tasks.Stop()

	// 初始化路由
	r := router.Setup(router.Handlers{
		Campaign:     handler.NewCampaignHandler(campaignLogic, contributionLogic),
		Contribution: handler.NewContributionHandler(contributionLogic, campaignLogic),
		Payment:      handler.NewPaymentHandler(paymentLogic),
		Pricing:      handler.NewPricingHandler(calc),
		Device:       handler.NewDeviceHandler(contributionLogic),
	}, cfg.Server, status)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
}

func openStore(cfg config.DatabaseConfig) (stores, error) {
	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	}
	db, err := repository.Init(cfg)
	if err != nil {
		return nil, err
	}
	return repository.NewStore(db), nil
}

func openDeviceStorage(ctx context.Context, cfg config.DeviceConfig) (device.Storage, func(), error) {
	if cfg.Storage != "redis" {
		return device.NewMemoryStorage(), func() {}, nil
	}
	rdb, err := device.DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Device storage backed by redis %s", cfg.RedisAddr)
	return device.NewRedisStorage(rdb, cfg.KeyPrefix), func() { _ = rdb.Close() }, nil
}
