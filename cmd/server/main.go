package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoPolymarket/polychat/internal/agent"
	"github.com/GoPolymarket/polychat/internal/chain"
	"github.com/GoPolymarket/polychat/internal/config"
	"github.com/GoPolymarket/polychat/internal/handler"
	"github.com/GoPolymarket/polychat/internal/keyguard"
	"github.com/GoPolymarket/polychat/internal/market"
	"github.com/GoPolymarket/polychat/internal/middleware"
	"github.com/GoPolymarket/polychat/internal/pkg/logger"
	"github.com/GoPolymarket/polychat/internal/repository"
	"github.com/GoPolymarket/polychat/internal/service"
	"github.com/GoPolymarket/polychat/internal/signer"
	"github.com/GoPolymarket/polychat/internal/tools"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 0. Configuration and logger
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 1. Credential validation. Nothing below runs with a bad key.
	formattedKey, err := keyguard.Validate(cfg.Wallet.PrivateKey)
	if err != nil {
		logger.Error("wallet key rejected", "error", err)
		os.Exit(1)
	}
	identity, err := signer.NewSigner(formattedKey, cfg.Chain.ChainID)
	if err != nil {
		logger.Error("failed to derive signing identity", "error", err)
		os.Exit(1)
	}
	cfg.Wallet.PrivateKey = ""
	logger.Info("signing identity ready", "address", identity.Address().Hex(), "chain_id", identity.ChainID())

	// 2. Chain and market data
	rpc := chain.NewClient(chain.Options{
		RPCURL:        cfg.Chain.RPCURL,
		Timeout:       time.Duration(cfg.Chain.TimeoutMs) * time.Millisecond,
		Retries:       cfg.Chain.Retries,
		NonceCacheTTL: time.Duration(cfg.Chain.ExchangeNonceS) * time.Second,
	})

	var marketSvc market.Provider
	if cfg.Polymarket.LiveBook {
		ms := market.NewMarketService(cfg.Polymarket.MarketWSURL)
		ms.Start()
		marketSvc = ms
	}

	// 3. Persistence. Redis > memory for risk usage, Postgres > file for audit.
	var riskRepo service.UsageRepo
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("connected to redis")
			riskRepo = repository.NewRedisUsageRepo(redisClient)
		} else {
			logger.Error("failed to connect to redis, falling back to memory", "error", err)
		}
	}
	if riskRepo == nil {
		riskRepo = service.NewRiskUsageStore()
	}

	var auditRepo service.AuditRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			repo, err := repository.NewPostgresAuditRepo(context.Background(), db)
			if err == nil {
				logger.Info("connected to postgres")
				auditRepo = repo
				retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
				if err := repo.Cleanup(context.Background(), retention); err != nil {
					logger.Warn("tool audit cleanup failed", "error", err)
				}
			} else {
				logger.Error("failed to prepare audit table, audit is file-only", "error", err)
			}
		} else {
			logger.Error("failed to connect to db, audit is file-only", "error", err)
		}
	}

	auditSvc, err := service.NewAuditService(cfg.Audit.Dir, cfg.Audit.BufferSize, auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	// 4. Trading, tools and the agent
	trading := service.NewTradingService(service.TradingOptions{
		Identity:    identity,
		Nonces:      rpc,
		Risk:        service.NewRiskEngine(cfg.Risk, riskRepo, marketSvc),
		Market:      marketSvc,
		GammaURL:    cfg.Polymarket.GammaURL,
		HTTPTimeout: time.Duration(cfg.Polymarket.HTTPTimeoutS) * time.Second,
		StaleAfter:  time.Duration(cfg.Risk.StaleBookSeconds) * time.Second,
	})

	toolProvider := &tools.Provider{
		Identity: identity,
		Chain:    rpc,
		USDC:     common.HexToAddress(cfg.Chain.USDCAddress),
		Credentials: service.Credentials{
			Key:        cfg.Polymarket.ApiKey,
			Secret:     cfg.Polymarket.ApiSecret,
			Passphrase: cfg.Polymarket.ApiPassphrase,
		},
		NewSession: func(creds service.Credentials) (tools.Trading, error) {
			session, err := trading.Session(creds)
			if err != nil {
				return nil, err
			}
			return session, nil
		},
		Audit: auditSvc,
	}

	runner := agent.NewRunner(agent.NewOpenAIModel(cfg.LLM), agent.Options{
		MaxSteps:     cfg.Agent.MaxSteps,
		ToolTimeout:  time.Duration(cfg.Agent.ToolTimeoutMs) * time.Millisecond,
		SystemPrompt: cfg.LLM.SystemPrompt,
	})

	// 5. Router
	chatHandler := handler.NewChatHandler(toolProvider, runner, cfg.Chat)
	healthHandler := handler.NewHealthHandler(identity.Address().Hex(), identity.ChainID())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", healthHandler.Health)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.POST("/chat", middleware.RateLimitMiddleware(
		middleware.NewIPLimiter(cfg.Server.RateLimitQPS, cfg.Server.RateLimitBurst),
	), chatHandler.Chat)
	if cfg.Auth.AdminKey != "" {
		api.GET("/audit/tools", middleware.AdminMiddleware(cfg.Auth.AdminKey), handler.NewAuditHandler(auditSvc).List)
	}

	// 6. Serve with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("polychat started", "port", cfg.Server.Port, "model", cfg.LLM.Model, "max_steps", cfg.Agent.MaxSteps)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if marketSvc != nil {
		marketSvc.Stop()
	}
	auditSvc.Close()

	logger.Info("server exiting")
}
