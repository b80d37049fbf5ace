// Package main é o ponto de entrada da API de pagamentos Sicoob
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/magnani/sicoob-payment/internal/adapters/blob"
	"github.com/magnani/sicoob-payment/internal/adapters/dedupe"
	"github.com/magnani/sicoob-payment/internal/adapters/ledger"
	"github.com/magnani/sicoob-payment/internal/adapters/sicoob"
	"github.com/magnani/sicoob-payment/internal/config"
	"github.com/magnani/sicoob-payment/internal/domain"
	"github.com/magnani/sicoob-payment/internal/events"
	"github.com/magnani/sicoob-payment/internal/handlers"
	"github.com/magnani/sicoob-payment/internal/observability"
	"github.com/magnani/sicoob-payment/internal/ports"
	"github.com/magnani/sicoob-payment/internal/resilience"
	"github.com/magnani/sicoob-payment/internal/service"
)

// orderStore é o livro de pedidos que também baixa estoque
type orderStore interface {
	ports.OrderLedger
	ports.Inventory
}

func main() {
	// Carrega configurações
	cfg, err := config.Load()
	if err != nil {
		// logger ainda não existe
		zap.NewExample().Fatal("erro ao carregar configurações", zap.Error(err))
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("configuração carregada",
		zap.String("env", cfg.Env),
		zap.String("ledger", cfg.Ledger.Backend),
		zap.Bool("sicoob_logs", cfg.Sicoob.EnableLogs),
		zap.Bool("breaker", cfg.Sicoob.BreakerEnabled),
		zap.Int("webhook_mismatch_status", cfg.Webhook.MismatchStatus),
		zap.String("boleto_conta", domain.MaskAccount(strconv.FormatInt(cfg.Boleto.AccountNumber, 10))),
	)

	if cfg.IsProduction() && cfg.Sicoob.EnableLogs {
		logger.Warn("logs de requisições Sicoob ativos em produção; os corpos incluem dados de pagadores")
	}
	if !cfg.IsDevelopment() && cfg.Ledger.Backend == config.LedgerMemory {
		logger.Warn("pedidos mantidos apenas em memória fora do ambiente de desenvolvimento")
	}

	// Tracing
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "sicoob-payment")
	if err != nil {
		logger.Fatal("erro ao iniciar tracer", zap.Error(err))
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metrics := observability.NewMetrics()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()

	// Livro de pedidos
	store, err := openLedger(startCtx, cfg.Ledger)
	if err != nil {
		logger.Fatal("erro ao abrir livro de pedidos", zap.Error(err))
	}

	// Reserva de entregas do webhook
	var guard ports.DeliveryGuard = dedupe.NewLocal()
	if cfg.Redis.Addr != "" {
		rdb, err := dedupe.ConnectRedis(startCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("erro ao conectar no Redis", zap.Error(err))
		}
		defer rdb.Close()
		guard = dedupe.NewRedis(rdb, cfg.Webhook.ClaimTTL)
		logger.Info("reserva de entregas via Redis", zap.String("addr", cfg.Redis.Addr))
	}

	files := blob.NewFilesystem(cfg.Blob.Dir, cfg.Blob.BaseURL)

	// Cliente Sicoob. Sem certificado o webhook continua funcionando e as
	// chamadas à API falham com erro de configuração.
	if _, err := os.Stat(cfg.Sicoob.CertificatePath); err != nil {
		logger.Warn("certificado Sicoob não encontrado", zap.String("path", cfg.Sicoob.CertificatePath))
	}
	opts := []sicoob.TransportOption{sicoob.WithMetrics(metrics)}
	if cfg.Sicoob.BreakerEnabled {
		opts = append(opts, sicoob.WithCircuitBreaker(resilience.NewCircuitBreaker("sicoob", logger)))
	}
	client, err := sicoob.NewClient(cfg.Sicoob, cfg.Sicoob, logger, opts...)
	if err != nil {
		logger.Fatal("erro ao iniciar cliente Sicoob", zap.Error(err))
	}

	// Eventos
	bus := events.NewBus(logger)
	events.On(bus, func(ctx context.Context, e events.OrderSettled) error {
		return store.ReduceStock(ctx, e.OrderID)
	})
	events.On(bus, func(_ context.Context, e events.OrderSettled) error {
		logger.Info("pedido pago via PIX",
			zap.String("order_id", e.OrderID),
			zap.String("txid", e.TxID),
			zap.String("valor", e.Amount.StringFixed(2)),
		)
		return nil
	})
	events.On(bus, func(_ context.Context, e events.BoletoIssued) error {
		logger.Info("boleto emitido",
			zap.String("order_id", e.OrderID),
			zap.String("nosso_numero", e.NossoNumero),
			zap.String("pdf", e.PDFURL),
		)
		return nil
	})

	// Serviços
	reconciler := service.NewReconciler(store, guard, bus, metrics, logger)
	checkout := service.NewCheckout(service.CheckoutDeps{
		Ledger:  store,
		Pix:     sicoob.NewPixService(client),
		Boleto:  sicoob.NewBoletoService(client, files, metrics, nil),
		PixCfg:  cfg.Pix,
		BolCfg:  cfg.Boleto,
		Bus:     bus,
		Metrics: metrics,
		Logger:  logger,
	})

	webhook := handlers.NewWebhookHandler(
		reconciler,
		resilience.NewBulkhead(cfg.Webhook.MaxConcurrency),
		handlers.MismatchPolicy{Status: cfg.Webhook.MismatchStatus},
		logger,
	)

	router := handlers.NewRouter(handlers.RouterDeps{
		Webhook:     webhook,
		Checkout:    checkout,
		Metrics:     metrics,
		Logger:      logger,
		Uploads:     http.FileServer(http.Dir(files.Dir())),
		UploadsPath: cfg.Blob.BaseURL,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("servidor iniciado",
			zap.String("port", cfg.Port),
			zap.String("webhook", "/webhook/sicoob/pix"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("erro ao iniciar servidor", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("encerrando servidor...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("encerramento forçado", zap.Error(err))
	}
	logger.Info("servidor encerrado")
}

// openLedger escolhe o backend do livro de pedidos
func openLedger(ctx context.Context, cfg config.LedgerConfig) (orderStore, error) {
	switch cfg.Backend {
	case config.LedgerPostgres:
		db, err := ledger.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return ledger.NewPostgres(db), nil
	case config.LedgerDynamoDB:
		ddb, err := ledger.NewDynamoDBClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, err
		}
		return ledger.NewDynamo(ddb, cfg.DynamoTable), nil
	case config.LedgerMemory:
		return ledger.NewMemory(), nil
	}
	return nil, errors.New("backend desconhecido: " + strconv.Quote(cfg.Backend))
}
