package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/imrishuroy/go-storefront-checkout/internal/addresses"
	"github.com/imrishuroy/go-storefront-checkout/internal/auth"
	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/config"
	"github.com/imrishuroy/go-storefront-checkout/internal/coupons"
	"github.com/imrishuroy/go-storefront-checkout/internal/db"
	checkoutevents "github.com/imrishuroy/go-storefront-checkout/internal/events"
	"github.com/imrishuroy/go-storefront-checkout/internal/handlers"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/logging"
	"github.com/imrishuroy/go-storefront-checkout/internal/metrics"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
	"github.com/imrishuroy/go-storefront-checkout/internal/pricing"
	"github.com/imrishuroy/go-storefront-checkout/internal/ratings"
	"github.com/imrishuroy/go-storefront-checkout/internal/sellers"
	"github.com/imrishuroy/go-storefront-checkout/internal/tracing"
	"github.com/imrishuroy/go-storefront-checkout/internal/users"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

const shutdownTimeout = 10 * time.Second

func setupRouter(log zerolog.Logger, cfg handlers.HandlerConfig, prom *metrics.Prometheus) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Middleware(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", logging.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if prom != nil {
		r.Use(prom.Middleware())
		r.GET("/metrics", prom.Handler())
	}

	handlers.RegisterRoutes(r, cfg)
	return r
}

func buildHandlerConfig(ctx context.Context, cfg config.Config, gdb *gorm.DB, clients *aws.AWSClients, rec metrics.Recorder) handlers.HandlerConfig {
	fees := pricing.Fees{
		pricing.ZoneInsideDhaka:  cfg.ShippingFeeInsideDhaka,
		pricing.ZoneOutsideDhaka: cfg.ShippingFeeOutsideDhaka,
	}
	zones := make([]string, 0, len(fees))
	for z := range fees {
		zones = append(zones, z)
	}

	hc := handlers.HandlerConfig{
		Auth:      auth.NewAuthenticator(cfg.JWTSecret, users.NewStore(gdb)),
		Validator: validation.New(zones...),
		Orders:    orders.NewService(gdb, pricing.NewEngine(fees), cfg.CheckoutTimeout),
		Coupons:   coupons.NewStore(gdb),
		Addresses: addresses.NewStore(gdb, zones),
		Ratings:   ratings.NewStore(gdb),
		Sellers:   sellers.NewStore(gdb),
		Cart:      cart.NewMirror(gdb),
		Metrics:   rec,
	}

	log := zerolog.Ctx(ctx)
	if cfg.IdempotencyTable != "" {
		hc.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	} else {
		log.Warn().Msg("IDEMPOTENCY_TABLE not set, replay falls back to the checkout table")
	}
	if cfg.OrdersQueueURL != "" {
		hc.Notifier = checkoutevents.NewNotifier(aws.NewPublisher(clients.SQS, cfg.OrdersQueueURL))
	}
	return hc
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.Setup("storefront-checkout", "info", "json")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logging.Setup(cfg.ServiceName, cfg.LogLevel, cfg.LogFormat)
	ctx := log.WithContext(context.Background())

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.JaegerEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("init tracing")
	}

	gdb, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.AWSEndpointOverride)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init aws clients")
	}

	var (
		rec  metrics.Recorder = metrics.Nop{}
		prom *metrics.Prometheus
	)
	switch cfg.MetricsBackend {
	case "prometheus":
		prom = metrics.NewPrometheus()
		rec = prom
	case "cloudwatch":
		rec = metrics.NewCloudWatch(clients.CloudWatch, cfg.CloudWatchNamespace)
	}

	r := setupRouter(log, buildHandlerConfig(ctx, cfg, gdb, clients, rec), prom)

	if cfg.RunLocal {
		if err := serve(ctx, cfg.HTTPAddr, r, shutdownTracing); err != nil {
			log.Fatal().Err(err).Msg("local server stopped")
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

// serve runs the HTTP server until SIGINT or SIGTERM, then drains it and flushes
// traces.
func serve(ctx context.Context, addr string, h http.Handler, shutdownTracing func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := zerolog.Ctx(ctx)

	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("running local server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(sctx), shutdownTracing(sctx))
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
