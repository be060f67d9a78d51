package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-storefront-checkout/internal/config"
	"github.com/imrishuroy/go-storefront-checkout/internal/coupons"
	"github.com/imrishuroy/go-storefront-checkout/internal/db"
	"github.com/imrishuroy/go-storefront-checkout/internal/logging"
	"github.com/imrishuroy/go-storefront-checkout/internal/tracing"
	"github.com/imrishuroy/go-storefront-checkout/internal/users"
)

const defaultLocalBody = `{"type":"coupon.sweep","data":{}}`

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.Setup("storefront-worker", "info", "json")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logging.Setup(cfg.ServiceName+"-worker", cfg.LogLevel, cfg.LogFormat)
	ctx := log.WithContext(context.Background())

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName+"-worker", cfg.JaegerEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("init tracing")
	}
	flush := func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error().Err(err).Msg("flush traces")
		}
	}

	gdb, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	p := NewProcessor(users.NewStore(gdb), coupons.NewStore(gdb))

	// RUN_LOCAL simulates a single SQS record from LOCAL_SQS_BODY.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = defaultLocalBody
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local", Body: body}},
		}
		err := p.Handle(ctx, event)
		flush()
		if err != nil {
			log.Fatal().Err(err).Msg("local handler error")
		}
		return
	}

	lambda.Start(func(lctx context.Context, ev events.SQSEvent) error {
		defer func() {
			if err := tracing.ForceFlush(lctx); err != nil {
				log.Warn().Err(err).Msg("flush traces")
			}
		}()
		return p.Handle(log.WithContext(lctx), ev)
	})
}
