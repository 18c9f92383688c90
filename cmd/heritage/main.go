package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/totegamma/heritage-repo/internal/config"
	"github.com/totegamma/heritage-repo/internal/hook"
	"github.com/totegamma/heritage-repo/internal/infrastructure/providers"
	"github.com/totegamma/heritage-repo/internal/infrastructure/repository"
	"github.com/totegamma/heritage-repo/internal/present/rest"
	authmw "github.com/totegamma/heritage-repo/internal/present/rest/middleware"
	"github.com/totegamma/heritage-repo/internal/service"
	"github.com/totegamma/heritage-repo/internal/usecase"
)

const serviceName = "heritage-repo"

func main() {
	configPath := flag.String("config", "/etc/heritage/config.yaml", "path to the configuration file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Server.EnableTrace {
		cleanup, err := setupTraceProvider(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to setup tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer cleanup()
	}

	db, err := providers.NewDatabase(conf.Server)
	if err != nil {
		panic("failed to connect database")
	}
	err = providers.MigrateDatabase(db)
	if err != nil {
		panic("failed to migrate database")
	}

	documents, closeStore, err := providers.NewDocumentStore(ctx, conf)
	if err != nil {
		panic("failed to open document store: " + err.Error())
	}
	defer closeStore()

	caches, closeCaches, err := providers.NewCaches(conf)
	if err != nil {
		panic("failed to build caches: " + err.Error())
	}
	defer closeCaches()

	users := repository.NewUserRepository(db)
	previews := repository.NewPreviewStorage(conf.Storage.PreviewDir, conf.Storage.PreviewURL, caches.Checksum)

	hooks := hook.NewRegistry()
	resolver := usecase.NewResolver(documents, caches.Entities, hooks)
	saver := usecase.NewSaver(documents, caches.Entities, hooks, users, previews)
	deleter := usecase.NewDeleter(documents, caches.Entities, hooks, users)
	search := usecase.NewSearchUsecase(documents, caches.Search)
	userdata := usecase.NewUserDataUsecase(resolver)

	service.NewSearchService(search, saver).Register(hooks)

	var signals *service.SignalService
	if conf.Server.RedisAddr != "" {
		rdb := providers.NewRedis(conf.Server)
		defer rdb.Close()
		signals = service.NewSignalService(rdb)
		signals.Register(hooks)
	}
	hooks.Seal()

	auth := service.NewAuthService(caches.Session, users)

	e := echo.New()
	e.HideBanner = true
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware(serviceName))
	}
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(authmw.NewAuthMiddleware(auth).IdentifyIdentity)
	e.Static(conf.Storage.PreviewURL, conf.Storage.PreviewDir)

	handler := rest.NewHandler(resolver, saver, deleter, search, userdata, signals, auth)
	handler.RegisterRoutes(e)

	go func() {
		if err := e.Start(conf.Server.Listen); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown", slog.String("error", err.Error()))
	}
}

func setupTraceProvider(ctx context.Context, endpoint string) (func(), error) {
	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", slog.String("error", err.Error()))
		}
	}, nil
}
