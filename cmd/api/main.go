package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-clothing-orders/internal/app"
	"github.com/ariefcatur/go-clothing-orders/internal/auth"
	"github.com/ariefcatur/go-clothing-orders/internal/catalog"
	"github.com/ariefcatur/go-clothing-orders/internal/config"
	"github.com/ariefcatur/go-clothing-orders/internal/events"
	"github.com/ariefcatur/go-clothing-orders/internal/httpx"
	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-clothing-orders/internal/kafka"
	"github.com/ariefcatur/go-clothing-orders/internal/logx"
	"github.com/ariefcatur/go-clothing-orders/internal/orders"
	"github.com/ariefcatur/go-clothing-orders/internal/redisx"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api exit", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb := redisx.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		return err
	}

	var publisher events.Publisher = events.Discard{}
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.With("component", "kafka"))
		prod.Start()
		publisher = prod
	} else {
		log.Warn("KAFKA_BROKERS empty; events are discarded")
	}

	cat := &catalog.Service{Store: store, Log: log}
	inv := &inventory.Service{Store: store, Redis: rdb, Events: publisher, ServiceName: cfg.ServiceName, Log: log}
	ord := &orders.Service{Store: store, Events: publisher, Stock: inv, ServiceName: cfg.ServiceName, Log: log}
	sessions := &auth.Sessions{Redis: rdb, TTL: cfg.SessionTTL}

	if cfg.StoreDriver == config.StoreDriverMemory {
		if err := seedMemory(ctx, log, cat, inv, sessions); err != nil {
			return err
		}
	}

	router := httpx.NewRouter(log, sessions,
		&httpx.OrdersHandler{Orders: ord, Redis: rdb, Log: log},
		&httpx.CatalogHandler{Catalog: cat, Inventory: inv},
	)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		if prod != nil {
			prod.Close()
			prod.WaitClosed()
		}
		return err
	})
	return g.Wait()
}

// seedMemory fills an empty in-memory store and prints tokens to try it with.
func seedMemory(ctx context.Context, log *slog.Logger, cat *catalog.Service, inv *inventory.Service, sessions *auth.Sessions) error {
	admin := auth.Requester{UserID: 1, Role: auth.RoleAdmin}
	if _, err := app.SeedDemo(ctx, admin, cat, inv); err != nil {
		return err
	}
	adminToken, err := sessions.Issue(ctx, admin)
	if err != nil {
		return err
	}
	customerToken, err := sessions.Issue(ctx, auth.Requester{UserID: 2, Role: auth.RoleCustomer})
	if err != nil {
		return err
	}
	log.Info("demo data loaded", "admin_token", adminToken, "customer_token", customerToken)
	return nil
}
