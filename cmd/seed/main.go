// Command seed loads the demo catalog into Postgres and issues session tokens
// for a demo admin and customer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ariefcatur/go-clothing-orders/internal/app"
	"github.com/ariefcatur/go-clothing-orders/internal/auth"
	"github.com/ariefcatur/go-clothing-orders/internal/catalog"
	"github.com/ariefcatur/go-clothing-orders/internal/config"
	"github.com/ariefcatur/go-clothing-orders/internal/inventory"
	"github.com/ariefcatur/go-clothing-orders/internal/logx"
	"github.com/ariefcatur/go-clothing-orders/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	adminID := flag.Int64("admin", 1, "admin user id")
	customerID := flag.Int64("customer", 2, "customer user id")
	tokensOnly := flag.Bool("tokens-only", false, "only issue session tokens")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log, *adminID, *customerID, *tokensOnly); err != nil {
		log.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger, adminID, customerID int64, tokensOnly bool) error {
	ctx := context.Background()
	if cfg.StoreDriver == config.StoreDriverMemory {
		return fmt.Errorf("seed needs a persistent store; the api seeds the memory store itself")
	}

	rdb := redisx.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer rdb.Close()
	sessions := &auth.Sessions{Redis: rdb, TTL: cfg.SessionTTL}
	admin := auth.Requester{UserID: adminID, Role: auth.RoleAdmin}

	if !tokensOnly {
		store, closeStore, err := app.OpenStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeStore()

		cat := &catalog.Service{Store: store, Log: log}
		inv := &inventory.Service{Store: store, Redis: rdb, ServiceName: "seed", Log: log}
		ps, err := app.SeedDemo(ctx, admin, cat, inv)
		if err != nil {
			return err
		}
		for _, p := range ps {
			fmt.Printf("product %d\t%s\t%s\n", p.ID, p.Name, p.Price.StringFixed(2))
		}
	}

	adminToken, err := sessions.Issue(ctx, admin)
	if err != nil {
		return err
	}
	customerToken, err := sessions.Issue(ctx, auth.Requester{UserID: customerID, Role: auth.RoleCustomer})
	if err != nil {
		return err
	}
	fmt.Printf("admin token:    %s\ncustomer token: %s\n", adminToken, customerToken)
	return nil
}
