package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/contactkeval/option-pricing/internal/data"
	"github.com/contactkeval/option-pricing/internal/logger"
	"github.com/contactkeval/option-pricing/internal/report"
	"github.com/contactkeval/option-pricing/internal/server"
	"github.com/contactkeval/option-pricing/internal/valuation"
)

func main() {
	configPath := flag.String("config", filepath.Join("configs", "example.json"), "path to JSON config")
	rest := flag.Bool("rest", false, "run as REST server (accept valuation requests)")
	port := flag.String("port", ":8080", "REST server listen address")
	verbosity := flag.Int("v", -1, "log verbosity 0=errors,1=info,2=debug,3=trace (overrides config)")
	dataDir := flag.String("data", os.Getenv("OPTION_PRICING_DATA_DIR"), "directory of <TICKER>.csv daily bars")
	flag.Parse()

	if *verbosity >= 0 {
		logger.SetVerbosity(*verbosity)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prov := buildProvider(ctx, *dataDir)

	if *rest {
		srv, err := server.New(prov, server.Limits{})
		if err != nil {
			log.Fatalf("server init: %v", err)
		}
		log.Fatal(srv.ListenAndServe(*port))
		return
	}

	cfg, err := valuation.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *verbosity < 0 {
		logger.SetVerbosity(cfg.Verbosity)
	}

	start := time.Now()
	res, err := valuation.NewEngine(cfg, prov).Run(ctx)
	if err != nil {
		log.Fatalf("valuation failed: %v", err)
	}

	// write outputs to cfg.ReportDir
	if err := report.WriteJSON(res, cfg.ReportDir); err != nil {
		logger.Errorf("event=report_failed file=%s err=%v", report.PricesFile, err)
	}
	if len(res.Paths) > 0 {
		if err := report.WritePathsCSV(res.Paths, cfg.ReportDir); err != nil {
			logger.Errorf("event=report_failed file=%s err=%v", report.PathsFile, err)
		}
	}

	if bs := res.BlackScholes; bs != nil {
		log.Printf("[done] %s K=%.2f black-scholes call=%.4f put=%.4f", res.Ticker, res.Strike, bs.Call, bs.Put)
	}
	if mc := res.MonteCarlo; mc != nil {
		log.Printf("[done] %s K=%.2f monte-carlo call=%.4f (±%.4f) put=%.4f (±%.4f) n=%d",
			res.Ticker, res.Strike, mc.Call.Price, mc.Call.StdErr, mc.Put.Price, mc.Put.StdErr, mc.Simulations)
	}
	log.Printf("[done] finished in %v, wrote report to %s", time.Since(start), cfg.ReportDir)
}

// buildProvider assembles the fallback chain, most preferred first:
// redis cache -> massive -> local CSV -> synthetic.
func buildProvider(ctx context.Context, dataDir string) data.Provider {
	prov := data.NewSyntheticProvider(data.SyntheticConfig{})
	logger.Infof("event=provider_enabled name=synthetic")

	if dataDir != "" {
		prov = data.NewLocalCSVDataProvider(dataDir, prov)
		logger.Infof("event=provider_enabled name=csv dir=%s", dataDir)
	}

	apiKey := os.Getenv("MASSIVE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("POLYGON_API_KEY")
	}
	if apiKey != "" {
		prov = data.NewMassiveDataProvider(apiKey, prov)
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Errorf("event=redis_unavailable addr=%s err=%v", addr, err)
			_ = rdb.Close()
			return prov
		}
		prov = data.NewCachedProvider(rdb, data.DefaultCacheTTL, prov)
		logger.Infof("event=provider_enabled name=redis addr=%s", addr)
	}
	return prov
}
