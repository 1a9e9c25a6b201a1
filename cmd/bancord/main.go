package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bancornode/cmd/internal/passphrase"
	"bancornode/config"
	"bancornode/crypto"
	"bancornode/native/curve"
	"bancornode/observability"
	"bancornode/observability/logging"
	"bancornode/rpc"
	curvestate "bancornode/state/curve"
	"bancornode/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("BANCOR_ENV"))
	logger := logging.Setup("bancord", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	engine := curve.NewEngine()
	engine.SetState(curvestate.NewStore(db))
	engine.SetEmitter(observability.NewEventRecorder(logger))

	if err := seedCurve(cfg, engine, logger); err != nil {
		logger.Error("Failed to seed curve", slog.Any("error", err))
		os.Exit(1)
	}

	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics server stopped", slog.Any("error", err))
			}
		}()
		logger.Info("Metrics listening", slog.String("address", addr))
	}

	server := rpc.NewServer(engine, cfg.RPCAuthTokenEnv)
	logger.Info("JSON-RPC listening",
		slog.String("address", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// seedCurve initializes the bonding curve from the configured genesis reserve
// using the node's own key as the caller. Initialization is idempotent, so a
// restart against an already seeded curve is a no-op.
func seedCurve(cfg *config.Config, engine *curve.Engine, logger *slog.Logger) error {
	reserve, ok, err := cfg.GenesisReserveAmount()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	pass, err := passphrase.NewSource(cfg.KeystorePassEnv).Get()
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(cfg.NodeKeystorePath, pass)
	if err != nil {
		return fmt.Errorf("load node keystore: %w", err)
	}
	var caller [20]byte
	copy(caller[:], key.PubKey().Address().Bytes())
	if err := engine.Initialize(caller, reserve); err != nil {
		return err
	}
	logger.Info("Curve seeded",
		slog.String("reserve", reserve.String()),
		slog.String("caller", key.PubKey().Address().String()))
	return nil
}
