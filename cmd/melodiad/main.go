package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"melodia/config"
	"melodia/core/types"
	"melodia/native/common"
	"melodia/native/marketplace"
	"melodia/native/registry"
	"melodia/native/streaming"
	"melodia/observability/logging"
	"melodia/observability/metrics"
	"melodia/rpc"
	"melodia/state"
	"melodia/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup("melodiad", "").Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	logger := logging.Setup("melodiad", cfg.Environment)

	var db storage.Database
	if cfg.DataDir == ":memory:" {
		db = storage.NewMemDB()
	} else {
		db, err = storage.NewLevelDB(filepath.Join(cfg.DataDir, "melodia"))
		if err != nil {
			logger.Error("failed to open database", "err", err, "dir", cfg.DataDir)
			os.Exit(1)
		}
	}
	defer db.Close()

	store := state.NewStore(db)
	registries := registry.NewSet()
	recorder := metrics.NewRecorder(nil)

	market := marketplace.NewEngine()
	market.SetState(state.NewMarketState(store))
	market.SetRegistries(registries)
	market.SetEmitter(recorder)
	market.SetVault(common.ModuleAddress(marketplace.ModuleName))
	if err := market.SetFeeBps(cfg.MarketFeeBps); err != nil {
		logger.Error("invalid market fee", "err", err)
		os.Exit(1)
	}
	owner := common.ModuleAddress("treasury")
	if cfg.FeeOwner != "" {
		owner, err = types.ParseAddress(cfg.FeeOwner)
		if err != nil {
			logger.Error("invalid fee owner address", "err", err)
			os.Exit(1)
		}
	}
	market.SetOwner(owner)

	stream := streaming.NewEngine()
	stream.SetState(state.NewStreamState(store))
	stream.SetRegistries(registries)
	stream.SetEmitter(recorder)
	stream.SetVault(common.ModuleAddress(streaming.ModuleName))

	server := rpc.NewServer(market, stream, registries, store, logger, cfg.RPCAuthToken)
	for _, spec := range cfg.Collections {
		collection := registry.NewMusicCollection(spec.Name, spec.Symbol)
		if err := server.AddCollection(collection); err != nil {
			logger.Error("failed to register collection", "err", err, "name", spec.Name)
			os.Exit(1)
		}
		logger.Info("registered collection", "name", spec.Name, "address", types.HexAddr(collection.Address()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting JSON-RPC server", "addr", cfg.RPCAddress)
	if err := server.Start(ctx, cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
