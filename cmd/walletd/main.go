package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walletconfig"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
	"github.com/sparkwallet/spark-wallet-sdk/walletsdk"
)

var Cfg walletsdk.Config

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_, filename, _, _ := runtime.Caller(0)
	root := filepath.Dir(filename)
	configPath := walletconfig.Path(root).Join("config.toml", "..", "..")

	if err := walletconfig.Load(configPath, &Cfg.Wallet); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	Cfg.Environment = os.Getenv("SPARK_WALLET_ENV")
	Cfg.StorageDir = os.Getenv("SPARK_WALLET_STORAGE_DIR")

	seedPath := Cfg.Wallet.Signer.SeedPath
	if seedPath == "" {
		return fmt.Errorf("no signer seed configured")
	}
	seed, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("failed to read signer seed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wallet, err := walletsdk.Connect(ctx, Cfg, walletsdk.KeyMaterial{Seed: seed})
	if err != nil {
		return fmt.Errorf("failed to connect wallet: %w", err)
	}
	defer wallet.Disconnect()

	wallet.AddEventListener(func(e walletsdk.Event) {
		walletlog.Info("wallet event", zap.String("kind", string(e.Kind)))
	})

	info, err := wallet.GetInfo(ctx, walletsdk.GetInfoOptions{EnsureSynced: true})
	if err != nil {
		return fmt.Errorf("failed to fetch wallet info: %w", err)
	}
	walletlog.Info("wallet connected",
		zap.Int64("balance_sat", info.BalanceSat),
		zap.Int("token_count", len(info.TokenBalances)),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	walletlog.Info("wallet shutting down")
	return nil
}
