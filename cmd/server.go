// Server = chain adapters + swap store + coordinator + expiry monitor + http reporter.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/atomic-swap/audit"
	"github.com/TEENet-io/atomic-swap/coordinator"
	"github.com/TEENet-io/atomic-swap/registry"
	"github.com/TEENet-io/atomic-swap/reporter"
	"github.com/TEENet-io/atomic-swap/state"
	"github.com/TEENet-io/atomic-swap/swap"
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type SwapServerConfig struct {
	// chain side, a chain with an empty mode is left out
	Ethereum ChainConfig
	Solana   ChainConfig
	TON      ChainConfig
	Aptos    ChainConfig

	// state side
	StoreBackend  string // memory, sqlite, bolt or redis
	StorePath     string // db file path for sqlite and bolt
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// coordinator side, zero values keep the defaults
	DestinationTimeLockMargin time.Duration
	MonitorInterval           time.Duration
	MonitorConcurrency        int

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080
}

// SwapServer holds the objects that consists of the swap server.
type SwapServer struct {
	Store       state.SwapStore
	Registry    *registry.Registry
	Coordinator *coordinator.Coordinator
	Reporter    *reporter.HttpReporter
}

func (ssc *SwapServerConfig) storeConfig() *state.Config {
	cfg := state.DefaultConfig()
	if ssc.StoreBackend != "" {
		cfg.Backend = ssc.StoreBackend
	}
	if ssc.StorePath != "" {
		cfg.Path = ssc.StorePath
	}
	cfg.RedisAddr = ssc.RedisAddr
	cfg.RedisPassword = ssc.RedisPassword
	cfg.RedisDB = ssc.RedisDB
	return cfg
}

func (ssc *SwapServerConfig) coordinatorConfig() *coordinator.Config {
	cfg := coordinator.DefaultConfig()
	if ssc.DestinationTimeLockMargin != 0 {
		cfg.DestinationTimeLockMargin = ssc.DestinationTimeLockMargin
	}
	if ssc.MonitorInterval != 0 {
		cfg.MonitorInterval = ssc.MonitorInterval
	}
	if ssc.MonitorConcurrency != 0 {
		cfg.MonitorConcurrency = ssc.MonitorConcurrency
	}
	return cfg
}

// NewSwapServer creates a new swap server.
// ctx is used for parental context to cancel the operation of swap server.
// wg is used to wait for all the goroutines inside the server (monitor, http reporter) to finish.
// The store is closed once they are done.
func NewSwapServer(ssc *SwapServerConfig, ctx context.Context, wg *sync.WaitGroup) (*SwapServer, error) {
	clk := clock.NewDefaultClock()

	// 1) chain adapters behind one registry
	adapters, err := setupAdapters(ctx, ssc, clk)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(adapters...)
	if err != nil {
		return nil, err
	}
	if len(reg.Chains()) < 2 {
		logger.Warn("fewer than two chains configured, no swap can be initiated")
	}

	// 2) swap store
	store, err := state.Open(ssc.storeConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open swap store: %w", err)
	}

	// 3) coordinator over both, restoring stored swaps
	coord, err := coordinator.New(ctx, ssc.coordinatorConfig(), reg, store, audit.LogSink{}, clk)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}

	// 4) http reporter
	stats := reporter.StatsFunc(func(ctx context.Context) (map[swap.Status]int, error) {
		return state.Stats(ctx, store)
	})
	httpServer := reporter.NewHttpReporter(ssc.HttpIp, ssc.HttpPort, coord, reg, stats)

	// Important: Turn on the background components!
	var inner sync.WaitGroup
	inner.Add(2)
	go func() {
		defer inner.Done()
		if err := coord.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("expiry monitor stopped: %v", err)
		}
	}()
	go func() {
		defer inner.Done()
		if err := httpServer.Run(ctx); err != nil {
			logger.Errorf("http reporter stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		inner.Wait()
		if err := store.Close(); err != nil {
			logger.Errorf("failed to close swap store: %v", err)
		}
	}()

	return &SwapServer{
		Store:       store,
		Registry:    reg,
		Coordinator: coord,
		Reporter:    httpServer,
	}, nil
}

// Create, then start the swap server and wait.
// Press Ctrl-C to kill the server.
func StartSwapServerAndWait(ssc *SwapServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal: %v, cancelling context...\n", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	_, err := NewSwapServer(ssc, ctx, &wg)
	if err != nil {
		logger.Fatalf("failed to create swap server: %v", err)
		return
	}

	// wait for all routines to finish
	wg.Wait()
}
