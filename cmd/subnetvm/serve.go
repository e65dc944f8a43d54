// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ava-labs/avalanchego/api/metrics"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/m1labs/subnetvm/api"
	"github.com/m1labs/subnetvm/api/jsonrpc"
	"github.com/m1labs/subnetvm/chain"
	"github.com/m1labs/subnetvm/consts"
	"github.com/m1labs/subnetvm/pebble"
	"github.com/m1labs/subnetvm/storage"
	"github.com/m1labs/subnetvm/trace"
	"github.com/m1labs/subnetvm/vm"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the block state engine with its JSON-RPC API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dataDir, err := cmd.Flags().GetString("data-dir")
		if err != nil {
			return err
		}
		httpAddr, err := cmd.Flags().GetString("http-addr")
		if err != nil {
			return err
		}
		genesisTimestamp, err := cmd.Flags().GetInt64("genesis-timestamp")
		if err != nil {
			return err
		}
		genesisData, err := cmd.Flags().GetString("genesis-data")
		if err != nil {
			return err
		}
		traceEnabled, err := cmd.Flags().GetBool("trace")
		if err != nil {
			return err
		}
		return serve(cmd, dataDir, httpAddr, genesisTimestamp, genesisData, traceEnabled)
	},
}

func serve(
	cmd *cobra.Command,
	dataDir string,
	httpAddr string,
	genesisTimestamp int64,
	genesisData string,
	traceEnabled bool,
) error {
	log := logging.NewLogger(
		consts.Name,
		logging.NewWrappedCore(
			logging.Info,
			os.Stdout,
			logging.Plain.ConsoleEncoder(),
		),
	)

	tracer, err := trace.New(&trace.Config{
		Enabled:         traceEnabled,
		TraceSampleRate: 1,
		AppName:         consts.Name,
		Agent:           consts.Name,
		Version:         consts.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	defer func() {
		_ = tracer.Close()
	}()

	gatherer := metrics.NewMultiGatherer()
	registry := prometheus.NewRegistry()
	if err := gatherer.Register("vm", registry); err != nil {
		return err
	}

	db, err := storage.New(pebble.NewDefaultConfig(), dataDir, gatherer)
	if err != nil {
		return fmt.Errorf("failed to open block store: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	node, err := vm.New(log, tracer, registry, db, vm.NewDefaultConfig())
	if err != nil {
		return err
	}
	genesis, err := chain.NewGenesisBlock(genesisTimestamp, []byte(genesisData))
	if err != nil {
		return err
	}
	if err := node.Initialize(cmd.Context(), genesis.GetBytes()); err != nil {
		return fmt.Errorf("failed to initialize chain: %w", err)
	}

	handler, err := jsonrpc.NewHandler(node)
	if err != nil {
		return err
	}
	metricsHandler := api.Handler{
		Path:    "/metrics",
		Handler: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}

	listener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return err
	}
	srv := api.NewServer(
		log,
		listener,
		api.HTTPConfig{
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		[]string{"*"},
		shutdownTimeout,
		handler,
		metricsHandler,
	)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutting down")
		_ = srv.Shutdown()
	}()

	log.Info("serving")
	if err := srv.Dispatch(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	serveCmd.Flags().String("data-dir", ".subnetvm", "Directory for the block store")
	serveCmd.Flags().String("http-addr", "127.0.0.1:9650", "Address to serve the JSON-RPC API on")
	serveCmd.Flags().Int64("genesis-timestamp", 0, "Unix timestamp (seconds) of the genesis block")
	serveCmd.Flags().String("genesis-data", "", "Opaque payload of the genesis block")
	serveCmd.Flags().Bool("trace", false, "Export spans to a zipkin collector")
	rootCmd.AddCommand(serveCmd)
}
