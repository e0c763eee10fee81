// Package server wires the wallet-core collaborators into a standalone
// daemon process: rgbwalletd.
package server

import (
	"fmt"

	"github.com/btcsuite/btclog"
	"github.com/rgb-wg/rgb-wallet/chain/mempool"
	"github.com/rgb-wg/rgb-wallet/lightweight-wallet/client"
	"github.com/rgb-wg/rgb-wallet/rgbfreighter"
	"github.com/rgb-wg/rgb-wallet/rgbpsbt"
	"github.com/rgb-wg/rgb-wallet/rgbstash"
	"github.com/rgb-wg/rgb-wallet/rgbwatcher"
)

// Config holds the complete server configuration.
type Config struct {
	// Network (mainnet, testnet, regtest)
	Network string

	// Database path
	DBPath string

	// Wallet seed
	Seed []byte

	// Mempool.space API URL
	MempoolURL string

	// Consignment/media proxy URL
	ProxyURL string

	// Blob store directory and at-rest passphrase
	BlobDir        string
	BlobPassphrase []byte

	// LogLevel names a btclog level. New does not read it; subsystem
	// loggers are installed through UseLogger.
	LogLevel string
}

// UseLogger installs l as the logger for every subsystem this daemon
// owns, following the common per-package UseLogger convention.
func UseLogger(l btclog.Logger) {
	mempool.UseLogger(l)
	rgbwatcher.UseLogger(l)
	rgbfreighter.UseLogger(l)
	rgbstash.UseLogger(l)
	rgbpsbt.UseLogger(l)
	log = l
}

var log = btclog.Disabled

// Server is the rgbwalletd daemon process: one embedded *client.Client
// plus the process lifecycle and logging a standalone process needs.
type Server struct {
	cfg *Config

	engine *client.Client
}

// New creates a new rgbwalletd server, wiring every collaborator via
// lightweight-wallet/client.New and layering the daemon-only concerns
// (process lifecycle, logging) on top.
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server: config required")
	}

	engine, err := client.New(&client.Config{
		Network:        cfg.Network,
		DBPath:         cfg.DBPath,
		Seed:           cfg.Seed,
		MempoolURL:     cfg.MempoolURL,
		BlobDir:        cfg.BlobDir,
		BlobPassphrase: cfg.BlobPassphrase,
		ProxyURL:       cfg.ProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("server: init engine: %w", err)
	}

	return &Server{cfg: cfg, engine: engine}, nil
}

// Start starts the embedded client, which opens (or creates), unlocks and
// starts the Bitcoin wallet. No chain backend is attached to that wallet,
// so it runs no chain sync.
func (s *Server) Start() error {
	log.Infof("rgbwalletd starting on %s", s.cfg.Network)
	return s.engine.Start()
}

// Stop stops the server.
func (s *Server) Stop() error {
	log.Infof("rgbwalletd stopping")
	return s.engine.Stop()
}

// Engine exposes the embedded client for the RPC/CLI front ends to drive.
func (s *Server) Engine() *client.Client {
	return s.engine
}
