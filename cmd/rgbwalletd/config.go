package main

import (
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/rgb-wg/rgb-wallet/lightweight-wallet/server"
)

var defaultDataDir = btcutil.AppDataDir("rgbwalletd", false)

// cliConfig is the flat flag set parsed from the command line and config
// file, in the familiar lnd-style go-flags config struct shape.
type cliConfig struct {
	Network string `long:"network" description:"mainnet, testnet, or regtest" default:"testnet"`
	DataDir string `long:"datadir" description:"directory to store wallet and stash databases"`

	SeedFile string `long:"seedfile" description:"path to a file containing the wallet's raw seed bytes"`

	MempoolURL string `long:"mempoolurl" description:"base URL of the Esplora-compatible chain backend"`
	ProxyURL   string `long:"proxyurl" description:"base URL of the consignment/media proxy"`

	BlobDir            string `long:"blobdir" description:"directory for at-rest encrypted blob storage"`
	BlobPassphraseFile string `long:"blobpassphrasefile" description:"path to a file containing the blob store passphrase"`
}

func defaultCliConfig() *cliConfig {
	return &cliConfig{
		Network: "testnet",
		DataDir: defaultDataDir,
	}
}

func loadConfig() (*cliConfig, error) {
	cfg := defaultCliConfig()
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.BlobDir == "" {
		cfg.BlobDir = filepath.Join(cfg.DataDir, "blobs")
	}
	return cfg, nil
}

func (c *cliConfig) readSeed() ([]byte, error) {
	if c.SeedFile == "" {
		return nil, nil
	}
	return os.ReadFile(c.SeedFile)
}

func (c *cliConfig) readBlobPassphrase() ([]byte, error) {
	if c.BlobPassphraseFile == "" {
		return nil, nil
	}
	return os.ReadFile(c.BlobPassphraseFile)
}

func (c *cliConfig) toServerConfig() (*server.Config, error) {
	seed, err := c.readSeed()
	if err != nil {
		return nil, err
	}
	passphrase, err := c.readBlobPassphrase()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return nil, err
	}

	return &server.Config{
		Network:        c.Network,
		DBPath:         filepath.Join(c.DataDir, "rgbstash.db"),
		Seed:           seed,
		MempoolURL:     c.MempoolURL,
		ProxyURL:       c.ProxyURL,
		BlobDir:        c.BlobDir,
		BlobPassphrase: passphrase,
	}, nil
}
