// Command rgbwalletd runs the RGB wallet-core daemon and exposes a
// handful of direct operator subcommands against the embedded client,
// in lieu of a separate RPC/CLI pair.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rgb-wg/rgb-wallet/lightweight-wallet/server"
	"github.com/rgb-wg/rgb-wallet/rgbcore"
	"github.com/urfave/cli"
)

func parseContractID(s string) (rgbcore.ContractId, error) {
	var id rgbcore.ContractId
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid contract_id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid contract_id: expected %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

func main() {
	app := cli.NewApp()
	app.Name = "rgbwalletd"
	app.Usage = "RGB confidential asset wallet core"
	app.Commands = []cli.Command{
		startCommand,
		balanceCommand,
		invoiceCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "rgbwalletd: %v\n", err)
		os.Exit(1)
	}
}

var startCommand = cli.Command{
	Name:  "start",
	Usage: "run the daemon until interrupted",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		srvCfg, err := cfg.toServerConfig()
		if err != nil {
			return err
		}

		srv, err := server.New(srvCfg)
		if err != nil {
			return err
		}
		if err := srv.Start(); err != nil {
			return err
		}
		defer srv.Stop()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		return nil
	},
}

var balanceCommand = cli.Command{
	Name:  "balance",
	Usage: "print the confirmed balance of a contract",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "contract_id", Required: true},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		srvCfg, err := cfg.toServerConfig()
		if err != nil {
			return err
		}
		srv, err := server.New(srvCfg)
		if err != nil {
			return err
		}

		contractID, err := parseContractID(c.String("contract_id"))
		if err != nil {
			return err
		}

		balance, err := srv.Engine().BalanceOf(context.Background(), contractID, 0)
		if err != nil {
			return err
		}
		fmt.Println(balance)
		return nil
	},
}

var invoiceCommand = cli.Command{
	Name:  "invoice",
	Usage: "derive a fresh receive address and print an invoice placeholder",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "contract_id", Required: true},
		cli.StringFlag{Name: "iface", Required: true},
		cli.Uint64Flag{Name: "amount", Required: true},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		srvCfg, err := cfg.toServerConfig()
		if err != nil {
			return err
		}
		srv, err := server.New(srvCfg)
		if err != nil {
			return err
		}

		contractID, err := parseContractID(c.String("contract_id"))
		if err != nil {
			return err
		}

		inv, err := srv.Engine().NextInvoice(contractID, c.String("iface"), 0, c.Uint64("amount"))
		if err != nil {
			return err
		}
		fmt.Printf("derivation index: %d\n", inv.AddrIndex)
		return nil
	},
}
