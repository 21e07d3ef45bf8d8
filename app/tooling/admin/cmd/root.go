// Package cmd contains the admin commands.
package cmd

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/peer"
	"github.com/ardanlabs/ubilog/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/ubilog/foundation/blockchain/storage/leveldb"
	"github.com/spf13/cobra"
)

var (
	nodeAddr string
	engine   string
	dbPath   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:          "admin",
	Short:        "Administrative tasks for a ubilog node",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&nodeAddr, "node", "n", "127.0.0.1:16936", "Datagram address of the node.")
	rootCmd.PersistentFlags().StringVarP(&engine, "engine", "e", "disk", "Storage engine of the node: disk or leveldb.")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db-path", "d", "zblock/data", "Path to the node's storage.")
}

// node resolves the --node flag.
func node() (netip.AddrPort, error) {
	addr, err := peer.Parse(nodeAddr)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("parsing node address: %w", err)
	}
	return addr, nil
}

// openStorage opens the storage selected by the --engine flag.
func openStorage() (database.Storage, error) {
	switch engine {
	case "disk":
		return disk.New(dbPath)
	case "leveldb":
		return leveldb.New(dbPath)
	}

	return nil, fmt.Errorf("unknown storage engine %q", engine)
}
