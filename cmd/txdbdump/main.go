// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/btcsuite/lightwallet/txdb"
	"github.com/jessevdk/go-flags"
)

const (
	defaultNet = "mainnet"

	// defaultUnconfirmedTimeout mirrors the watcher's purge window.
	// The timeout only matters when re-serializing, which this tool
	// never does, but the store requires one.
	defaultUnconfirmedTimeout = 24 * time.Hour

	defaultDBTimeout = 60 * time.Second
)

var datadir = btcutil.AppDataDir("btcwallet", false)

// Flags.
var opts = struct {
	DbPath  string `long:"db" description:"Path to wallet database"`
	File    string `long:"file" description:"Path to a raw serialized transaction database blob"`
	TestNet bool   `long:"testnet" description:"Decode addresses for the test network"`
	Debug   bool   `short:"d" long:"debug" description:"Show debug output while loading"`
}{
	DbPath: filepath.Join(datadir, defaultNet, "wallet.db"),
}

func init() {
	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}
}

func activeNet() *chaincfg.Params {
	if opts.TestNet {
		return &chaincfg.TestNet3Params
	}
	return &chaincfg.MainNetParams
}

func main() {
	os.Exit(mainInt())
}

func mainInt() int {
	if opts.Debug {
		initLogging()
		defer shutdownLogging()
	}

	store := txdb.New(activeNet(), defaultUnconfirmedTimeout)

	if opts.File != "" {
		blob, err := os.ReadFile(opts.File)
		if err != nil {
			fmt.Println("Failed to read database blob:", err)
			return 1
		}
		if err := store.Load(blob); err != nil {
			fmt.Println("Failed to load database blob:", err)
			return 1
		}
	} else {
		db, err := walletdb.Open(
			"bdb", opts.DbPath, true, defaultDBTimeout, false,
		)
		if err != nil {
			fmt.Println("Failed to open database:", err)
			return 1
		}
		defer db.Close()

		if err := txdb.LoadDB(db, store); err != nil {
			fmt.Println("Failed to load transaction database:",
				err)
			return 1
		}
	}

	store.Dump(os.Stdout)
	return 0
}
