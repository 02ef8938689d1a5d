// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/lightwallet/txdb"
	"github.com/jrick/logrotate/rotator"
)

// logWriter implements an io.Writer that outputs to both standard
// error and the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stderr.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

var (
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs.  It should be closed
	// on application shutdown.
	logRotator *rotator.Rotator
)

// initLogging wires the txdb package logger to the backend and starts a
// rotating log file inside the data directory.
func initLogging() {
	logFile := filepath.Join(datadir, "txdbdump.log")
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log rotator: %v\n",
			err)
	} else {
		logRotator = r
	}

	logger := backendLog.Logger("TXDB")
	logger.SetLevel(btclog.LevelDebug)
	txdb.UseLogger(logger)
}

// shutdownLogging flushes and closes the log rotator.
func shutdownLogging() {
	if logRotator != nil {
		logRotator.Close()
	}
}
