// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"sync"

	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/lightningnetwork/lnd/ticker"
)

// Checkpointer periodically flushes a Store into a wallet database so
// that a crash loses at most one flush interval of watcher activity.  A
// final flush happens on Stop.
type Checkpointer struct {
	started sync.Once
	stopped sync.Once

	db     walletdb.DB
	store  *Store
	ticker ticker.Ticker

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewCheckpointer creates a Checkpointer flushing store into db on
// every tick of t.  The ticker is assumed paused; the Checkpointer
// resumes it on Start and stops it on Stop.
func NewCheckpointer(db walletdb.DB, store *Store,
	t ticker.Ticker) *Checkpointer {

	return &Checkpointer{
		db:     db,
		store:  store,
		ticker: t,
		quit:   make(chan struct{}),
	}
}

// Start launches the background flush loop.
func (c *Checkpointer) Start() {
	c.started.Do(func() {
		c.ticker.Resume()
		c.wg.Add(1)
		go c.run()
	})
}

// Stop halts the flush loop and performs one final flush.
func (c *Checkpointer) Stop() {
	c.stopped.Do(func() {
		close(c.quit)
		c.wg.Wait()
		c.ticker.Stop()
		c.flush()
	})
}

func (c *Checkpointer) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ticker.Ticks():
			c.flush()

		case <-c.quit:
			return
		}
	}
}

func (c *Checkpointer) flush() {
	if err := SaveDB(c.db, c.store); err != nil {
		log.Errorf("Unable to checkpoint transaction database: %v",
			err)
		return
	}
	log.Debugf("Checkpointed transaction database at height %d",
		c.store.LastHeight())
}
