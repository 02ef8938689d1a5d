// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/require"
)

// TestCheckpointer ensures the store is flushed on every tick and once
// more on shutdown.
func TestCheckpointer(t *testing.T) {
	t.Parallel()

	db := testWalletDB(t)
	s := testStore()

	_, pkScript := p2pkhAddress(t, 0x01)
	tx := newTx(
		[]wire.OutPoint{fakeOutPoint(0x02)}, nil,
		wire.NewTxOut(100, pkScript),
	)
	require.True(t, s.Insert(tx))
	s.AtHeight(7)

	forceTick := ticker.NewForce(time.Hour)
	c := NewCheckpointer(db, s, forceTick)
	c.Start()

	forceTick.Force <- time.Time{}
	require.Eventually(t, func() bool {
		restored := testStore()
		if err := LoadDB(db, restored); err != nil {
			return false
		}
		return restored.LastHeight() == 7
	}, 5*time.Second, 10*time.Millisecond)

	// Stop performs a final flush covering mutations after the last
	// tick.
	s.AtHeight(8)
	c.Stop()

	restored := testStore()
	require.NoError(t, LoadDB(db, restored))
	require.EqualValues(t, 8, restored.LastHeight())

	txid := tx.TxHash()
	require.True(t, restored.TxidExists(&txid))

	// Sanity check that the blob really lives in the txdb namespace.
	err := walletdb.View(db, func(dbtx walletdb.ReadTx) error {
		ns := dbtx.ReadBucket(txdbNamespaceKey)
		require.NotNil(t, ns)
		require.NotNil(t, ns.Get(databaseKey))
		return nil
	})
	require.NoError(t, err)
}
