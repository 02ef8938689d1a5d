// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/stretchr/testify/require"
)

// testWalletDB creates a bolt-backed wallet database in a temporary
// directory.
func testWalletDB(t *testing.T) walletdb.DB {
	t.Helper()

	db, err := walletdb.Create(
		"bdb", filepath.Join(t.TempDir(), "wallet.db"), true,
		10*time.Second, false,
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

// TestSaveLoadDB ensures a store checkpointed into a wallet database
// can be read back.
func TestSaveLoadDB(t *testing.T) {
	t.Parallel()

	db := testWalletDB(t)
	s := testStore()

	_, pkScript := p2pkhAddress(t, 0x01)
	tx := newTx(
		[]wire.OutPoint{fakeOutPoint(0x02)}, nil,
		wire.NewTxOut(100, pkScript),
	)
	txid := tx.TxHash()
	require.True(t, s.Insert(tx))
	s.AtHeight(42)

	require.NoError(t, SaveDB(db, s))

	restored := testStore()
	require.NoError(t, LoadDB(db, restored))
	require.EqualValues(t, 42, restored.LastHeight())
	require.True(t, restored.TxidExists(&txid))
}

// TestLoadDBEmpty ensures loading from a database that was never
// checkpointed leaves the store empty without failing.
func TestLoadDBEmpty(t *testing.T) {
	t.Parallel()

	db := testWalletDB(t)
	s := testStore()

	require.NoError(t, LoadDB(db, s))
	require.Zero(t, s.LastHeight())
	require.Empty(t, s.rows)
}
