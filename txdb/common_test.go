// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

var chainParams = &chaincfg.MainNetParams

// testStore creates a store with a purge timeout long enough that
// nothing is purged during a test run.
func testStore() *Store {
	return New(chainParams, 24*time.Hour)
}

// p2pkhAddress derives a deterministic pay-to-pubkey-hash address from
// a one-byte seed, along with its output script.
func p2pkhAddress(t *testing.T, seed byte) (btcutil.Address, []byte) {
	t.Helper()

	var pkHash [20]byte
	for i := range pkHash {
		pkHash[i] = seed
	}
	addr, err := btcutil.NewAddressPubKeyHash(pkHash[:], chainParams)
	require.NoError(t, err)

	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	return addr, pkScript
}

// keyedAddress generates a fresh key pair and returns the matching
// pay-to-pubkey-hash address, its output script, and a signature script
// that resolves back to the address.  The signature itself is a dummy;
// the store never validates scripts.
func keyedAddress(t *testing.T) (btcutil.Address, []byte, []byte) {
	t.Helper()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubKey := privKey.PubKey().SerializeCompressed()

	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pubKey), chainParams,
	)
	require.NoError(t, err)

	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	sigScript, err := txscript.NewScriptBuilder().
		AddData(make([]byte, 71)).
		AddData(pubKey).
		Script()
	require.NoError(t, err)

	return addr, pkScript, sigScript
}

// newTx builds a transaction spending the given outpoints with the
// given signature script on every input, paying the given outputs.
func newTx(prevOuts []wire.OutPoint, sigScript []byte,
	outs ...*wire.TxOut) *wire.MsgTx {

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, prevOut := range prevOuts {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: prevOut,
			SignatureScript:  sigScript,
			Sequence:         wire.MaxTxInSequenceNum,
		})
	}
	for _, out := range outs {
		tx.AddTxOut(out)
	}
	return tx
}

// fakeOutPoint makes a unique previous outpoint from a one-byte seed,
// for funding transactions whose ancestors are outside the store.
func fakeOutPoint(seed byte) wire.OutPoint {
	var op wire.OutPoint
	for i := range op.Hash {
		op.Hash[i] = seed
	}
	return op
}

// assertInvariants checks the store's malleation invariants, which must
// hold after every public mutation.
func assertInvariants(t *testing.T, s *Store) {
	t.Helper()

	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, rec := range s.rows {
		// A confirmed record has a real height unless it inherited
		// confirmation from a malleated sibling.
		if rec.State == StateConfirmed {
			require.True(t, rec.BlockHeight > 0 || rec.Malleated,
				"confirmed %v has height %d and is not "+
					"malleated", rec.Hash, rec.BlockHeight)
		}

		// No unconfirmed record may claim a direct confirmation.
		if rec.State == StateUnconfirmed {
			require.False(t, rec.MasterConfirm,
				"unconfirmed %v has master confirm", rec.Hash)
		}

		masters := 0
		for _, sibling := range s.ntxidLookupAll(&rec.NormalizedHash) {
			if sibling.MasterConfirm {
				masters++

				// Every sibling of a master must share its
				// confirmation.
				require.Equal(t, StateConfirmed, rec.State)
				require.Equal(t, sibling.BlockHeight,
					rec.BlockHeight)
			}

			// Malleated variants must all be marked malleated.
			if sibling.Hash != rec.Hash {
				require.True(t, rec.Malleated)
				require.True(t, sibling.Malleated)
			}
		}
		require.LessOrEqual(t, masters, 1,
			"multiple master confirms for ntxid %v",
			rec.NormalizedHash)
	}
}
