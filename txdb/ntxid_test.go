// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// TestNormalizedTxHash ensures the normalized hash ignores input
// scripts and witnesses but tracks everything else.
func TestNormalizedTxHash(t *testing.T) {
	t.Parallel()

	_, pkScript := p2pkhAddress(t, 0x01)
	prevOut := fakeOutPoint(0x02)

	base := newTx(
		[]wire.OutPoint{prevOut}, nil, wire.NewTxOut(100, pkScript),
	)

	// Signature script changes must not affect the normalized hash.
	signed := newTx(
		[]wire.OutPoint{prevOut}, []byte{txscript.OP_1},
		wire.NewTxOut(100, pkScript),
	)
	require.NotEqual(t, base.TxHash(), signed.TxHash())
	require.Equal(t, NormalizedTxHash(base), NormalizedTxHash(signed))

	// Witness data must not affect it either.
	witnessed := newTx(
		[]wire.OutPoint{prevOut}, nil, wire.NewTxOut(100, pkScript),
	)
	witnessed.TxIn[0].Witness = wire.TxWitness{{0x01, 0x02}}
	require.Equal(t, NormalizedTxHash(base), NormalizedTxHash(witnessed))

	// Output changes land in the normalized hash.
	other := newTx(
		[]wire.OutPoint{prevOut}, nil, wire.NewTxOut(200, pkScript),
	)
	require.NotEqual(t, NormalizedTxHash(base), NormalizedTxHash(other))

	// Normalizing must not mutate the original transaction.
	require.Equal(t, []byte{txscript.OP_1},
		signed.TxIn[0].SignatureScript)
}
