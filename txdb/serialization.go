// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txdb

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Serialized database constants.
const (
	// oldSerialMagic is the header of the serialization format written
	// by older wallets.  The format is no longer readable and loading
	// it produces a distinguishable error so the caller can trigger a
	// rescan.
	oldSerialMagic uint32 = 0x3eab61c3

	// serialMagic is the header of the current serialization format.
	serialMagic uint32 = 0xfecdb763

	// serialTx tags a transaction record in the serialized database.
	serialTx byte = 0x42
)

// byteOrder is the byte order used to read and write serialized
// databases.
var byteOrder = binary.LittleEndian

// Serialize encodes the store as a byte slice suitable for Load.
// Unconfirmed transactions that have not been observed for longer than
// the store's unconfirmed timeout are silently dropped from the
// encoding; they remain in the live store until the next Load.
func (s *Store) Serialize() []byte {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var buf bytes.Buffer
	var b8 [8]byte

	byteOrder.PutUint32(b8[:4], serialMagic)
	buf.Write(b8[:4])

	byteOrder.PutUint64(b8[:], uint64(s.lastHeight))
	buf.Write(b8[:])

	now := time.Now()
	for hash, rec := range s.rows {
		// Don't save old unconfirmed transactions.
		if rec.State == StateUnconfirmed &&
			rec.Received.Add(s.unconfirmedTimeout).Before(now) {

			log.Debugf("Purging stale unconfirmed transaction "+
				"%v", hash)
			continue
		}

		// Unconfirmed records smuggle their received time through
		// the height slot, since they have no height of their own.
		height := rec.BlockHeight
		if rec.State == StateUnconfirmed {
			height = rec.Received.Unix()
		}

		buf.WriteByte(serialTx)
		buf.Write(hash[:])

		// Writing to a bytes.Buffer cannot fail.
		_ = rec.MsgTx.Serialize(&buf)

		buf.WriteByte(byte(rec.State))
		byteOrder.PutUint64(b8[:], uint64(height))
		buf.Write(b8[:])
		buf.WriteByte(boolByte(rec.NeedsCheck))
		buf.Write(rec.Hash[:])
		buf.Write(rec.NormalizedHash[:])
		buf.WriteByte(boolByte(rec.Malleated))
		buf.WriteByte(boolByte(rec.MasterConfirm))
	}

	return buf.Bytes()
}

// Load decodes a serialized database, atomically replacing the store's
// transactions and recorded chain height on success.  Failures leave
// the store unmodified and carry the ErrParse code; the caller should
// discard the data and continue with the store it has.
func (s *Store) Load(data []byte) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	r := bytes.NewReader(data)
	var b8 [8]byte

	// Header bytes.
	if err := readOrTruncated(r, b8[:4]); err != nil {
		return err
	}
	magic := byteOrder.Uint32(b8[:4])
	if magic != serialMagic {
		if magic == oldSerialMagic {
			return storeError(ErrParse,
				"outdated transaction database format", nil)
		}
		return storeError(ErrParse,
			"unknown transaction database header", nil)
	}

	// Last block height.
	if err := readOrTruncated(r, b8[:]); err != nil {
		return err
	}
	lastHeight := int64(byteOrder.Uint64(b8[:]))

	rows := make(map[chainhash.Hash]*TxRecord)
	now := time.Now()
	for r.Len() > 0 {
		tag, _ := r.ReadByte()
		if tag != serialTx {
			return storeError(ErrParse,
				"unknown entry in transaction database", nil)
		}

		var hash chainhash.Hash
		if err := readOrTruncated(r, hash[:]); err != nil {
			return err
		}

		rec := &TxRecord{}
		if err := rec.MsgTx.Deserialize(r); err != nil {
			return storeError(ErrParse,
				"truncated transaction database", err)
		}

		state, err := r.ReadByte()
		if err != nil {
			return storeError(ErrParse,
				"truncated transaction database", err)
		}
		rec.State = TxState(state)

		if err := readOrTruncated(r, b8[:]); err != nil {
			return err
		}
		height := int64(byteOrder.Uint64(b8[:]))

		// The height slot of an unconfirmed record holds its
		// received time instead of a height.
		rec.Received = now
		if rec.State == StateUnconfirmed {
			rec.Received = time.Unix(height, 0)
		} else {
			rec.BlockHeight = height
		}

		var flags [1 + chainhash.HashSize*2 + 2]byte
		if err := readOrTruncated(r, flags[:]); err != nil {
			return err
		}
		rec.NeedsCheck = flags[0] != 0
		copy(rec.Hash[:], flags[1:1+chainhash.HashSize])
		copy(rec.NormalizedHash[:], flags[1+chainhash.HashSize:])
		rec.Malleated = flags[len(flags)-2] != 0
		rec.MasterConfirm = flags[len(flags)-1] != 0

		rows[hash] = rec
	}

	s.lastHeight = lastHeight
	s.rows = rows
	log.Infof("Loaded transaction database at height %d", lastHeight)
	return nil
}

// readOrTruncated fills buf from r, converting any short read into the
// truncated database parse error.
func readOrTruncated(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return storeError(ErrParse,
			"truncated transaction database", err)
	}
	return nil
}

// boolByte returns the serialized form of a bool flag.
func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
