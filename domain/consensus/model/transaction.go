package model

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"
)

// Outpoint identifies a transaction output by the transaction ID that
// created it and the output index within that transaction.
type Outpoint struct {
	TxID  chainhash.Hash
	Index uint32
}

// TxInput spends an existing output.
type TxInput struct {
	PreviousOutpoint Outpoint
	SignatureScript  []byte
	Sequence         uint32
}

// TxOutput creates a new spendable output.
type TxOutput struct {
	Value        btcutil.Amount
	ScriptPubKey []byte
}

// Transaction is the subset of a transaction the consensus core needs for
// coinstake validation and coin-age computation. Script interpretation and
// witness data live outside this core.
type Transaction struct {
	Version  uint32
	Inputs   []*TxInput
	Outputs  []*TxOutput
	LockTime uint32
}

// TxID returns the double-SHA256 identifier of the transaction's
// serialized form.
func (tx *Transaction) TxID() chainhash.Hash {
	buf := &bytes.Buffer{}
	writeUint32 := func(v uint32) {
		var scratch [4]byte
		binary.LittleEndian.PutUint32(scratch[:], v)
		buf.Write(scratch[:])
	}
	writeVarBytes := func(b []byte) {
		var scratch [8]byte
		binary.LittleEndian.PutUint64(scratch[:], uint64(len(b)))
		buf.Write(scratch[:])
		buf.Write(b)
	}

	writeUint32(tx.Version)
	writeUint32(uint32(len(tx.Inputs)))
	for _, input := range tx.Inputs {
		buf.Write(input.PreviousOutpoint.TxID[:])
		writeUint32(input.PreviousOutpoint.Index)
		writeVarBytes(input.SignatureScript)
		writeUint32(input.Sequence)
	}
	writeUint32(uint32(len(tx.Outputs)))
	for _, output := range tx.Outputs {
		var scratch [8]byte
		binary.LittleEndian.PutUint64(scratch[:], uint64(output.Value))
		buf.Write(scratch[:])
		writeVarBytes(output.ScriptPubKey)
	}
	writeUint32(tx.LockTime)
	return chainhash.DoubleHashH(buf.Bytes())
}

// IsCoinBase reports whether the transaction is a coinbase: a single input
// spending the null outpoint.
func (tx *Transaction) IsCoinBase() bool {
	if len(tx.Inputs) != 1 {
		return false
	}
	prevout := &tx.Inputs[0].PreviousOutpoint
	return prevout.Index == math.MaxUint32 && prevout.TxID == chainhash.Hash{}
}

// IsCoinStake reports whether the transaction is a coinstake: at least one
// real input and an empty marker first output followed by the stake payout.
func (tx *Transaction) IsCoinStake() bool {
	if tx.IsCoinBase() || len(tx.Inputs) == 0 || len(tx.Outputs) < 2 {
		return false
	}
	first := tx.Outputs[0]
	return first.Value == 0 && len(first.ScriptPubKey) == 0
}
