package utxo

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"
	"github.com/kaspanet/go-muhash"
	"github.com/pkg/errors"

	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/domain/consensus/utils/serialization"
)

// Entry houses details about an individual transaction output in a utxo
// viewpoint, such as whether or not it was contained in a coinbase or
// coinstake transaction, the block it was created in, and its amount.
type Entry struct {
	amount       btcutil.Amount
	scriptPubKey []byte
	blockHeight  uint64
	blockTime    int64
	isCoinBase   bool
	isCoinStake  bool
}

// NewEntry returns a utxo entry for the given output details.
func NewEntry(amount btcutil.Amount, scriptPubKey []byte, blockHeight uint64,
	blockTime int64, isCoinBase bool, isCoinStake bool) *Entry {

	return &Entry{
		amount:       amount,
		scriptPubKey: scriptPubKey,
		blockHeight:  blockHeight,
		blockTime:    blockTime,
		isCoinBase:   isCoinBase,
		isCoinStake:  isCoinStake,
	}
}

// Amount returns the amount of the output.
func (entry *Entry) Amount() btcutil.Amount {
	return entry.amount
}

// ScriptPubKey returns the public key script for the output.
func (entry *Entry) ScriptPubKey() []byte {
	return entry.scriptPubKey
}

// BlockHeight returns the height of the block containing the output.
func (entry *Entry) BlockHeight() uint64 {
	return entry.blockHeight
}

// BlockTime returns the header timestamp of the block containing the
// output.
func (entry *Entry) BlockTime() int64 {
	return entry.blockTime
}

// IsCoinBase reports whether the output was contained in a coinbase
// transaction.
func (entry *Entry) IsCoinBase() bool {
	return entry.isCoinBase
}

// IsCoinStake reports whether the output was contained in a coinstake
// transaction.
func (entry *Entry) IsCoinStake() bool {
	return entry.isCoinStake
}

func serializeEntry(outpoint *model.Outpoint, entry *Entry) ([]byte, error) {
	w := &bytes.Buffer{}
	err := serialization.WriteElements(w, &outpoint.TxID, outpoint.Index,
		uint64(entry.amount), entry.blockHeight, entry.blockTime,
		entry.isCoinBase, entry.isCoinStake)
	if err != nil {
		return nil, err
	}
	_, err = w.Write(entry.scriptPubKey)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return w.Bytes(), nil
}

// Viewpoint represents a view into the set of unspent transaction outputs
// from the perspective of a particular chain tip. It maintains an ECMH
// multiset over its contents so that two viewpoints can be compared by a
// single commitment hash.
type Viewpoint struct {
	entries  map[model.Outpoint]*Entry
	multiset *muhash.MuHash
}

// NewViewpoint returns an empty utxo viewpoint.
func NewViewpoint() *Viewpoint {
	return &Viewpoint{
		entries:  make(map[model.Outpoint]*Entry),
		multiset: muhash.NewMuHash(),
	}
}

// LookupEntry returns information about a given transaction output, or nil
// when the output is not part of the view.
func (view *Viewpoint) LookupEntry(outpoint model.Outpoint) *Entry {
	return view.entries[outpoint]
}

// AddEntry adds the given output to the view and folds it into the
// commitment.
func (view *Viewpoint) AddEntry(outpoint model.Outpoint, entry *Entry) error {
	serialized, err := serializeEntry(&outpoint, entry)
	if err != nil {
		return err
	}
	if existing, ok := view.entries[outpoint]; ok {
		existingSerialized, err := serializeEntry(&outpoint, existing)
		if err != nil {
			return err
		}
		view.multiset.Remove(existingSerialized)
	}
	view.entries[outpoint] = entry
	view.multiset.Add(serialized)
	return nil
}

// RemoveEntry removes the given output from the view and the commitment.
// Removing an output the view does not contain is an error.
func (view *Viewpoint) RemoveEntry(outpoint model.Outpoint) error {
	entry, ok := view.entries[outpoint]
	if !ok {
		return errors.Errorf("output %s:%d is not in the view",
			outpoint.TxID, outpoint.Index)
	}
	serialized, err := serializeEntry(&outpoint, entry)
	if err != nil {
		return err
	}
	view.multiset.Remove(serialized)
	delete(view.entries, outpoint)
	return nil
}

// Len returns the number of outputs in the view.
func (view *Viewpoint) Len() int {
	return len(view.entries)
}

// Commitment returns the ECMH hash of the current contents of the view.
func (view *Viewpoint) Commitment() *chainhash.Hash {
	finalized := view.multiset.Finalize()
	var hash chainhash.Hash
	copy(hash[:], finalized[:])
	return &hash
}

// Clone returns a deep copy of the view sharing no state with the
// original.
func (view *Viewpoint) Clone() *Viewpoint {
	clone := &Viewpoint{
		entries:  make(map[model.Outpoint]*Entry, len(view.entries)),
		multiset: view.multiset.Clone(),
	}
	for outpoint, entry := range view.entries {
		clone.entries[outpoint] = entry
	}
	return clone
}
