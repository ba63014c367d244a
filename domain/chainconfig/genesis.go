// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainconfig

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"

	"github.com/xepnet/xepd/domain/consensus/model"
)

// genesisTime is the timestamp shared by every network's genesis block.
const genesisTime = 1609246800

// newHashFromStr converts the passed big-endian hex string into a
// chainhash.Hash. It only differs from the one available in chainhash in
// that it panics on an error since it will only be called with hard-coded,
// and therefore known good, hashes.
func newHashFromStr(hexStr string) chainhash.Hash {
	hash, err := chainhash.NewHashFromStr(hexStr)
	if err != nil {
		panic(err)
	}
	return *hash
}

// genesisMerkleRoot is the hash of the premine transactions of the genesis
// block shared by the main and test networks.
var genesisMerkleRoot = newHashFromStr("951ef417a7e31855adad366ad777b3a4608a7f50679baa54e81a28904097a26f")

// genesisHeader is the first block header of the main and test networks.
var genesisHeader = model.BlockHeader{
	Version:    1,
	PrevBlock:  chainhash.Hash{},
	MerkleRoot: genesisMerkleRoot,
	Timestamp:  genesisTime,
	Bits:       0x1e00ffff,
	Nonce:      10543997,
}

// genesisHash is the block identifier of genesisHeader.
var genesisHash = newHashFromStr("000000954c02f260a6db02c712557adcb5a7a8a0a9acfd3d3c2b3a427376c56f")

// signetGenesisMerkleRoot is the merkle root of the signet genesis block.
var signetGenesisMerkleRoot = newHashFromStr("31583424f19f97bb2987c57ae2a826e9772cea828f367e99875261eaa82d60ad")

// signetGenesisHeader is the first block header of the signet network. The
// lower proof-of-work ceiling gives signet a distinct genesis solution.
var signetGenesisHeader = model.BlockHeader{
	Version:    1,
	PrevBlock:  chainhash.Hash{},
	MerkleRoot: signetGenesisMerkleRoot,
	Timestamp:  genesisTime,
	Bits:       0x1e0377ae,
	Nonce:      2078674,
}

// signetGenesisHash is the block identifier of signetGenesisHeader.
var signetGenesisHash = newHashFromStr("000000b6e751fad208e0e1d39c83e3fe896482bf039699c724df5deec6e8d30b")

// regressionGenesisMerkleRoot is the merkle root of the regression test
// network genesis block.
var regressionGenesisMerkleRoot = newHashFromStr("74d37252db3a2e1960cb4d62da34954ab26d39e431a8b77afe3dd31d8ddc96b3")

// regressionGenesisHeader is the first block header of the regression test
// network.
var regressionGenesisHeader = model.BlockHeader{
	Version:    1,
	PrevBlock:  chainhash.Hash{},
	MerkleRoot: regressionGenesisMerkleRoot,
	Timestamp:  genesisTime,
	Bits:       0x207fffff,
	Nonce:      14201,
}

// regressionGenesisHash is the block identifier of regressionGenesisHeader.
var regressionGenesisHash = newHashFromStr("00005c7509dcd261eea59d1cbe054f8ad6adb0b783ea4169d22ddba5b3fc6b50")


// genesisCoinbaseOutputs are the premine outputs of the genesis coinbase
// transaction, identical on every network. The genesis block holds a single
// transaction, so its id is the header's merkle root.
var genesisCoinbaseOutputs = []model.TxOutput{
	{
		Value:        27000000000 * btcutil.SatoshiPerBitcoin,
		ScriptPubKey: []byte{
			0x00, 0x14, 0xb7, 0xab, 0x61, 0xf3, 0xf8, 0xf3,
			0x6f, 0x98, 0x17, 0x7a, 0xee, 0x6e, 0xe0, 0xb5,
			0xb0, 0x51, 0xa9, 0xe5, 0x34, 0x71,
		},
	},
	{
		Value:        1500000000 * btcutil.SatoshiPerBitcoin,
		ScriptPubKey: []byte{
			0x00, 0x14, 0x97, 0x8a, 0x50, 0x64, 0xcd, 0x1f,
			0xdf, 0x8c, 0x25, 0x10, 0xfe, 0x3f, 0xcb, 0xd6,
			0x5e, 0xaa, 0x5e, 0x98, 0xb3, 0x2d,
		},
	},
	{
		Value:        500000000 * btcutil.SatoshiPerBitcoin,
		ScriptPubKey: []byte{
			0x00, 0x14, 0xc6, 0x4f, 0xc6, 0x77, 0x7d, 0xcf,
			0xfc, 0x02, 0x7e, 0xbc, 0xfc, 0x80, 0xd4, 0xa9,
			0x1b, 0x73, 0x04, 0xcf, 0x79, 0x8d,
		},
	},
	{
		Value:        500000000 * btcutil.SatoshiPerBitcoin,
		ScriptPubKey: []byte{
			0x00, 0x14, 0x45, 0x36, 0xe9, 0x05, 0xb8, 0xc5,
			0xbb, 0xc1, 0x63, 0x13, 0x7f, 0xed, 0x4c, 0xde,
			0x7d, 0x12, 0xf0, 0xde, 0x01, 0x0f,
		},
	},
	{
		Value:        500000000 * btcutil.SatoshiPerBitcoin,
		ScriptPubKey: []byte{
			0x00, 0x14, 0x54, 0x17, 0xa5, 0x51, 0xf0, 0x98,
			0x9b, 0x8a, 0x3b, 0x00, 0x25, 0x76, 0x45, 0xcb,
			0x1e, 0x3d, 0x28, 0x84, 0xca, 0x64,
		},
	},
}

// GenesisCoinbaseOutputs returns the premine outputs of the network's
// genesis block.
func (p *Params) GenesisCoinbaseOutputs() []model.TxOutput {
	return genesisCoinbaseOutputs
}
