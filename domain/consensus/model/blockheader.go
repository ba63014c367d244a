package model

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// BlockHeaderSize is the serialized size of a block header in bytes:
// version 4 + previous hash 32 + merkle root 32 + time 4 + bits 4 + nonce 4.
const BlockHeaderSize = 80

// BlockHeader defines information about a block. The serialized layout is
// consensus-visible and must match the network's wire format exactly.
type BlockHeader struct {
	// Version of the block. The top three bits carry the algorithm tag.
	Version uint32

	// PrevBlock is the hash of the previous block header in the chain.
	PrevBlock chainhash.Hash

	// MerkleRoot is the merkle tree reference to the block's transactions.
	MerkleRoot chainhash.Hash

	// Timestamp is the block time in Unix seconds.
	Timestamp uint32

	// Bits is the compact form of the target the block claims to satisfy.
	Bits uint32

	// Nonce is the proof-of-work nonce. Proof-of-stake blocks carry zero.
	Nonce uint32
}

// Algo returns the algorithm track declared by the header version bits.
func (h *BlockHeader) Algo() AlgoType {
	return GetAlgoType(h.Version)
}

// IsProofOfStake reports whether the header declares the proof-of-stake
// track. Headers that predate the version-bits fork are recognized by their
// zero nonce.
func (h *BlockHeader) IsProofOfStake() bool {
	return h.Version&versionAlgoMask == versionAlgoPoS ||
		(h.Version < firstForkVersion && h.Nonce == 0)
}

// IsProofOfWork reports whether the header declares any proof-of-work track.
func (h *BlockHeader) IsProofOfWork() bool {
	return h.Version&versionAlgoPoWMask != 0 ||
		(h.Version < firstForkVersion && h.Nonce != 0)
}

// Serialize writes the 80-byte wire representation of the header.
func (h *BlockHeader) Serialize(w io.Writer) error {
	var buf [BlockHeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.Version)
	copy(buf[4:36], h.PrevBlock[:])
	copy(buf[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(buf[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[72:76], h.Bits)
	binary.LittleEndian.PutUint32(buf[76:80], h.Nonce)
	_, err := w.Write(buf[:])
	return err
}

// Deserialize reads the 80-byte wire representation of the header.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	var buf [BlockHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	h.Version = binary.LittleEndian.Uint32(buf[0:4])
	copy(h.PrevBlock[:], buf[4:36])
	copy(h.MerkleRoot[:], buf[36:68])
	h.Timestamp = binary.LittleEndian.Uint32(buf[68:72])
	h.Bits = binary.LittleEndian.Uint32(buf[72:76])
	h.Nonce = binary.LittleEndian.Uint32(buf[76:80])
	return nil
}

// BlockHash computes the block identifier, the double-SHA256 of the
// serialized header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	buf := bytes.NewBuffer(make([]byte, 0, BlockHeaderSize))
	_ = h.Serialize(buf)
	return chainhash.DoubleHashH(buf.Bytes())
}
