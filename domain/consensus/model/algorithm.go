package model

// AlgoType identifies which of the two block-validation tracks a block
// belongs to. It is encoded in the top three bits of the block header
// version field.
type AlgoType int

const (
	// AlgoPoS is the proof-of-stake track.
	AlgoPoS AlgoType = 0

	// AlgoPoWSHA256 is the SHA256d proof-of-work track.
	AlgoPoWSHA256 AlgoType = 1

	// AlgoCount is the number of defined algorithm tracks.
	AlgoCount AlgoType = 2

	// AlgoUnknown marks a header whose version bits carry no recognized
	// algorithm, e.g. a pre-fork version. Retarget math maps it to a
	// proof-type walk instead of an algorithm walk.
	AlgoUnknown AlgoType = -1
)

// Version-field encoding of the algorithm tracks.
const (
	versionAlgoPoS       uint32 = 1 << 29
	versionAlgoPoWSHA256 uint32 = 2 << 29
	versionAlgoMask      uint32 = 7 << 29
	versionAlgoPoWMask   uint32 = 6 << 29

	// firstForkVersion is the lowest header version that carries
	// algorithm bits. Headers below it predate the version-bits fork and
	// declare their proof type through the nonce instead.
	firstForkVersion uint32 = 5
)

// GetAlgoType decodes the algorithm track from a block header version.
func GetAlgoType(version uint32) AlgoType {
	switch version & versionAlgoMask {
	case versionAlgoPoS:
		return AlgoPoS
	case versionAlgoPoWSHA256:
		return AlgoPoWSHA256
	}
	return AlgoUnknown
}

// AlgoFlag returns the version bits that encode the given algorithm track.
func AlgoFlag(algo AlgoType) uint32 {
	switch algo {
	case AlgoPoS:
		return versionAlgoPoS
	case AlgoPoWSHA256:
		return versionAlgoPoWSHA256
	}
	return versionAlgoPoWSHA256
}

// String returns the algorithm track name for logging purposes.
func (algo AlgoType) String() string {
	switch algo {
	case AlgoPoS:
		return "PoS"
	case AlgoPoWSHA256:
		return "PoW-SHA256"
	}
	return "Unknown"
}
