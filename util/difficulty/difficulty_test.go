// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package difficulty

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func TestCompactRoundTrip(t *testing.T) {
	tests := []uint32{
		0x1d00ffff,
		0x1e00ffff,
		0x1e0377ae,
		0x207fffff,
		0x1b0404cb,
		0x04123456,
		0x03123456,
		0x02008000,
	}

	for _, compact := range tests {
		n := CompactToBig(compact)
		if got := BigToCompact(n); got != compact {
			t.Errorf("round trip %#08x: got %#08x", compact, got)
		}
	}
}

func TestCompactToBigWithFlags(t *testing.T) {
	tests := []struct {
		name     string
		compact  uint32
		negative bool
		overflow bool
		zero     bool
	}{
		{name: "mainnet limit", compact: 0x1e00ffff},
		{name: "sign bit set", compact: 0x1e800001, negative: true},
		{name: "exponent overflow", compact: 0xff00ffff, overflow: true},
		{name: "zero mantissa", compact: 0x1e000000, zero: true},
		{name: "small positive", compact: 0x03123456},
	}

	for _, test := range tests {
		n, negative, overflow := CompactToBigWithFlags(test.compact)
		if negative != test.negative {
			t.Errorf("%s: negative = %v, want %v", test.name,
				negative, test.negative)
		}
		if overflow != test.overflow {
			t.Errorf("%s: overflow = %v, want %v", test.name,
				overflow, test.overflow)
		}
		if test.zero && n.Sign() != 0 {
			t.Errorf("%s: got nonzero value %v", test.name, n)
		}
	}
}

func TestBigToCompactRounded(t *testing.T) {
	tests := []struct {
		name string
		n    *big.Int
		want uint32
	}{
		{
			name: "discarded byte below half truncates",
			n:    big.NewInt(0x12345601),
			want: 0x04123456,
		},
		{
			name: "discarded byte at half rounds up",
			n:    big.NewInt(0x12345680),
			want: 0x04123457,
		},
		{
			name: "rounding carry renormalizes the exponent",
			n:    big.NewInt(0xffffff80),
			want: 0x05010000,
		},
		{
			name: "rounding into the sign bit renormalizes",
			n:    big.NewInt(0x7fffffc0),
			want: 0x05008000,
		},
		{
			name: "three bytes or fewer discards nothing",
			n:    big.NewInt(0x1234),
			want: 0x02123400,
		},
		{
			name: "zero",
			n:    big.NewInt(0),
			want: 0,
		},
	}

	for _, test := range tests {
		if got := BigToCompactRounded(test.n); got != test.want {
			t.Errorf("%s: got %#08x, want %#08x", test.name, got, test.want)
		}
	}

	// Truncation and rounding agree when the discarded bytes are below
	// the rounding threshold.
	n := new(big.Int).Lsh(big.NewInt(0x00ffff), 216)
	if truncated, rounded := BigToCompact(n), BigToCompactRounded(n); truncated != rounded {
		t.Errorf("limit target: truncated %#08x != rounded %#08x",
			truncated, rounded)
	}
}

func TestCalcWork(t *testing.T) {
	// The regression test network target is 2^255 minus change, so two
	// hashes are expected per block.
	if got := CalcWork(0x207fffff); got.Cmp(big.NewInt(2)) != 0 {
		t.Errorf("regtest work: got %v, want 2", got)
	}

	// A lower target means more work.
	easier := CalcWork(0x1e00ffff)
	harder := CalcWork(0x1d00ffff)
	if harder.Cmp(easier) <= 0 {
		t.Errorf("work ordering: %v should exceed %v", harder, easier)
	}

	// Negative difficulty values carry no work.
	if got := CalcWork(0x1e800001); got.Sign() != 0 {
		t.Errorf("negative target work: got %v, want 0", got)
	}
}

func TestHashToBig(t *testing.T) {
	var hash chainhash.Hash
	hash[0] = 0x12
	if got := HashToBig(&hash); got.Cmp(big.NewInt(0x12)) != 0 {
		t.Errorf("low byte: got %v, want 0x12", got)
	}

	hash = chainhash.Hash{}
	hash[31] = 0x01
	want := new(big.Int).Lsh(big.NewInt(1), 248)
	if got := HashToBig(&hash); got.Cmp(want) != 0 {
		t.Errorf("high byte: got %v, want %v", got, want)
	}
}
