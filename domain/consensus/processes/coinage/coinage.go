package coinage

import (
	"math/big"

	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"

	"github.com/xepnet/xepd/domain/chainconfig"
	"github.com/xepnet/xepd/domain/consensus/model"
	"github.com/xepnet/xepd/domain/consensus/utils/utxo"
)

const (
	coin = btcutil.SatoshiPerBitcoin
	cent = coin / 100

	secondsPerDay = 24 * 60 * 60
)

// ErrMissingInput is returned when an input of the coinstake transaction
// cannot be resolved in the utxo view. It indicates an inconsistent view,
// not an expected negative result, so the caller must treat it as fatal for
// the block being validated.
var ErrMissingInput = errors.New("transaction input not found in the utxo view")

// Calc returns the total coin age consumed by the inputs of a coinstake
// transaction in coin-days: each input contributes its value weighted by
// its age at txTime. Inputs younger than the minimum stake age contribute
// nothing and the age of any input is capped at the maximum stake age. The
// result sizes the proof-of-stake block subsidy.
//
// The summation runs in cent-seconds through a big integer so that large
// stakes held for the full age cap cannot overflow.
func Calc(tx *model.Transaction, view *utxo.Viewpoint, txTime int64,
	params *chainconfig.Params) (uint64, error) {

	if tx.IsCoinBase() {
		return 0, nil
	}

	centSeconds := big.NewInt(0)
	for _, input := range tx.Inputs {
		entry := view.LookupEntry(input.PreviousOutpoint)
		if entry == nil {
			return 0, errors.Wrapf(ErrMissingInput, "outpoint %s:%d",
				input.PreviousOutpoint.TxID, input.PreviousOutpoint.Index)
		}

		originTime := entry.BlockTime()
		if txTime < originTime {
			return 0, errors.Errorf("transaction timestamp %d precedes its "+
				"input's origin time %d", txTime, originTime)
		}
		if originTime+params.StakeMinAge > txTime {
			// Coins below the minimum age do not count. This helps nodes
			// establish a consistent coin age for competing branches.
			continue
		}

		age := txTime - originTime
		if age > params.StakeMaxAge {
			age = params.StakeMaxAge
		}

		contribution := new(big.Int).Mul(
			big.NewInt(int64(entry.Amount())), big.NewInt(age))
		contribution.Div(contribution, big.NewInt(cent))
		centSeconds.Add(centSeconds, contribution)
	}

	coinDays := centSeconds.Mul(centSeconds, big.NewInt(cent))
	coinDays.Div(coinDays, big.NewInt(coin*secondsPerDay))
	return coinDays.Uint64(), nil
}
