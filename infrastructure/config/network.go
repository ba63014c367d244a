package config

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/xepnet/xepd/domain/chainconfig"
)

// NetworkFlags holds the network configuration, that is which network is
// selected.
type NetworkFlags struct {
	Testnet bool `long:"testnet" description:"Use the test network"`
	Signet  bool `long:"signet" description:"Use the signet test network"`
	Regtest bool `long:"regtest" description:"Use the regression test network"`

	ActiveNetParams *chainconfig.Params
}

// ResolveNetwork parses the network command line arguments and sets
// ActiveNetParams accordingly. It returns an error if more than one network
// was selected, nil otherwise.
func (networkFlags *NetworkFlags) ResolveNetwork(parser *flags.Parser) error {
	// The default network is mainnet. Multiple networks can't be selected
	// simultaneously.
	networkFlags.ActiveNetParams = &chainconfig.MainnetParams
	numNets := 0
	if networkFlags.Testnet {
		numNets++
		networkFlags.ActiveNetParams = &chainconfig.TestnetParams
	}
	if networkFlags.Signet {
		numNets++
		networkFlags.ActiveNetParams = &chainconfig.SignetParams
	}
	if networkFlags.Regtest {
		numNets++
		networkFlags.ActiveNetParams = &chainconfig.RegressionNetParams
	}
	if numNets > 1 {
		message := "Multiple network parameters (testnet, signet, regtest) " +
			"cannot be used together. Please choose only one network"
		err := errors.Errorf(message)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return err
	}
	return nil
}

// NetParams returns the ActiveNetParams.
func (networkFlags *NetworkFlags) NetParams() *chainconfig.Params {
	return networkFlags.ActiveNetParams
}
