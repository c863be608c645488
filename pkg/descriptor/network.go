package descriptor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network identifies the bitcoin network a policy is built for.
type Network string

const (
	Bitcoin Network = "bitcoin"
	Testnet Network = "testnet"
	Signet  Network = "signet"
	Regtest Network = "regtest"
)

var (
	networkParams = map[Network]*chaincfg.Params{
		Bitcoin: &chaincfg.MainNetParams,
		Testnet: &chaincfg.TestNet3Params,
		Signet:  &chaincfg.SigNetParams,
		Regtest: &chaincfg.RegressionNetParams,
	}
	networkAliases = map[string]Network{
		"mainnet": Bitcoin,
		"main":    Bitcoin,
		"test":    Testnet,
	}
)

// ParseNetwork returns the network with the given name.
func ParseNetwork(name string) (Network, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if net, ok := networkAliases[name]; ok {
		return net, nil
	}
	net := Network(name)
	if !net.IsValid() {
		return "", fmt.Errorf("%w %q, must be one of: %s", ErrUnknownNetwork, name, Networks())
	}
	return net, nil
}

// Networks returns the names of the supported networks.
func Networks() []string {
	names := make([]string, 0, len(networkParams))
	for net := range networkParams {
		names = append(names, string(net))
	}
	sort.Strings(names)
	return names
}

func (n Network) IsValid() bool {
	_, ok := networkParams[n]
	return ok
}

// Params returns the chain params of the network.
func (n Network) Params() *chaincfg.Params {
	return networkParams[n]
}

// KeyParams returns the params holding the HD version bytes that extended
// keys of this network are tagged with. Every test network shares the
// testnet ones.
func (n Network) KeyParams() *chaincfg.Params {
	if n == Bitcoin {
		return &chaincfg.MainNetParams
	}
	return &chaincfg.TestNet3Params
}

// CoinType returns the coin type used in derivation paths.
func (n Network) CoinType() uint32 {
	if n == Bitcoin {
		return 0
	}
	return 1
}

func (n Network) String() string {
	return string(n)
}
