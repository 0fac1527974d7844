package types

import (
	"encoding/json"
	"fmt"
)

// Network identifies one of the two Pi blockchain instances. The JSON form is
// the network passphrase, which is what the Pi Platform API reports in the
// "network" field of a payment.
type Network int

const (
	// NetworkUnset is the zero value; it resolves to the testnet wherever a
	// concrete network is required.
	NetworkUnset Network = iota
	NetworkPiMainnet
	NetworkPiTestnet
)

// networkInfo holds the fixed data associated with a network.
type networkInfo struct {
	Name       string
	Passphrase string
	HorizonURL string
}

var networks = map[Network]networkInfo{
	NetworkPiMainnet: {
		Name:       "mainnet",
		Passphrase: "Pi Network",
		HorizonURL: "https://api.mainnet.minepi.com",
	},
	NetworkPiTestnet: {
		Name:       "testnet",
		Passphrase: "Pi Testnet",
		HorizonURL: "https://api.testnet.minepi.com",
	},
}

// Resolve returns the network itself, or the testnet when unset.
func (n Network) Resolve() Network {
	if n == NetworkUnset {
		return NetworkPiTestnet
	}
	return n
}

// Passphrase returns the string that scopes signatures to this network.
func (n Network) Passphrase() string {
	return networks[n.Resolve()].Passphrase
}

// HorizonURL returns the ledger gateway host for this network.
func (n Network) HorizonURL() string {
	return networks[n.Resolve()].HorizonURL
}

func (n Network) IsValid() bool {
	_, ok := networks[n]
	return ok
}

func (n Network) String() string {
	if info, ok := networks[n]; ok {
		return info.Name
	}
	return "unset"
}

// ParseNetwork accepts either the short name ("mainnet", "testnet") or the
// passphrase ("Pi Network", "Pi Testnet"). The empty string is NetworkUnset.
func ParseNetwork(s string) (Network, error) {
	if s == "" {
		return NetworkUnset, nil
	}
	for n, info := range networks {
		if s == info.Name || s == info.Passphrase {
			return n, nil
		}
	}
	return NetworkUnset, &PiError{
		Code:    CodeUnsupportedNetwork,
		Message: fmt.Sprintf("unsupported network: %s", s),
	}
}

func (n Network) MarshalJSON() ([]byte, error) {
	if n == NetworkUnset {
		return []byte(`""`), nil
	}
	if !n.IsValid() {
		return nil, fmt.Errorf("cannot marshal network %d", int(n))
	}
	return json.Marshal(networks[n].Passphrase)
}

func (n *Network) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseNetwork(s)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
