package tester

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blockberries/rtcore/crypto"
	"github.com/blockberries/rtcore/modules/balances"
	"github.com/blockberries/rtcore/types"
)

// Genesis is the chain spec of a tester chain. Accounts are SS58
// addresses or 0x-prefixed hex.
//
//	balances:
//	  - account: <address>
//	    free: 1000000000
//	babe:
//	  - id: <address>
//	grandpa:
//	  - id: <address>
//	sudo: <address>
type Genesis struct {
	Balances []GenesisBalance   `yaml:"balances"`
	Babe     []GenesisAuthority `yaml:"babe"`
	Grandpa  []GenesisAuthority `yaml:"grandpa"`
	Sudo     string             `yaml:"sudo"`
}

type GenesisBalance struct {
	Account string `yaml:"account"`
	Free    uint64 `yaml:"free"`
}

// GenesisAuthority is a genesis authority. A zero weight counts as 1.
type GenesisAuthority struct {
	ID     string `yaml:"id"`
	Weight uint64 `yaml:"weight"`
}

// ParseGenesis decodes a YAML chain spec. Unknown fields are errors.
func ParseGenesis(data []byte) (Genesis, error) {
	var g Genesis
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return Genesis{}, fmt.Errorf("tester: parse chain spec: %w", err)
	}
	if _, err := g.resolve(); err != nil {
		return Genesis{}, err
	}
	return g, nil
}

// LoadGenesis reads and parses the chain spec at path.
func LoadGenesis(path string) (Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, fmt.Errorf("tester: read chain spec: %w", err)
	}
	return ParseGenesis(data)
}

// Marshal renders g as YAML.
func (g Genesis) Marshal() ([]byte, error) {
	return yaml.Marshal(g)
}

// DevGenesis endows the Alice and Bob development accounts and makes
// Alice the only authority and the sudo key.
func DevGenesis() Genesis {
	alice := crypto.Dev("Alice").Account().String()
	bob := crypto.Dev("Bob").Account().String()
	return Genesis{
		Balances: []GenesisBalance{
			{Account: alice, Free: 1 << 60},
			{Account: bob, Free: 1 << 60},
		},
		Babe:    []GenesisAuthority{{ID: alice, Weight: 1}},
		Grandpa: []GenesisAuthority{{ID: alice, Weight: 1}},
		Sudo:    alice,
	}
}

type resolved struct {
	balances []balances.GenesisAccount
	babe     []types.Authority
	grandpa  []types.Authority
	sudo     types.AccountID
}

func (g Genesis) resolve() (resolved, error) {
	var r resolved
	for _, b := range g.Balances {
		who, err := types.ParseAccountID(b.Account)
		if err != nil {
			return r, fmt.Errorf("tester: balance account %q: %w", b.Account, err)
		}
		r.balances = append(r.balances, balances.GenesisAccount{Who: who, Free: types.Balance(b.Free)})
	}
	var err error
	if r.babe, err = authorities("babe", g.Babe); err != nil {
		return r, err
	}
	if r.grandpa, err = authorities("grandpa", g.Grandpa); err != nil {
		return r, err
	}
	if g.Sudo == "" {
		return r, errors.New("tester: chain spec has no sudo key")
	}
	if r.sudo, err = types.ParseAccountID(g.Sudo); err != nil {
		return r, fmt.Errorf("tester: sudo key: %w", err)
	}
	return r, nil
}

func authorities(engine string, in []GenesisAuthority) ([]types.Authority, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("tester: chain spec has no %s authorities", engine)
	}
	out := make([]types.Authority, 0, len(in))
	for _, a := range in {
		id, err := types.ParseAccountID(a.ID)
		if err != nil {
			return nil, fmt.Errorf("tester: %s authority %q: %w", engine, a.ID, err)
		}
		w := a.Weight
		if w == 0 {
			w = 1
		}
		out = append(out, types.Authority{ID: types.AuthorityID(id), Weight: w})
	}
	return out, nil
}
