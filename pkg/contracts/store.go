// Package contracts is a read-only registry of known program addresses,
// specified at its interface only by spec §1 ("Contract registry
// (read-only lookup of known program addresses)"). It is adapted
// directly from the Rust original's contract_store.rs.
package contracts

import (
	"context"
	"strings"
)

// Contract is one known program entry.
type Contract struct {
	Name    string
	Address string
	ChainID int64
}

// Store is the read-only contract registry capability.
type Store interface {
	GetByAddress(ctx context.Context, address string) (*Contract, error)
	GetByName(ctx context.Context, name string, chainID int64) (*Contract, error)
	ListAddressesForChain(ctx context.Context, chainID int64) ([]string, error)
	ListContracts(ctx context.Context) ([]Contract, error)
}

// InMemoryStore is a fixed in-memory Store, built once at construction.
type InMemoryStore struct {
	contracts []Contract
}

// NewInMemoryStore builds a Store over a fixed contract list.
func NewInMemoryStore(contracts []Contract) *InMemoryStore {
	return &InMemoryStore{contracts: contracts}
}

func (s *InMemoryStore) GetByAddress(_ context.Context, address string) (*Contract, error) {
	addressLower := strings.ToLower(address)
	for _, c := range s.contracts {
		if strings.ToLower(c.Address) == addressLower {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetByName(_ context.Context, name string, chainID int64) (*Contract, error) {
	for _, c := range s.contracts {
		if strings.EqualFold(c.Name, name) && c.ChainID == chainID {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) ListAddressesForChain(_ context.Context, chainID int64) ([]string, error) {
	var addresses []string
	for _, c := range s.contracts {
		if c.ChainID == chainID {
			addresses = append(addresses, c.Address)
		}
	}
	return addresses, nil
}

func (s *InMemoryStore) ListContracts(_ context.Context) ([]Contract, error) {
	out := make([]Contract, len(s.contracts))
	copy(out, s.contracts)
	return out, nil
}
