package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"rollupd/internal/crypto"
)

var ErrUnknownPubkey = errors.New("pubkey id is not registered")

// Registry maps the pubkey ids stored in ledger accounts to the BLS public
// keys registered for them on the settlement layer.
type Registry struct {
	mu   sync.RWMutex
	keys map[uint32]crypto.PublicKey
}

func NewRegistry() *Registry {
	return &Registry{keys: make(map[uint32]crypto.PublicKey)}
}

// LoadRegistry reads a JSON file of the form
//
//	{"pubkeys": {"<pubkey id>": "<hex G2 point>", ...}}
//
// A flat {"<id>": "<hex>"} object is accepted as well.
func LoadRegistry(fs afero.Fs, path string) (*Registry, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read pubkey registry: %w", err)
	}
	var wrapped struct {
		Pubkeys map[string]string `json:"pubkeys"`
	}
	entries := map[string]string{}
	if err := json.Unmarshal(b, &wrapped); err == nil && wrapped.Pubkeys != nil {
		entries = wrapped.Pubkeys
	} else if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse pubkey registry %s: %w", path, err)
	}

	r := NewRegistry()
	for k, v := range entries {
		id, err := strconv.ParseUint(strings.TrimSpace(k), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("pubkey registry: bad id %q: %w", k, err)
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(v), "0x"))
		if err != nil {
			return nil, fmt.Errorf("pubkey registry: id %d: %w", id, err)
		}
		pk, err := crypto.PublicKeyFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("pubkey registry: id %d: %w", id, err)
		}
		r.Register(uint32(id), pk)
	}
	return r, nil
}

func (r *Registry) Register(id uint32, pk crypto.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[id] = pk
}

func (r *Registry) Lookup(id uint32) (crypto.PublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pk, ok := r.keys[id]
	if !ok {
		return crypto.PublicKey{}, fmt.Errorf("%w: %d", ErrUnknownPubkey, id)
	}
	return pk, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}
