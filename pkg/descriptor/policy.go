package descriptor

import (
	"fmt"
)

const (
	// MaxKeysPerMulti is the max number of keys of a multi() fragment.
	MaxKeysPerMulti = 20
)

// KeysPolicy is either a single key or a k-of-n threshold of keys.
type KeysPolicy struct {
	threshold int
	keys      []*Key
}

// NewSingleKeyPolicy returns a policy satisfied by a signature of the given
// key.
func NewSingleKeyPolicy(key *Key) (*KeysPolicy, error) {
	if key == nil {
		return nil, ErrMissingKey
	}
	return &KeysPolicy{threshold: 1, keys: []*Key{key}}, nil
}

// NewMultiKeyPolicy returns a policy satisfied by threshold signatures among
// the given keys. Keys must be distinct.
func NewMultiKeyPolicy(threshold int, keys []*Key) (*KeysPolicy, error) {
	if len(keys) <= 0 {
		return nil, ErrMissingKeys
	}
	if len(keys) > MaxKeysPerMulti {
		return nil, ErrTooManyKeys
	}
	if threshold < 1 || threshold > len(keys) {
		return nil, ErrInvalidThreshold
	}
	seen := make(map[string]bool)
	for i, key := range keys {
		if key == nil {
			return nil, fmt.Errorf("%w at index %d", ErrMissingKey, i)
		}
		if seen[key.id()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		}
		seen[key.id()] = true
	}
	return &KeysPolicy{threshold, append([]*Key{}, keys...)}, nil
}

func (p *KeysPolicy) Threshold() int {
	return p.threshold
}

// Keys returns a copy of the policy keys.
func (p *KeysPolicy) Keys() []*Key {
	return append([]*Key{}, p.keys...)
}

// IsSingleKey returns whether the policy is a single key, rendered as pk()
// or pkh() rather than multi().
func (p *KeysPolicy) IsSingleKey() bool {
	return len(p.keys) == 1
}

// fragment renders the policy as a miniscript fragment, using single for the
// single key form.
func (p *KeysPolicy) fragment(single string, keys []*Key) string {
	if p.IsSingleKey() {
		return fmt.Sprintf("%s(%s)", single, keys[0])
	}
	str := fmt.Sprintf("multi(%d", p.threshold)
	for _, key := range keys {
		str += "," + key.String()
	}
	return str + ")"
}
