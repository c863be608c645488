package domain

import (
	"fmt"

	path "github.com/vulpemventures/vault/pkg/derivation-path"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

var (
	ErrMaxAccountIndexReached = fmt.Errorf("reached max account index for fingerprint")
)

// AccountIndexes maps a master fingerprint to the highest hardened account
// child number already used by a key with that fingerprint.
type AccountIndexes map[descriptor.Fingerprint]uint32

// Aliases maps a master fingerprint to the name given to its keys.
type Aliases map[descriptor.Fingerprint]string

// Registry holds the primary and recovery key slots of a policy under
// construction. Mutations never fail: invalid states are reported through
// the slot flags.
type Registry struct {
	network descriptor.Network
	sets    map[Branch]*KeySet
}

// NewRegistry returns a registry with one empty slot and threshold 1 for
// each branch.
func NewRegistry(network descriptor.Network) *Registry {
	return &Registry{
		network: network,
		sets: map[Branch]*KeySet{
			Primary:  {Slots: []KeySlot{newKeySlot()}, Threshold: 1},
			Recovery: {Slots: []KeySlot{newKeySlot()}, Threshold: 1},
		},
	}
}

func (r *Registry) Network() descriptor.Network {
	return r.network
}

// KeySet returns a copy of the key set of the given branch.
func (r *Registry) KeySet(branch Branch) KeySet {
	set, ok := r.sets[branch]
	if !ok {
		return KeySet{}
	}
	return set.copy()
}

// Slot returns a copy of the i-th slot of the branch.
func (r *Registry) Slot(branch Branch, i int) (KeySlot, bool) {
	set, ok := r.sets[branch]
	if !ok || i < 0 || i >= len(set.Slots) {
		return KeySlot{}, false
	}
	return set.Slots[i], true
}

// AddSlot appends an empty slot to the branch and raises its threshold.
func (r *Registry) AddSlot(branch Branch) {
	set, ok := r.sets[branch]
	if !ok {
		return
	}
	set.Slots = append(set.Slots, newKeySlot())
	set.Threshold++
}

// RemoveSlot deletes the i-th slot of the branch. The threshold is lowered
// if it exceeds the new number of slots.
func (r *Registry) RemoveSlot(branch Branch, i int) {
	set, ok := r.sets[branch]
	if !ok || i < 0 || i >= len(set.Slots) {
		return
	}
	set.Slots = append(set.Slots[:i], set.Slots[i+1:]...)
	if set.Threshold > len(set.Slots) {
		set.Threshold--
	}
	r.checkForDuplicates()
}

// SetKey populates the i-th slot of the branch. The alias is also given to
// every other slot holding a key with the same master fingerprint.
func (r *Registry) SetKey(branch Branch, i int, alias string, key *descriptor.Key) {
	set, ok := r.sets[branch]
	if !ok || i < 0 || i >= len(set.Slots) || key == nil {
		return
	}

	r.propagateAlias(alias, key.MasterFingerprint())

	slot := &set.Slots[i]
	slot.Alias = alias
	slot.Key = key
	slot.checkNetwork(r.network)

	r.checkForDuplicates()
}

// SetThreshold sets the threshold of the branch. Values out of the range
// [1, number of slots] are accepted and rejected at assembly time.
func (r *Registry) SetThreshold(branch Branch, threshold int) {
	if set, ok := r.sets[branch]; ok {
		set.Threshold = threshold
	}
}

// SetNetwork changes the active network and revalidates every slot.
func (r *Registry) SetNetwork(network descriptor.Network) {
	r.network = network
	for _, branch := range []Branch{Primary, Recovery} {
		set := r.sets[branch]
		for i := range set.Slots {
			set.Slots[i].checkNetwork(network)
		}
	}
}

// AccountIndexes scans every populated slot and returns the highest account
// child number used by each fingerprint at the m/48'/coin'/account'/2'
// depth.
func (r *Registry) AccountIndexes() AccountIndexes {
	indexes := make(AccountIndexes)
	r.forEachSlot(func(_ Branch, slot *KeySlot) {
		if slot.Key == nil {
			return
		}
		origin := slot.Key.Origin()
		if origin == nil {
			return
		}
		account, ok := origin.Path.PolicyAccount()
		if !ok {
			return
		}
		if prev, ok := indexes[origin.Fingerprint]; !ok || account > prev {
			indexes[origin.Fingerprint] = account
		}
	})
	return indexes
}

// NextAccountIndex returns the hardened account child number to use for a
// new key with the given fingerprint.
func (r *Registry) NextAccountIndex(fingerprint descriptor.Fingerprint) (uint32, error) {
	return r.AccountIndexes().Next(fingerprint)
}

// Next returns the account after the highest one used by the fingerprint,
// or 0' if it's unknown.
func (a AccountIndexes) Next(fingerprint descriptor.Fingerprint) (uint32, error) {
	index, ok := a[fingerprint]
	if !ok {
		return path.Hardened(0), nil
	}
	if path.IsHardened(index) {
		index -= path.Hardened(0)
	}
	if index >= path.MaxAccountIndex {
		return 0, ErrMaxAccountIndexReached
	}
	return path.Hardened(index + 1), nil
}

// Aliases returns the name of every fingerprint known to the registry. On
// conflict the last slot, in primary then recovery order, wins.
func (r *Registry) Aliases() Aliases {
	aliases := make(Aliases)
	r.forEachSlot(func(_ Branch, slot *KeySlot) {
		if fingerprint, ok := slot.Fingerprint(); ok {
			aliases[fingerprint] = slot.Alias
		}
	})
	return aliases
}

func (r *Registry) propagateAlias(alias string, fingerprint descriptor.Fingerprint) {
	r.forEachSlot(func(_ Branch, slot *KeySlot) {
		if fp, ok := slot.Fingerprint(); ok && fp == fingerprint {
			slot.Alias = alias
		}
	})
}

// checkForDuplicates flags slots sharing the exact same key, and slots
// sharing an alias while holding keys of different fingerprints.
func (r *Registry) checkForDuplicates() {
	keys := make(map[string]bool)
	duplicateKeys := make(map[string]bool)
	names := make(map[string]descriptor.Fingerprint)
	duplicateNames := make(map[string]bool)

	r.forEachSlot(func(_ Branch, slot *KeySlot) {
		if slot.Key == nil {
			return
		}
		fingerprint := slot.Key.MasterFingerprint()
		if fp, ok := names[slot.Alias]; ok {
			if fp != fingerprint {
				duplicateNames[slot.Alias] = true
			}
		} else {
			names[slot.Alias] = fingerprint
		}

		key := slot.Key.String()
		if keys[key] {
			duplicateKeys[key] = true
		} else {
			keys[key] = true
		}
	})

	r.forEachSlot(func(_ Branch, slot *KeySlot) {
		slot.DuplicateName = duplicateNames[slot.Alias]
		if slot.Key != nil {
			slot.DuplicateKey = duplicateKeys[slot.Key.String()]
		}
	})
}

func (r *Registry) forEachSlot(fn func(Branch, *KeySlot)) {
	for _, branch := range []Branch{Primary, Recovery} {
		set := r.sets[branch]
		for i := range set.Slots {
			fn(branch, &set.Slots[i])
		}
	}
}
