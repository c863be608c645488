package domain

import (
	"github.com/vulpemventures/vault/pkg/descriptor"
)

// Branch identifies one of the two spending paths of a policy.
type Branch int

const (
	// Primary keys can spend at any time.
	Primary Branch = iota
	// Recovery keys can spend only after the timelock expired.
	Recovery
)

var branchNames = map[Branch]string{
	Primary:  "primary",
	Recovery: "recovery",
}

func (b Branch) String() string {
	if name, ok := branchNames[b]; ok {
		return name
	}
	return "unknown"
}

func (b Branch) isValid() bool {
	_, ok := branchNames[b]
	return ok
}

// KeySlot is a named, possibly empty, placeholder for a key of a branch.
type KeySlot struct {
	Alias         string
	Key           *descriptor.Key
	NetworkValid  bool
	DuplicateKey  bool
	DuplicateName bool
}

func newKeySlot() KeySlot {
	return KeySlot{NetworkValid: true}
}

// IsPopulated returns whether a key has been imported into the slot.
func (s KeySlot) IsPopulated() bool {
	return s.Key != nil
}

// Fingerprint returns the master fingerprint of the slot key, if any.
func (s KeySlot) Fingerprint() (descriptor.Fingerprint, bool) {
	if s.Key == nil {
		return descriptor.Fingerprint{}, false
	}
	return s.Key.MasterFingerprint(), true
}

// IsValid returns whether the slot is populated and not flagged.
func (s KeySlot) IsValid() bool {
	return s.IsPopulated() && s.NetworkValid && !s.DuplicateKey && !s.DuplicateName
}

func (s *KeySlot) checkNetwork(network descriptor.Network) {
	if s.Key != nil {
		s.NetworkValid = s.Key.IsForNetwork(network)
	}
}

// KeySet is the ordered list of slots of a branch together with the number
// of signatures required among them.
type KeySet struct {
	Slots     []KeySlot
	Threshold int
}

// PopulatedKeys returns the keys of the populated slots, in order.
func (s KeySet) PopulatedKeys() []*descriptor.Key {
	keys := make([]*descriptor.Key, 0, len(s.Slots))
	for _, slot := range s.Slots {
		if slot.IsPopulated() {
			keys = append(keys, slot.Key)
		}
	}
	return keys
}

func (s KeySet) copy() KeySet {
	return KeySet{
		Slots:     append([]KeySlot{}, s.Slots...),
		Threshold: s.Threshold,
	}
}
