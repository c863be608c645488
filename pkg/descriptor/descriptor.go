package descriptor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// MaxWitnessScriptSize is the standardness limit of a P2WSH script.
	MaxWitnessScriptSize = 3600
	// MaxOpsPerScript is the consensus limit of non-push opcodes.
	MaxOpsPerScript = 201

	ReceiveBranch = 0
	ChangeBranch  = 1
)

// Descriptor is a P2WSH descriptor spendable by the primary policy at any
// time, or by the recovery policy once the coins are timelock blocks old:
//
//	wsh(or_d(P,and_v(v:R,older(timelock))))
//
// All keys are multipath (<0;1>/*) so that a single descriptor describes
// both the receive and the change addresses.
type Descriptor struct {
	primary  *KeysPolicy
	recovery *KeysPolicy
	timelock uint16
}

// New compiles the given policies into a descriptor.
func New(primary, recovery *KeysPolicy, timelock uint16) (*Descriptor, error) {
	if primary == nil || recovery == nil {
		return nil, ErrMissingPolicy
	}
	if timelock == 0 {
		return nil, ErrInvalidTimelock
	}
	desc := &Descriptor{primary, recovery, timelock}
	if err := desc.validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

// Parse parses a descriptor string, with or without checksum.
func Parse(str string) (*Descriptor, error) {
	body, err := splitChecksum(strings.TrimSpace(str))
	if err != nil {
		return nil, err
	}

	wsh, err := parseFragment(body, "wsh", 1)
	if err != nil {
		return nil, err
	}
	ord, err := parseFragment(wsh.args[0], "or_d", 2)
	if err != nil {
		return nil, err
	}
	primary, err := parsePolicy(ord.args[0], "pk", "multi")
	if err != nil {
		return nil, err
	}
	andv, err := parseFragment(ord.args[1], "and_v", 2)
	if err != nil {
		return nil, err
	}
	recovery, err := parsePolicy(andv.args[0], "v:pkh", "v:multi")
	if err != nil {
		return nil, err
	}
	older, err := parseFragment(andv.args[1], "older", 1)
	if err != nil {
		return nil, err
	}
	timelock, err := strconv.ParseUint(older.args[0], 10, 16)
	if err != nil {
		return nil, ErrInvalidTimelock
	}

	return New(primary, recovery, uint16(timelock))
}

func (d *Descriptor) Primary() *KeysPolicy {
	return d.primary
}

func (d *Descriptor) Recovery() *KeysPolicy {
	return d.recovery
}

// Timelock returns the relative timelock, in blocks, of the recovery path.
func (d *Descriptor) Timelock() uint16 {
	return d.timelock
}

// Keys returns the primary keys followed by the recovery ones.
func (d *Descriptor) Keys() []*Key {
	return append(d.primary.Keys(), d.recovery.keys...)
}

// IsMainnet returns whether the descriptor keys are mainnet keys.
func (d *Descriptor) IsMainnet() bool {
	return d.primary.keys[0].isMainnet()
}

// IsForNetwork returns whether the descriptor keys belong to the network.
func (d *Descriptor) IsForNetwork(net Network) bool {
	return d.primary.keys[0].IsForNetwork(net)
}

// String returns the multipath descriptor with checksum.
func (d *Descriptor) String() string {
	return withChecksum(d.body(d.primary.keys, d.recovery.keys))
}

// ReceiveDescriptor returns the single path descriptor of the receive
// addresses.
func (d *Descriptor) ReceiveDescriptor() string {
	return d.singlePath(ReceiveBranch)
}

// ChangeDescriptor returns the single path descriptor of the change
// addresses.
func (d *Descriptor) ChangeDescriptor() string {
	return d.singlePath(ChangeBranch)
}

// WitnessScript returns the witness script at the given derivation index.
func (d *Descriptor) WitnessScript(change bool, index uint32) ([]byte, error) {
	return d.witnessScript(branchOf(change), index)
}

// Address returns the P2WSH address at the given derivation index.
func (d *Descriptor) Address(
	net Network, change bool, index uint32,
) (string, error) {
	params := net.Params()
	if params == nil {
		return "", ErrUnknownNetwork
	}
	if !d.IsForNetwork(net) {
		return "", fmt.Errorf("%w: descriptor keys are not for %s", ErrMixedNetworks, net)
	}
	script, err := d.WitnessScript(change, index)
	if err != nil {
		return "", err
	}
	addr, err := btcutil.NewAddressWitnessScriptHash(
		chainhash.HashB(script), params,
	)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func (d *Descriptor) validate() error {
	keys := d.Keys()
	mainnet := keys[0].isMainnet()
	seen := make(map[string]bool)
	for _, key := range keys {
		if !key.IsMultipath() {
			return fmt.Errorf("%w: %s", ErrKeyNotMultipath, key)
		}
		if seen[key.id()] {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		}
		seen[key.id()] = true
		if key.isMainnet() != mainnet {
			return ErrMixedNetworks
		}
	}

	for _, branch := range []int{ReceiveBranch, ChangeBranch} {
		script, err := d.witnessScript(branch, 0)
		if err != nil {
			return err
		}
		if len(script) > MaxWitnessScriptSize {
			return ErrScriptTooLarge
		}
		ops, err := countOps(script)
		if err != nil {
			return err
		}
		if !d.primary.IsSingleKey() {
			ops += len(d.primary.keys)
		}
		if !d.recovery.IsSingleKey() {
			ops += len(d.recovery.keys)
		}
		if ops > MaxOpsPerScript {
			return ErrTooManyOps
		}
	}
	return nil
}

func (d *Descriptor) body(primary, recovery []*Key) string {
	return fmt.Sprintf(
		"wsh(or_d(%s,and_v(v:%s,older(%d))))",
		d.primary.fragment("pk", primary),
		d.recovery.fragment("pkh", recovery),
		d.timelock,
	)
}

func (d *Descriptor) singlePath(branch int) string {
	primary, _ := branchKeys(d.primary.keys, branch)
	recovery, _ := branchKeys(d.recovery.keys, branch)
	return withChecksum(d.body(primary, recovery))
}

func branchKeys(keys []*Key, branch int) ([]*Key, error) {
	branched := make([]*Key, 0, len(keys))
	for _, key := range keys {
		k, err := key.Branch(branch)
		if err != nil {
			return nil, err
		}
		branched = append(branched, k)
	}
	return branched, nil
}

func branchOf(change bool) int {
	if change {
		return ChangeBranch
	}
	return ReceiveBranch
}

// withChecksum is used on strings made of keys and fragment names only,
// all in the checksum input charset.
func withChecksum(desc string) string {
	str, _ := AddChecksum(desc)
	return str
}

type fragment struct {
	name string
	args []string
}

func parseFragment(str, name string, numOfArgs int) (*fragment, error) {
	open := strings.Index(str, "(")
	if open <= 0 || !strings.HasSuffix(str, ")") {
		return nil, fmt.Errorf("%w: expected %s(), got %q", ErrInvalidDescriptor, name, str)
	}
	frag := &fragment{name: str[:open]}
	if name != "" && frag.name != name {
		return nil, fmt.Errorf(
			"%w: expected %s(), got %s()", ErrInvalidDescriptor, name, frag.name,
		)
	}
	args, err := splitArgs(str[open+1 : len(str)-1])
	if err != nil {
		return nil, err
	}
	if numOfArgs > 0 && len(args) != numOfArgs {
		return nil, fmt.Errorf(
			"%w: %s() takes %d arguments, got %d",
			ErrInvalidDescriptor, frag.name, numOfArgs, len(args),
		)
	}
	frag.args = args
	return frag, nil
}

func splitArgs(str string) ([]string, error) {
	args := make([]string, 0)
	depth, start := 0, 0
	for i, ch := range str {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced parentheses", ErrInvalidDescriptor)
			}
		case ',':
			if depth == 0 {
				args = append(args, str[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced parentheses", ErrInvalidDescriptor)
	}
	return append(args, str[start:]), nil
}

func parsePolicy(str, single, multi string) (*KeysPolicy, error) {
	frag, err := parseFragment(str, "", 0)
	if err != nil {
		return nil, err
	}

	switch frag.name {
	case single:
		if len(frag.args) != 1 {
			return nil, fmt.Errorf("%w: %s() takes 1 argument", ErrInvalidDescriptor, single)
		}
		key, err := ParseKey(frag.args[0])
		if err != nil {
			return nil, err
		}
		return NewSingleKeyPolicy(key)
	case multi:
		if len(frag.args) < 2 {
			return nil, fmt.Errorf("%w: %s() takes at least 2 arguments", ErrInvalidDescriptor, multi)
		}
		threshold, err := strconv.Atoi(frag.args[0])
		if err != nil {
			return nil, ErrInvalidThreshold
		}
		keys := make([]*Key, 0, len(frag.args)-1)
		for _, arg := range frag.args[1:] {
			key, err := ParseKey(arg)
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
		}
		return NewMultiKeyPolicy(threshold, keys)
	default:
		return nil, fmt.Errorf(
			"%w: expected %s() or %s(), got %s()",
			ErrInvalidDescriptor, single, multi, frag.name,
		)
	}
}
