package application

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vulpemventures/vault/internal/core/domain"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

// PolicyContext is the input of an assembly, rebuilt from the registry on
// every attempt.
type PolicyContext struct {
	Network      descriptor.Network
	NetworkValid bool
	Primary      domain.KeySet
	Recovery     domain.KeySet
	Timelock     string
	// SignerFingerprint is the fingerprint of the software signer, if any.
	SignerFingerprint *descriptor.Fingerprint
}

// Assembly is the result of a successful assembly.
type Assembly struct {
	Descriptor *descriptor.Descriptor
	Keys       []KeySetting
	// SignerUsed tells whether a key of the software signer is part of the
	// descriptor.
	SignerUsed bool
}

// Assemble turns the key sets and the timelock into a descriptor. Errors are
// of type *AssemblyError.
func Assemble(pctx PolicyContext) (*Assembly, error) {
	assembly, err := assemble(pctx)
	if err != nil {
		descriptorAssemblies.WithLabelValues(resultFailure).Inc()
		return nil, err
	}
	descriptorAssemblies.WithLabelValues(resultSuccess).Inc()
	return assembly, nil
}

func assemble(pctx PolicyContext) (*Assembly, error) {
	timelock, err := parseTimelock(pctx.Timelock)
	if err != nil {
		return nil, &AssemblyError{ValidationError, "timelock", err}
	}
	if !pctx.NetworkValid {
		return nil, &AssemblyError{ValidationError, "network", ErrNetworkDatadirExists}
	}

	sets := []struct {
		branch domain.Branch
		set    domain.KeySet
	}{
		{domain.Primary, pctx.Primary},
		{domain.Recovery, pctx.Recovery},
	}

	keys := make([]KeySetting, 0)
	signerUsed := false
	policies := make([]*descriptor.KeysPolicy, 0, len(sets))

	for _, s := range sets {
		multipathKeys := make([]*descriptor.Key, 0, len(s.set.Slots))
		for _, slot := range s.set.Slots {
			if !slot.IsPopulated() {
				continue
			}
			if !slot.Key.IsForNetwork(pctx.Network) {
				return nil, &AssemblyError{
					ValidationError, s.branch.String(),
					fmt.Errorf("%w: %s", ErrKeyNetworkMismatch, slot.Alias),
				}
			}
			fingerprint := slot.Key.MasterFingerprint()
			if slot.Key.Origin() != nil {
				keys = append(keys, KeySetting{fingerprint, slot.Alias})
				if pctx.SignerFingerprint != nil && *pctx.SignerFingerprint == fingerprint {
					signerUsed = true
				}
			}
			multipathKeys = append(
				multipathKeys,
				slot.Key.Multipath(descriptor.ReceiveBranch, descriptor.ChangeBranch),
			)
		}

		if len(multipathKeys) <= 0 {
			return nil, &AssemblyError{ValidationError, s.branch.String(), ErrEmptyKeySet}
		}

		policy, err := newPolicy(s.branch, s.set.Threshold, multipathKeys)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}

	desc, err := descriptor.New(policies[0], policies[1], timelock)
	if err != nil {
		return nil, &AssemblyError{Kind: CompileError, Err: err}
	}

	return &Assembly{desc, keys, signerUsed}, nil
}

func newPolicy(
	branch domain.Branch, threshold int, keys []*descriptor.Key,
) (*descriptor.KeysPolicy, error) {
	if len(keys) == 1 {
		policy, err := descriptor.NewSingleKeyPolicy(keys[0])
		if err != nil {
			return nil, &AssemblyError{PolicyError, branch.String(), err}
		}
		return policy, nil
	}

	if threshold < 1 || threshold > len(keys) {
		return nil, &AssemblyError{
			ValidationError, fmt.Sprintf("%s threshold", branch),
			descriptor.ErrInvalidThreshold,
		}
	}
	policy, err := descriptor.NewMultiKeyPolicy(threshold, keys)
	if err != nil {
		return nil, &AssemblyError{PolicyError, branch.String(), err}
	}
	return policy, nil
}

func parseTimelock(text string) (uint16, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrInvalidTimelock
	}
	timelock, err := strconv.ParseUint(text, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTimelock, text)
	}
	return uint16(timelock), nil
}
