package path

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

const (
	// PolicyPurpose is the purpose of the standard multisig policy scheme
	// (m/48'/coin'/account'/script_type').
	PolicyPurpose = 48
	// PolicyScriptType is the script type of native segwit multisig keys.
	PolicyScriptType = 2

	// MaxAccountIndex is the highest hardened account index.
	MaxAccountIndex = hdkeychain.HardenedKeyStart - 1
)

// DerivationPath is the data structure representing an HD path.
type DerivationPath []uint32

// ParseDerivationPath converts a derivation path in string format to a
// DerivationPath type.
// The path must have at least 2 components, ie. "m/0" or "0/0".
func ParseDerivationPath(strPath string) (DerivationPath, error) {
	path, err := parseDerivationPath(strPath, false)
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, ErrMalformedDerivationPath
	}
	return path, nil
}

// ParseAbsoluteDerivationPath parses a path that must start with "m/".
func ParseAbsoluteDerivationPath(strPath string) (DerivationPath, error) {
	return parseDerivationPath(strPath, true)
}

// ParseOriginPath parses the derivation steps of a key origin, as they
// appear after the fingerprint, ie. "48'/1'/0'/2'". An empty string is a
// valid (empty) origin path.
func ParseOriginPath(strPath string) (DerivationPath, error) {
	if strings.TrimSpace(strPath) == "" {
		return DerivationPath{}, nil
	}
	path := make(DerivationPath, 0)
	for _, elem := range strings.Split(strPath, "/") {
		if elem == "" {
			return nil, ErrMalformedDerivationPath
		}
		step, err := parseStep(elem)
		if err != nil {
			return nil, err
		}
		path = append(path, step)
	}
	return path, nil
}

// StandardPolicyPath returns the path m/48'/coin'/account'/2' where account
// is an already hardened child number.
func StandardPolicyPath(coinType, account uint32) DerivationPath {
	return DerivationPath{
		Hardened(PolicyPurpose),
		Hardened(coinType),
		account,
		Hardened(PolicyScriptType),
	}
}

// Hardened returns the hardened child number for the given index.
func Hardened(index uint32) uint32 {
	return index + hdkeychain.HardenedKeyStart
}

// IsHardened returns whether the given child number is hardened.
func IsHardened(step uint32) bool {
	return step >= hdkeychain.HardenedKeyStart
}

// PolicyAccount returns the account child number of a path following the
// standard policy scheme. The second return value is false if the path is
// not long enough or does not start with the 48' purpose.
func (path DerivationPath) PolicyAccount() (uint32, bool) {
	if len(path) < 4 || path[0] != Hardened(PolicyPurpose) {
		return 0, false
	}
	return path[2], true
}

// Equal returns whether the two paths have the same steps.
func (path DerivationPath) Equal(other DerivationPath) bool {
	if len(path) != len(other) {
		return false
	}
	for i := range path {
		if path[i] != other[i] {
			return false
		}
	}
	return true
}

func (path DerivationPath) String() string {
	if len(path) <= 0 {
		return ""
	}
	return "m" + path.Steps()
}

// Steps returns the path without the leading "m", ie. "/48'/1'/0'/2'", in
// the form used inside key origins.
func (path DerivationPath) Steps() string {
	var sb strings.Builder
	for _, component := range path {
		sb.WriteString("/")
		sb.WriteString(StepString(component))
	}
	return sb.String()
}

// StepString formats a single child number.
func StepString(step uint32) string {
	if IsHardened(step) {
		return fmt.Sprintf("%d'", step-hdkeychain.HardenedKeyStart)
	}
	return fmt.Sprintf("%d", step)
}

func parseDerivationPath(
	strPath string, checkAbsolutePath bool,
) (DerivationPath, error) {
	if strPath == "" {
		return nil, ErrMissingDerivationPath
	}

	elems := strings.Split(strPath, "/")
	if containsEmptyString(elems) {
		return nil, ErrMalformedDerivationPath
	}
	if checkAbsolutePath {
		if strings.TrimSpace(elems[0]) != "m" {
			return nil, ErrRequiredAbsoluteDerivationPath
		}
	}
	if len(elems) < 2 {
		return nil, ErrMalformedDerivationPath
	}
	if strings.TrimSpace(elems[0]) == "m" {
		elems = elems[1:]
	}

	path := make(DerivationPath, 0, len(elems))
	for _, elem := range elems {
		value, err := parseStep(elem)
		if err != nil {
			return nil, err
		}
		path = append(path, value)
	}

	return path, nil
}

// parseStep accepts both ' and h as hardened markers. The index must be
// written in plain decimal digits, without sign or leading zeros.
func parseStep(elem string) (uint32, error) {
	elem = strings.TrimSpace(elem)
	var value uint32

	if strings.HasSuffix(elem, "'") || strings.HasSuffix(elem, "h") {
		value = hdkeychain.HardenedKeyStart
		elem = strings.TrimSpace(elem[:len(elem)-1])
	}

	if !isDecimal(elem) {
		return 0, fmt.Errorf("%w '%s'", ErrInvalidPathStep, elem)
	}
	index, err := strconv.ParseUint(elem, 10, 31)
	if err != nil {
		return 0, fmt.Errorf(
			"%w: elem %s must be in range [0, %d]",
			ErrInvalidPathStep, elem, MaxAccountIndex,
		)
	}
	return value + uint32(index), nil
}

func isDecimal(elem string) bool {
	if elem == "" || (len(elem) > 1 && elem[0] == '0') {
		return false
	}
	for _, c := range elem {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func containsEmptyString(composedPath []string) bool {
	for _, s := range composedPath {
		if s == "" {
			return true
		}
	}
	return false
}
