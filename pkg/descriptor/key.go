package descriptor

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	path "github.com/vulpemventures/vault/pkg/derivation-path"
)

// Fingerprint is the first 4 bytes of the hash160 of a master public key.
type Fingerprint [4]byte

// ParseFingerprint parses a fingerprint in hex format.
func ParseFingerprint(str string) (Fingerprint, error) {
	var fp Fingerprint
	buf, err := hex.DecodeString(strings.TrimSpace(str))
	if err != nil || len(buf) != len(fp) {
		return fp, ErrInvalidFingerprint
	}
	copy(fp[:], buf)
	return fp, nil
}

// FingerprintFromKey returns the fingerprint of the given extended key.
func FingerprintFromKey(xkey *hdkeychain.ExtendedKey) (Fingerprint, error) {
	var fp Fingerprint
	pubkey, err := xkey.ECPubKey()
	if err != nil {
		return fp, err
	}
	copy(fp[:], btcutil.Hash160(pubkey.SerializeCompressed())[:4])
	return fp, nil
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// KeyOrigin is the fingerprint of the master key and the path used to derive
// an extended key from it.
type KeyOrigin struct {
	Fingerprint Fingerprint
	Path        path.DerivationPath
}

func (o KeyOrigin) String() string {
	return fmt.Sprintf("[%s%s]", o.Fingerprint, o.Path.Steps())
}

// Key is an extended public key as it appears in a descriptor, with
// optional origin info, derivation steps, multipath step and wildcard:
//
//	[fingerprint/origin/path]xpub/steps/<0;1>/*
//
// Key is immutable.
type Key struct {
	origin      *KeyOrigin
	xkey        *hdkeychain.ExtendedKey
	encoded     string
	fingerprint Fingerprint
	steps       path.DerivationPath
	multi       []uint32
	wildcard    bool
}

// NewKey returns a key for the given extended public key and optional
// origin, without derivation steps.
func NewKey(origin *KeyOrigin, xkey *hdkeychain.ExtendedKey) (*Key, error) {
	if xkey == nil {
		return nil, ErrMissingKey
	}
	if xkey.IsPrivate() {
		return nil, ErrPrivateKey
	}
	fingerprint, err := FingerprintFromKey(xkey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}
	var o *KeyOrigin
	if origin != nil {
		o = &KeyOrigin{origin.Fingerprint, copyPath(origin.Path)}
		fingerprint = origin.Fingerprint
	}
	return &Key{
		origin:      o,
		xkey:        xkey,
		encoded:     xkey.String(),
		fingerprint: fingerprint,
	}, nil
}

// ParseKey parses a key in descriptor format.
func ParseKey(str string) (*Key, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return nil, ErrMissingKey
	}

	var origin *KeyOrigin
	if strings.HasPrefix(str, "[") {
		end := strings.Index(str, "]")
		if end < 0 {
			return nil, fmt.Errorf("%w: unclosed key origin", ErrInvalidKey)
		}
		o, err := parseKeyOrigin(str[1:end])
		if err != nil {
			return nil, err
		}
		origin = o
		str = str[end+1:]
	}

	elems := strings.Split(str, "/")
	xkey, err := hdkeychain.NewKeyFromString(elems[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}
	key, err := NewKey(origin, xkey)
	if err != nil {
		return nil, err
	}

	suffix := elems[1:]
	for i, elem := range suffix {
		last := i == len(suffix)-1
		switch {
		case elem == "*":
			if !last {
				return nil, fmt.Errorf("%w: wildcard must be the last step", ErrInvalidKey)
			}
			key.wildcard = true
		case elem == "*'" || elem == "*h":
			return nil, ErrHardenedDerivation
		case strings.HasPrefix(elem, "<"):
			if key.multi != nil {
				return nil, fmt.Errorf("%w: more than one multipath step", ErrInvalidKey)
			}
			multi, err := parseMultipath(elem)
			if err != nil {
				return nil, err
			}
			key.multi = multi
		case elem == "":
			return nil, fmt.Errorf("%w: empty derivation step", ErrInvalidKey)
		default:
			if key.multi != nil {
				return nil, fmt.Errorf(
					"%w: derivation steps after multipath step are not supported",
					ErrInvalidKey,
				)
			}
			step, err := path.ParseOriginPath(elem)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
			}
			if path.IsHardened(step[0]) {
				return nil, ErrHardenedDerivation
			}
			key.steps = append(key.steps, step[0])
		}
	}
	return key, nil
}

// Multipath returns a copy of the key with the <receive;change>/* suffix in
// place of any derivation step it had.
func (k *Key) Multipath(receive, change uint32) *Key {
	key := k.clone()
	key.steps = nil
	key.multi = []uint32{receive, change}
	key.wildcard = true
	return key
}

// Branch returns the single path key for the i-th alternative of the
// multipath step.
func (k *Key) Branch(i int) (*Key, error) {
	if i < 0 || i >= len(k.multi) {
		return nil, ErrInvalidBranchNumber
	}
	key := k.clone()
	key.steps = append(key.steps, k.multi[i])
	key.multi = nil
	return key, nil
}

// Derive returns the public key at the given index of a single path key.
// The index is ignored for keys without wildcard.
func (k *Key) Derive(index uint32) (*btcec.PublicKey, error) {
	if k.multi != nil {
		return nil, fmt.Errorf("%w: cannot derive from multipath key", ErrInvalidKey)
	}
	steps := copyPath(k.steps)
	if k.wildcard {
		if path.IsHardened(index) {
			return nil, ErrHardenedDerivation
		}
		steps = append(steps, index)
	}
	xkey := k.xkey
	for _, step := range steps {
		child, err := xkey.Derive(step)
		if err != nil {
			return nil, err
		}
		xkey = child
	}
	return xkey.ECPubKey()
}

// Origin returns a copy of the key origin, or nil.
func (k *Key) Origin() *KeyOrigin {
	if k.origin == nil {
		return nil
	}
	return &KeyOrigin{k.origin.Fingerprint, copyPath(k.origin.Path)}
}

// MasterFingerprint returns the origin fingerprint if any, otherwise the
// fingerprint of the extended key itself.
func (k *Key) MasterFingerprint() Fingerprint {
	return k.fingerprint
}

// ExtendedKey returns the base58 encoded extended public key.
func (k *Key) ExtendedKey() string {
	return k.encoded
}

// IsMultipath returns whether the key has a <receive;change> step and a
// wildcard, as required by descriptors.
func (k *Key) IsMultipath() bool {
	return len(k.multi) == 2 && k.multi[0] != k.multi[1] && k.wildcard
}

// IsSinglePath returns whether the key has no multipath step.
func (k *Key) IsSinglePath() bool {
	return k.multi == nil
}

// IsForNetwork returns whether the extended key version matches the given
// network.
func (k *Key) IsForNetwork(net Network) bool {
	params := net.KeyParams()
	if params == nil {
		return false
	}
	return k.xkey.IsForNet(params)
}

func (k *Key) isMainnet() bool {
	return k.IsForNetwork(Bitcoin)
}

// Equal returns whether the two keys have the same text representation.
func (k *Key) Equal(other *Key) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.String() == other.String()
}

func (k *Key) String() string {
	var sb strings.Builder
	if k.origin != nil {
		sb.WriteString(k.origin.String())
	}
	sb.WriteString(k.encoded)
	sb.WriteString(k.suffix())
	return sb.String()
}

// id identifies the public keys the key derives, regardless of origin info.
func (k *Key) id() string {
	return k.encoded + k.suffix()
}

func (k *Key) suffix() string {
	var sb strings.Builder
	sb.WriteString(k.steps.Steps())
	if k.multi != nil {
		alternatives := make([]string, 0, len(k.multi))
		for _, m := range k.multi {
			alternatives = append(alternatives, path.StepString(m))
		}
		sb.WriteString("/<" + strings.Join(alternatives, ";") + ">")
	}
	if k.wildcard {
		sb.WriteString("/*")
	}
	return sb.String()
}

func (k *Key) clone() *Key {
	key := *k
	key.origin = k.Origin()
	key.steps = copyPath(k.steps)
	if k.multi != nil {
		key.multi = append([]uint32{}, k.multi...)
	}
	return &key
}

func parseKeyOrigin(str string) (*KeyOrigin, error) {
	strFingerprint, strPath, _ := strings.Cut(str, "/")
	fingerprint, err := ParseFingerprint(strFingerprint)
	if err != nil {
		return nil, err
	}
	originPath, err := path.ParseOriginPath(strPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}
	return &KeyOrigin{fingerprint, originPath}, nil
}

func parseMultipath(elem string) ([]uint32, error) {
	if !strings.HasSuffix(elem, ">") {
		return nil, fmt.Errorf("%w: unclosed multipath step", ErrInvalidKey)
	}
	alternatives := strings.Split(elem[1:len(elem)-1], ";")
	if len(alternatives) < 2 {
		return nil, fmt.Errorf(
			"%w: multipath step must have at least 2 alternatives", ErrInvalidKey,
		)
	}
	multi := make([]uint32, 0, len(alternatives))
	seen := make(map[uint32]bool)
	for _, a := range alternatives {
		steps, err := path.ParseOriginPath(a)
		if err != nil || len(steps) != 1 {
			return nil, fmt.Errorf("%w: invalid multipath step %q", ErrInvalidKey, a)
		}
		step := steps[0]
		if path.IsHardened(step) {
			return nil, ErrHardenedDerivation
		}
		if seen[step] {
			return nil, fmt.Errorf("%w: duplicate multipath step %d", ErrInvalidKey, step)
		}
		seen[step] = true
		multi = append(multi, step)
	}
	return multi, nil
}

func copyPath(p path.DerivationPath) path.DerivationPath {
	if p == nil {
		return nil
	}
	return append(path.DerivationPath{}, p...)
}
