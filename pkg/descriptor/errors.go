package descriptor

import (
	"fmt"
)

var (
	ErrMissingKey          = fmt.Errorf("missing key")
	ErrMissingKeys         = fmt.Errorf("policy must contain at least one key")
	ErrMissingPolicy       = fmt.Errorf("missing primary or recovery policy")
	ErrInvalidThreshold    = fmt.Errorf("threshold must be in range [1, number of keys]")
	ErrTooManyKeys         = fmt.Errorf("a threshold can't contain more than %d keys", MaxKeysPerMulti)
	ErrDuplicateKey        = fmt.Errorf("descriptor must not contain the same key more than once")
	ErrInvalidTimelock     = fmt.Errorf("timelock must be a relative block count in range [1, 65535]")
	ErrKeyNotMultipath     = fmt.Errorf("keys must be multipath with exactly a receive and a change branch and a wildcard")
	ErrMixedNetworks       = fmt.Errorf("keys must all belong to the same network")
	ErrScriptTooLarge      = fmt.Errorf("witness script exceeds %d bytes", MaxWitnessScriptSize)
	ErrTooManyOps          = fmt.Errorf("witness script exceeds %d non-push opcodes", MaxOpsPerScript)
	ErrInvalidKey          = fmt.Errorf("invalid key")
	ErrPrivateKey          = fmt.Errorf("key must be an extended public key")
	ErrInvalidFingerprint  = fmt.Errorf("fingerprint must be 4 bytes in hex format")
	ErrInvalidDescriptor   = fmt.Errorf("invalid descriptor")
	ErrInvalidChecksum     = fmt.Errorf("invalid descriptor checksum")
	ErrUnknownNetwork      = fmt.Errorf("unknown network")
	ErrHardenedDerivation  = fmt.Errorf("cannot derive hardened child from extended public key")
	ErrInvalidBranchNumber = fmt.Errorf("invalid multipath branch")
)
