package application

import (
	"fmt"

	"github.com/vulpemventures/vault/pkg/descriptor"
)

var (
	ErrMissingLoop             = fmt.Errorf("missing event loop")
	ErrMissingEnumerator       = fmt.Errorf("missing device enumerator")
	ErrMissingSigner           = fmt.Errorf("missing software signer")
	ErrMissingDescriptor       = fmt.Errorf("missing descriptor")
	ErrMissingAlias            = fmt.Errorf("missing key alias")
	ErrMissingKeyText          = fmt.Errorf("missing key")
	ErrInvalidKeyText          = fmt.Errorf("key must be a single path extended public key with origin info")
	ErrEmptyKeySet             = fmt.Errorf("key set must contain at least one key")
	ErrInvalidTimelock         = fmt.Errorf("timelock must be a number of blocks in range [1, 65535]")
	ErrKeyNetworkMismatch      = fmt.Errorf("key does not belong to the active network")
	ErrNetworkDatadirExists    = fmt.Errorf("a wallet already exists for this network")
	ErrDescriptorNetwork       = fmt.Errorf("descriptor keys do not belong to the active network")
	ErrNoModal                 = fmt.Errorf("no key is being edited")
	ErrKeySlotNotFound         = fmt.Errorf("key slot not found")
	ErrStepNotReady            = fmt.Errorf("step is not ready to be applied")
	ErrNoPreviousStep          = fmt.Errorf("already at first step")
	ErrNoNextStep              = fmt.Errorf("already at last step")
	ErrUnknownStep             = fmt.Errorf("unknown step")
	ErrOperationInFlight       = fmt.Errorf("a device operation is already in progress")
	ErrDeviceNotFound          = fmt.Errorf("device not found")
	ErrDeviceNotSupported      = fmt.Errorf("device is locked or not supported")
	ErrDeviceAlreadyRegistered = fmt.Errorf("descriptor already registered on device")
)

// DeviceError is returned when a device fails to fulfill a request.
type DeviceError struct {
	Fingerprint descriptor.Fingerprint
	Kind        string
	Operation   string
	Err         error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf(
		"%s device %s: failed to %s: %s", e.Kind, e.Fingerprint, e.Operation, e.Err,
	)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// AssemblyErrorKind classifies the reason a descriptor could not be
// assembled.
type AssemblyErrorKind int

const (
	// ValidationError is reported against the input field that caused it.
	ValidationError AssemblyErrorKind = iota
	// PolicyError means a key set can't be turned into a threshold policy.
	PolicyError
	// CompileError means the policies can't be compiled into a descriptor.
	CompileError
)

func (k AssemblyErrorKind) String() string {
	switch k {
	case ValidationError:
		return "validation"
	case PolicyError:
		return "policy"
	case CompileError:
		return "compile"
	default:
		return "unknown"
	}
}

type AssemblyError struct {
	Kind  AssemblyErrorKind
	Field string
	Err   error
}

func (e *AssemblyError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s error on %s: %s", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}
