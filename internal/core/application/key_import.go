package application

import (
	"github.com/google/uuid"
	"github.com/vulpemventures/vault/internal/core/domain"
	"github.com/vulpemventures/vault/internal/core/ports"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

// ImportState is the state of a KeyImport.
type ImportState int

const (
	ImportIdle ImportState = iota
	ImportAwaitingDeviceList
	ImportDeviceSelected
	ImportRequesting
	ImportResolved
	ImportFailed
	ImportManualEntry
	ImportSoftwareSignerSelected
)

func (s ImportState) String() string {
	switch s {
	case ImportIdle:
		return "idle"
	case ImportAwaitingDeviceList:
		return "awaiting device list"
	case ImportDeviceSelected:
		return "device selected"
	case ImportRequesting:
		return "requesting"
	case ImportResolved:
		return "resolved"
	case ImportFailed:
		return "failed"
	case ImportManualEntry:
		return "manual entry"
	case ImportSoftwareSignerSelected:
		return "software signer selected"
	default:
		return "unknown"
	}
}

type KeyImportArgs struct {
	Branch         domain.Branch
	Index          int
	Network        descriptor.Network
	Alias          string
	Key            *descriptor.Key
	AccountIndexes domain.AccountIndexes
	Aliases        domain.Aliases
	Signer         ports.SoftwareSigner
	Enumerator     ports.DeviceEnumerator
	Loop           *Loop
}

func (a KeyImportArgs) validate() error {
	if a.Loop == nil {
		return ErrMissingLoop
	}
	if a.Enumerator == nil {
		return ErrMissingEnumerator
	}
	if !a.Network.IsValid() {
		return descriptor.ErrUnknownNetwork
	}
	return nil
}

// KeyImport retrieves the key of a slot either from a connected device, from
// the software signer or from text typed by the user.
type KeyImport struct {
	branch         domain.Branch
	index          int
	network        descriptor.Network
	accountIndexes domain.AccountIndexes
	aliases        domain.Aliases
	signer         ports.SoftwareSigner
	enumerator     ports.DeviceEnumerator
	loop           *Loop

	state        ImportState
	devices      []ports.HardwareWallet
	chosen       int
	chosenSigner bool
	listOp       uuid.UUID
	xpubOp       uuid.UUID

	alias         string
	aliasEditable bool
	keyText       string
	keyValid      bool
	source        string
	err           error

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewKeyImport(args KeyImportArgs) (*KeyImport, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	accountIndexes := args.AccountIndexes
	if accountIndexes == nil {
		accountIndexes = make(domain.AccountIndexes)
	}
	aliases := args.Aliases
	if aliases == nil {
		aliases = make(domain.Aliases)
	}
	logFn, warnFn := loggers("key import")

	k := &KeyImport{
		branch:         args.Branch,
		index:          args.Index,
		network:        args.Network,
		accountIndexes: accountIndexes,
		aliases:        aliases,
		signer:         args.Signer,
		enumerator:     args.Enumerator,
		loop:           args.Loop,
		chosen:         -1,
		alias:          args.Alias,
		keyValid:       true,
		log:            logFn,
		warn:           warnFn,
	}
	if args.Key != nil {
		k.keyText = args.Key.String()
		k.chosenSigner = args.Signer != nil &&
			args.Signer.Fingerprint() == args.Key.MasterFingerprint()
	}
	return k, nil
}

// Load starts the enumeration of the connected devices.
func (k *KeyImport) Load() {
	k.state = ImportAwaitingDeviceList
	k.listOp = k.loop.Go(listDevices(k.enumerator))
	k.log("listing devices for %s key #%d", k.branch, k.index)
}

// Reload forgets the listed devices and any in-flight request, then lists
// devices again.
func (k *KeyImport) Reload() {
	k.devices = nil
	k.chosen = -1
	k.xpubOp = uuid.Nil
	k.Load()
}

// Handle applies the result of an operation issued by this import. Results
// of operations it no longer tracks are dropped. It returns whether the
// event was consumed.
func (k *KeyImport) Handle(event Event) bool {
	switch e := event.(type) {
	case DevicesListed:
		if e.ID != k.listOp {
			return false
		}
		k.listOp = uuid.Nil
		k.onDevicesListed(e)
		return true
	case XpubImported:
		if e.ID != k.xpubOp {
			return false
		}
		k.xpubOp = uuid.Nil
		k.onXpubImported(e)
		return true
	default:
		return false
	}
}

// SelectDevice requests the key of the i-th listed device at the next
// unused account. It returns whether a request was issued.
func (k *KeyImport) SelectDevice(i int) bool {
	if k.Processing() || i < 0 || i >= len(k.devices) {
		return false
	}
	device := k.devices[i]
	if !device.IsSupported() {
		return false
	}
	account, err := k.accountIndexes.Next(device.Fingerprint)
	if err != nil {
		k.err = err
		return false
	}
	derivationPath := policyPath(k.network, account)

	k.chosen = i
	k.state = ImportRequesting
	k.xpubOp = k.loop.Go(getExtendedPubkey(device, derivationPath))
	k.log(
		"requesting key %s from %s device %s",
		derivationPath, device.Kind, device.Fingerprint,
	)
	return true
}

// UseSoftwareSigner sets the key to the one derived by the software signer
// at the next unused account.
func (k *KeyImport) UseSoftwareSigner() error {
	if k.signer == nil {
		return ErrMissingSigner
	}
	fingerprint := k.signer.Fingerprint()
	account, err := k.accountIndexes.Next(fingerprint)
	if err != nil {
		return err
	}
	key, err := signerKey(k.signer, policyPath(k.network, account))
	if err != nil {
		return err
	}

	k.chosen = -1
	k.chosenSigner = true
	if !k.fillAlias(fingerprint) {
		k.alias = ""
	}
	k.setKey(key, sourceSigner)
	k.state = ImportSoftwareSignerSelected
	return nil
}

// SetKeyText parses the given text as a key. Text that is not a single path
// key with origin info is kept but marked invalid.
func (k *KeyImport) SetKeyText(text string) {
	k.state = ImportManualEntry
	k.keyText = text
	k.keyValid = false
	k.chosen = -1
	k.chosenSigner = false
	k.err = nil

	key, err := descriptor.ParseKey(text)
	if err != nil || key.Origin() == nil || !key.IsSinglePath() {
		return
	}
	k.keyValid = true
	k.source = sourceManual
	k.fillAlias(key.MasterFingerprint())
}

// EditAlias makes the alias editable.
func (k *KeyImport) EditAlias() {
	k.aliasEditable = true
}

func (k *KeyImport) SetAlias(alias string) {
	k.alias = alias
}

// Confirm returns the alias and the key to store in the slot. It fails while
// a key request is in flight.
func (k *KeyImport) Confirm() (string, *descriptor.Key, error) {
	if k.Processing() {
		return "", nil, ErrOperationInFlight
	}
	if k.keyText == "" {
		return "", nil, ErrMissingKeyText
	}
	key, err := descriptor.ParseKey(k.keyText)
	if err != nil {
		return "", nil, err
	}
	if key.Origin() == nil || !key.IsSinglePath() {
		return "", nil, ErrInvalidKeyText
	}
	if k.alias == "" {
		return "", nil, ErrMissingAlias
	}
	if k.source != "" {
		keyImports.WithLabelValues(k.source).Inc()
	}
	return k.alias, key, nil
}

func (k *KeyImport) Branch() domain.Branch {
	return k.branch
}

func (k *KeyImport) Index() int {
	return k.index
}

func (k *KeyImport) State() ImportState {
	return k.state
}

// Processing returns whether a key request is in flight.
func (k *KeyImport) Processing() bool {
	return k.xpubOp != uuid.Nil
}

func (k *KeyImport) Devices() []ports.HardwareWallet {
	return append([]ports.HardwareWallet{}, k.devices...)
}

// ChosenDevice returns the index of the selected device, if any.
func (k *KeyImport) ChosenDevice() (int, bool) {
	return k.chosen, k.chosen >= 0
}

// UsesSoftwareSigner returns whether the key is the software signer one.
func (k *KeyImport) UsesSoftwareSigner() bool {
	return k.chosenSigner
}

func (k *KeyImport) Alias() string {
	return k.alias
}

// AliasEditable is false when the alias was filled from a known
// fingerprint.
func (k *KeyImport) AliasEditable() bool {
	return k.aliasEditable
}

func (k *KeyImport) KeyText() string {
	return k.keyText
}

func (k *KeyImport) KeyValid() bool {
	return k.keyValid
}

// Err returns the last device error, if any.
func (k *KeyImport) Err() error {
	return k.err
}

func (k *KeyImport) onDevicesListed(e DevicesListed) {
	if e.Err != nil {
		k.warn(e.Err, "failed to list devices")
		k.devices = nil
	} else {
		k.devices = e.Devices
	}
	k.state = ImportIdle
	k.chosen = -1

	key, err := descriptor.ParseKey(k.keyText)
	if err != nil {
		return
	}
	for i, device := range k.devices {
		if device.IsSupported() && device.Fingerprint == key.MasterFingerprint() {
			k.chosen = i
			k.state = ImportDeviceSelected
			return
		}
	}
}

func (k *KeyImport) onXpubImported(e XpubImported) {
	if e.Err != nil {
		kind := ""
		if k.chosen >= 0 && k.chosen < len(k.devices) {
			kind = k.devices[k.chosen].Kind
		}
		k.err = &DeviceError{
			Fingerprint: e.Fingerprint,
			Kind:        kind,
			Operation:   opGetXpub,
			Err:         e.Err,
		}
		k.chosen = -1
		k.state = ImportFailed
		deviceErrors.WithLabelValues(opGetXpub).Inc()
		k.warn(e.Err, "failed to get key from device %s", e.Fingerprint)
		return
	}

	k.err = nil
	k.chosenSigner = false
	k.fillAlias(e.Key.MasterFingerprint())
	k.setKey(e.Key, sourceDevice)
	k.state = ImportResolved
}

func (k *KeyImport) setKey(key *descriptor.Key, source string) {
	k.keyText = key.String()
	k.keyValid = true
	k.source = source
}

// fillAlias sets the alias already given to the fingerprint, if any, and
// makes it read-only. Otherwise the alias becomes editable.
func (k *KeyImport) fillAlias(fingerprint descriptor.Fingerprint) bool {
	if alias, ok := k.aliases[fingerprint]; ok {
		k.alias = alias
		k.aliasEditable = false
		return true
	}
	k.aliasEditable = true
	return false
}
