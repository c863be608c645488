package application

import (
	"github.com/vulpemventures/vault/internal/core/domain"
	"github.com/vulpemventures/vault/internal/core/ports"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

type DefineDescriptorArgs struct {
	Network    descriptor.Network
	DataDir    string
	Signer     ports.SoftwareSigner
	Enumerator ports.DeviceEnumerator
	Loop       *Loop
}

func (a DefineDescriptorArgs) validate() error {
	if !a.Network.IsValid() {
		return descriptor.ErrUnknownNetwork
	}
	if a.Loop == nil {
		return ErrMissingLoop
	}
	if a.Enumerator == nil {
		return ErrMissingEnumerator
	}
	return nil
}

// DefineDescriptor lets the user fill the primary and recovery key slots
// and the timelock, then assembles the descriptor.
type DefineDescriptor struct {
	registry     *domain.Registry
	networkValid bool
	dataDir      string
	timelock     string
	signer       ports.SoftwareSigner
	enumerator   ports.DeviceEnumerator
	loop         *Loop
	modal        *KeyImport
	err          error

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewDefineDescriptor(args DefineDescriptorArgs) (*DefineDescriptor, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	logFn, warnFn := loggers("define descriptor")
	d := &DefineDescriptor{
		registry:   domain.NewRegistry(args.Network),
		dataDir:    args.DataDir,
		signer:     args.Signer,
		enumerator: args.Enumerator,
		loop:       args.Loop,
		log:        logFn,
		warn:       warnFn,
	}
	d.SetNetwork(args.Network)
	return d, nil
}

// LoadContext sets the datadir and the network of the session.
func (d *DefineDescriptor) LoadContext(ctx *Context) {
	d.dataDir = ctx.DataDir
	d.SetNetwork(ctx.Network)
}

// SetNetwork changes the active network, revalidating every key and the
// datadir.
func (d *DefineDescriptor) SetNetwork(network descriptor.Network) {
	d.err = nil
	d.registry.SetNetwork(network)
	if d.signer != nil {
		d.signer.SetNetwork(network)
	}
	d.networkValid = IsNetworkAvailable(d.dataDir, network)
}

func (d *DefineDescriptor) Network() descriptor.Network {
	return d.registry.Network()
}

// NetworkValid returns whether no wallet exists yet for the network.
func (d *DefineDescriptor) NetworkValid() bool {
	return d.networkValid
}

func (d *DefineDescriptor) AddKey(branch domain.Branch) {
	d.err = nil
	d.registry.AddSlot(branch)
}

func (d *DefineDescriptor) DeleteKey(branch domain.Branch, i int) {
	d.err = nil
	d.registry.RemoveSlot(branch, i)
}

func (d *DefineDescriptor) SetThreshold(branch domain.Branch, threshold int) {
	d.err = nil
	d.registry.SetThreshold(branch, threshold)
}

// SetTimelock sets the timelock text, parsed at assembly time.
func (d *DefineDescriptor) SetTimelock(text string) {
	d.err = nil
	d.timelock = text
}

func (d *DefineDescriptor) Timelock() string {
	return d.timelock
}

// KeySet returns a copy of the slots of the branch.
func (d *DefineDescriptor) KeySet(branch domain.Branch) domain.KeySet {
	return d.registry.KeySet(branch)
}

// EditKey opens an import for the i-th slot of the branch and starts
// listing devices.
func (d *DefineDescriptor) EditKey(branch domain.Branch, i int) (*KeyImport, error) {
	slot, ok := d.registry.Slot(branch, i)
	if !ok {
		return nil, ErrKeySlotNotFound
	}
	modal, err := NewKeyImport(KeyImportArgs{
		Branch:         branch,
		Index:          i,
		Network:        d.registry.Network(),
		Alias:          slot.Alias,
		Key:            slot.Key,
		AccountIndexes: d.registry.AccountIndexes(),
		Aliases:        d.registry.Aliases(),
		Signer:         d.signer,
		Enumerator:     d.enumerator,
		Loop:           d.loop,
	})
	if err != nil {
		return nil, err
	}
	modal.Load()
	d.modal = modal
	return modal, nil
}

// Modal returns the key import in progress, if any.
func (d *DefineDescriptor) Modal() *KeyImport {
	return d.modal
}

// CloseModal drops the key import in progress. Results of its in-flight
// requests will be ignored. Nothing happens while a key request is in
// flight.
func (d *DefineDescriptor) CloseModal() {
	if d.modal != nil && d.modal.Processing() {
		return
	}
	d.modal = nil
}

// ConfirmKey stores the key of the import in progress in its slot.
func (d *DefineDescriptor) ConfirmKey() error {
	if d.modal == nil {
		return ErrNoModal
	}
	alias, key, err := d.modal.Confirm()
	if err != nil {
		return err
	}
	d.registry.SetKey(d.modal.Branch(), d.modal.Index(), alias, key)
	d.log(
		"set %s key #%d to %s (%s)",
		d.modal.Branch(), d.modal.Index(), key.MasterFingerprint(), alias,
	)
	d.modal = nil
	return nil
}

// Handle forwards the event to the import in progress.
func (d *DefineDescriptor) Handle(event Event) bool {
	if d.modal == nil {
		return false
	}
	return d.modal.Handle(event)
}

// Valid returns whether both key sets are non-empty, every slot is
// populated and the timelock is set.
func (d *DefineDescriptor) Valid() bool {
	if d.timelock == "" {
		return false
	}
	for _, branch := range []domain.Branch{domain.Primary, domain.Recovery} {
		set := d.registry.KeySet(branch)
		if len(set.Slots) <= 0 {
			return false
		}
		for _, slot := range set.Slots {
			if !slot.IsPopulated() {
				return false
			}
		}
	}
	return true
}

// Err returns the error of the last assembly attempt.
func (d *DefineDescriptor) Err() error {
	return d.err
}

// PolicyContext returns the assembly input for the current state.
func (d *DefineDescriptor) PolicyContext() PolicyContext {
	pctx := PolicyContext{
		Network:      d.registry.Network(),
		NetworkValid: d.networkValid,
		Primary:      d.registry.KeySet(domain.Primary),
		Recovery:     d.registry.KeySet(domain.Recovery),
		Timelock:     d.timelock,
	}
	if d.signer != nil {
		fingerprint := d.signer.Fingerprint()
		pctx.SignerFingerprint = &fingerprint
	}
	return pctx
}

// Apply assembles the descriptor and, on success, hands it to the context
// together with the key aliases and, if used, the software signer.
func (d *DefineDescriptor) Apply(ctx *Context) error {
	assembly, err := Assemble(d.PolicyContext())
	if err != nil {
		d.err = err
		d.warn(err, "failed to assemble descriptor")
		return err
	}
	d.err = nil

	ctx.Network = d.registry.Network()
	ctx.Descriptor = assembly.Descriptor
	ctx.Keys = assembly.Keys
	if assembly.SignerUsed {
		ctx.Signer = d.signer
	}
	d.log("assembled descriptor %s", assembly.Descriptor)
	return nil
}
