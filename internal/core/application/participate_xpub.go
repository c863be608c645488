package application

import (
	"github.com/google/uuid"
	"github.com/vulpemventures/vault/internal/core/domain"
	"github.com/vulpemventures/vault/internal/core/ports"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

type ParticipateXpubArgs struct {
	Network    descriptor.Network
	DataDir    string
	Signer     ports.SoftwareSigner
	Enumerator ports.DeviceEnumerator
	Loop       *Loop
}

func (a ParticipateXpubArgs) validate() error {
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

// Participant is a listed device together with the keys it exported.
type Participant struct {
	Device     ports.HardwareWallet
	Xpubs      []*descriptor.Key
	Processing bool
	Err        error
}

type participant struct {
	device ports.HardwareWallet
	xpubs  []*descriptor.Key
	op     uuid.UUID
	err    error
}

// ParticipateXpub exports keys of the connected devices and of the
// software signer, to be shared with the coordinator of a descriptor.
// Every export of the same device uses the next account.
type ParticipateXpub struct {
	network      descriptor.Network
	networkValid bool
	dataDir      string
	signer       ports.SoftwareSigner
	enumerator   ports.DeviceEnumerator
	loop         *Loop

	participants []*participant
	signerXpubs  []*descriptor.Key
	accounts     domain.AccountIndexes
	listOp       uuid.UUID
	shared       bool

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewParticipateXpub(args ParticipateXpubArgs) (*ParticipateXpub, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	logFn, warnFn := loggers("participate xpub")
	p := &ParticipateXpub{
		dataDir:    args.DataDir,
		signer:     args.Signer,
		enumerator: args.Enumerator,
		loop:       args.Loop,
		accounts:   make(domain.AccountIndexes),
		log:        logFn,
		warn:       warnFn,
	}
	p.network = args.Network
	p.networkValid = IsNetworkAvailable(p.dataDir, p.network)
	if p.signer != nil {
		p.signer.SetNetwork(p.network)
	}
	return p, nil
}

// LoadContext sets the datadir and the network of the session.
func (p *ParticipateXpub) LoadContext(ctx *Context) {
	p.dataDir = ctx.DataDir
	p.SetNetwork(ctx.Network)
	p.networkValid = IsNetworkAvailable(p.dataDir, p.network)
}

// Load starts the enumeration of the connected devices.
func (p *ParticipateXpub) Load() {
	p.listOp = p.loop.Go(listDevices(p.enumerator))
}

// Reload lists devices again, keeping the keys already exported.
func (p *ParticipateXpub) Reload() {
	p.Load()
}

// SetNetwork changes the active network. Keys exported for another network
// are dropped and results of in-flight requests will be ignored.
func (p *ParticipateXpub) SetNetwork(network descriptor.Network) {
	if network == p.network {
		return
	}
	p.network = network
	p.networkValid = IsNetworkAvailable(p.dataDir, network)
	if p.signer != nil {
		p.signer.SetNetwork(network)
	}
	p.reset()
	p.log("network changed to %s, exported keys dropped", network)
}

func (p *ParticipateXpub) Network() descriptor.Network {
	return p.network
}

// NetworkValid returns whether no wallet exists yet for the network.
func (p *ParticipateXpub) NetworkValid() bool {
	return p.networkValid
}

// SelectDevice requests a key of the i-th device at its next account. It
// returns whether a request was issued.
func (p *ParticipateXpub) SelectDevice(i int) bool {
	if i < 0 || i >= len(p.participants) {
		return false
	}
	entry := p.participants[i]
	if entry.op != uuid.Nil || !entry.device.IsSupported() {
		return false
	}
	account, err := p.accounts.Next(entry.device.Fingerprint)
	if err != nil {
		entry.err = err
		return false
	}
	derivationPath := policyPath(p.network, account)

	entry.err = nil
	entry.op = p.loop.Go(getExtendedPubkey(entry.device, derivationPath))
	p.log(
		"requesting key %s from %s device %s",
		derivationPath, entry.device.Kind, entry.device.Fingerprint,
	)
	return true
}

// UseSoftwareSigner exports the key of the software signer at its next
// account.
func (p *ParticipateXpub) UseSoftwareSigner() error {
	if p.signer == nil {
		return ErrMissingSigner
	}
	fingerprint := p.signer.Fingerprint()
	account, err := p.accounts.Next(fingerprint)
	if err != nil {
		return err
	}
	key, err := signerKey(p.signer, policyPath(p.network, account))
	if err != nil {
		return err
	}
	p.accounts[fingerprint] = account
	p.signerXpubs = append(p.signerXpubs, key)
	keyImports.WithLabelValues(sourceSigner).Inc()
	return nil
}

// SetShared records whether the user shared the exported keys.
func (p *ParticipateXpub) SetShared(shared bool) {
	p.shared = shared
}

func (p *ParticipateXpub) Shared() bool {
	return p.shared
}

// Listing returns whether the device enumeration is in flight.
func (p *ParticipateXpub) Listing() bool {
	return p.listOp != uuid.Nil
}

// Participants returns the listed devices with the keys they exported.
func (p *ParticipateXpub) Participants() []Participant {
	participants := make([]Participant, 0, len(p.participants))
	for _, entry := range p.participants {
		participants = append(participants, Participant{
			Device:     entry.device,
			Xpubs:      append([]*descriptor.Key{}, entry.xpubs...),
			Processing: entry.op != uuid.Nil,
			Err:        entry.err,
		})
	}
	return participants
}

// SignerXpubs returns the keys exported by the software signer.
func (p *ParticipateXpub) SignerXpubs() []*descriptor.Key {
	return append([]*descriptor.Key{}, p.signerXpubs...)
}

// Handle applies the result of an operation issued by this step. It
// returns whether the event was consumed.
func (p *ParticipateXpub) Handle(event Event) bool {
	switch e := event.(type) {
	case DevicesListed:
		if e.ID != p.listOp {
			return false
		}
		p.listOp = uuid.Nil
		if e.Err != nil {
			p.warn(e.Err, "failed to list devices")
			return true
		}
		p.mergeDevices(e.Devices)
		return true
	case XpubImported:
		for _, entry := range p.participants {
			if entry.op != uuid.Nil && entry.op == e.ID {
				entry.op = uuid.Nil
				p.onXpubImported(entry, e)
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Apply sets the network of the session and hands over the software
// signer if it exported at least one key.
func (p *ParticipateXpub) Apply(ctx *Context) error {
	if !p.networkValid {
		return ErrNetworkDatadirExists
	}
	if !p.shared {
		return ErrStepNotReady
	}
	ctx.Network = p.network
	ctx.HardwareWallets = nil
	ctx.Signer = nil
	if len(p.signerXpubs) > 0 {
		ctx.Signer = p.signer
	}
	return nil
}

func (p *ParticipateXpub) onXpubImported(entry *participant, e XpubImported) {
	if e.Err != nil {
		entry.err = &DeviceError{
			Fingerprint: e.Fingerprint,
			Kind:        entry.device.Kind,
			Operation:   opGetXpub,
			Err:         e.Err,
		}
		deviceErrors.WithLabelValues(opGetXpub).Inc()
		p.warn(e.Err, "failed to get key from device %s", e.Fingerprint)
		return
	}

	if account, ok := e.Key.Origin().Path.PolicyAccount(); ok {
		p.accounts[e.Fingerprint] = account
	}
	entry.err = nil
	entry.xpubs = append(entry.xpubs, e.Key)
	keyImports.WithLabelValues(sourceDevice).Inc()
}

// mergeDevices keeps the entries of devices still connected, exported keys
// included, and appends the new ones. A device keeps its entry while it is
// locked and once unlocked again.
func (p *ParticipateXpub) mergeDevices(devices []ports.HardwareWallet) {
	merged := make(map[*participant]bool)
	participants := make([]*participant, 0, len(devices))
	for _, device := range devices {
		entry := p.findParticipant(device, merged)
		if entry == nil {
			entry = &participant{}
		}
		merged[entry] = true
		entry.device = device
		participants = append(participants, entry)
	}
	p.participants = participants
}

func (p *ParticipateXpub) findParticipant(
	device ports.HardwareWallet, merged map[*participant]bool,
) *participant {
	for _, entry := range p.participants {
		if merged[entry] || entry.device.Kind != device.Kind {
			continue
		}
		if entry.device.Fingerprint == device.Fingerprint ||
			!entry.device.IsSupported() || !device.IsSupported() {
			return entry
		}
	}
	return nil
}

// reset drops exported keys and in-flight requests, keeping the listed
// devices.
func (p *ParticipateXpub) reset() {
	for _, entry := range p.participants {
		entry.xpubs = nil
		entry.op = uuid.Nil
		entry.err = nil
	}
	p.signerXpubs = nil
	p.accounts = make(domain.AccountIndexes)
	p.shared = false
}
