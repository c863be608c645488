package application

import (
	"github.com/google/uuid"
	"github.com/vulpemventures/vault/internal/core/domain"
	"github.com/vulpemventures/vault/internal/core/ports"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

// DefaultWalletLabel is the name under which descriptors are registered on
// devices.
const DefaultWalletLabel = "Vault"

type RegisterDescriptorArgs struct {
	Descriptor *descriptor.Descriptor
	Label      string
	Enumerator ports.DeviceEnumerator
	Loop       *Loop
}

func (a RegisterDescriptorArgs) validate() error {
	if a.Loop == nil {
		return ErrMissingLoop
	}
	if a.Enumerator == nil {
		return ErrMissingEnumerator
	}
	return nil
}

// RegisterDescriptor registers the descriptor on the devices selected by
// the user, one at a time.
type RegisterDescriptor struct {
	descriptor    *descriptor.Descriptor
	label         string
	enumerator    ports.DeviceEnumerator
	loop          *Loop
	devices       []ports.HardwareWallet
	registrations *domain.Registrations
	chosen        int
	listOp        uuid.UUID
	registerOp    uuid.UUID
	err           error
	done          bool

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewRegisterDescriptor(args RegisterDescriptorArgs) (*RegisterDescriptor, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	label := args.Label
	if label == "" {
		label = DefaultWalletLabel
	}
	logFn, warnFn := loggers("register descriptor")
	return &RegisterDescriptor{
		descriptor:    args.Descriptor,
		label:         label,
		enumerator:    args.Enumerator,
		loop:          args.Loop,
		registrations: domain.NewRegistrations(),
		chosen:        -1,
		log:           logFn,
		warn:          warnFn,
	}, nil
}

// LoadContext takes the descriptor to register from the context. Devices
// registered with another descriptor are forgotten.
func (r *RegisterDescriptor) LoadContext(ctx *Context) {
	if r.descriptor != nil && ctx.Descriptor != nil &&
		r.descriptor.String() == ctx.Descriptor.String() {
		return
	}
	r.descriptor = ctx.Descriptor
	r.registrations = domain.NewRegistrations()
	r.registerOp = uuid.Nil
	r.chosen = -1
	r.err = nil
	r.done = false
}

// Load starts the enumeration of the connected devices.
func (r *RegisterDescriptor) Load() {
	r.listOp = r.loop.Go(listDevices(r.enumerator))
}

// Reload forgets the listed devices and any in-flight registration, then
// lists devices again.
func (r *RegisterDescriptor) Reload() {
	r.devices = nil
	r.chosen = -1
	r.registerOp = uuid.Nil
	r.Load()
}

// Select registers the descriptor on the i-th device. It returns whether a
// request was issued: devices already registered, locked or unsupported are
// skipped, as well as any selection while a registration is in flight.
func (r *RegisterDescriptor) Select(i int) bool {
	if r.descriptor == nil || r.Processing() || i < 0 || i >= len(r.devices) {
		return false
	}
	device := r.devices[i]
	if !device.IsSupported() || r.registrations.IsRegistered(device.Fingerprint) {
		return false
	}

	r.chosen = i
	r.err = nil
	r.registerOp = r.loop.Go(registerWallet(device, r.label, r.descriptor.String()))
	r.log("registering descriptor on %s device %s", device.Kind, device.Fingerprint)
	return true
}

// Handle applies the result of an operation issued by this step. It
// returns whether the event was consumed.
func (r *RegisterDescriptor) Handle(event Event) bool {
	switch e := event.(type) {
	case DevicesListed:
		if e.ID != r.listOp {
			return false
		}
		r.listOp = uuid.Nil
		if e.Err != nil {
			r.warn(e.Err, "failed to list devices")
		}
		r.devices = e.Devices
		return true
	case WalletRegistered:
		if e.ID != r.registerOp {
			return false
		}
		r.registerOp = uuid.Nil
		r.onWalletRegistered(e)
		return true
	default:
		return false
	}
}

// Apply hands the registered devices and their tokens to the context.
func (r *RegisterDescriptor) Apply(ctx *Context) error {
	ctx.HardwareWallets = r.registrations.Devices()
	return nil
}

func (r *RegisterDescriptor) Descriptor() *descriptor.Descriptor {
	return r.descriptor
}

func (r *RegisterDescriptor) Devices() []ports.HardwareWallet {
	return append([]ports.HardwareWallet{}, r.devices...)
}

func (r *RegisterDescriptor) IsRegistered(fingerprint descriptor.Fingerprint) bool {
	return r.registrations.IsRegistered(fingerprint)
}

// Registered returns the devices the descriptor is registered on.
func (r *RegisterDescriptor) Registered() []domain.RegisteredDevice {
	return r.registrations.Devices()
}

// Listing returns whether the device enumeration is in flight.
func (r *RegisterDescriptor) Listing() bool {
	return r.listOp != uuid.Nil
}

// Processing returns whether a registration is in flight.
func (r *RegisterDescriptor) Processing() bool {
	return r.registerOp != uuid.Nil
}

// ChosenDevice returns the index of the device being registered, if any.
func (r *RegisterDescriptor) ChosenDevice() (int, bool) {
	return r.chosen, r.chosen >= 0
}

// Err returns the error of the last registration attempt.
func (r *RegisterDescriptor) Err() error {
	return r.err
}

// SetDone records the user acknowledged the registration.
func (r *RegisterDescriptor) SetDone(done bool) {
	r.done = done
}

func (r *RegisterDescriptor) Done() bool {
	return r.done
}

func (r *RegisterDescriptor) onWalletRegistered(e WalletRegistered) {
	r.chosen = -1

	if e.Err != nil {
		kind := ""
		if device, ok := r.findDevice(e.Fingerprint); ok {
			kind = device.Kind
		}
		r.err = &DeviceError{
			Fingerprint: e.Fingerprint,
			Kind:        kind,
			Operation:   opRegister,
			Err:         e.Err,
		}
		deviceErrors.WithLabelValues(opRegister).Inc()
		walletRegistrations.WithLabelValues(resultFailure).Inc()
		r.warn(e.Err, "failed to register descriptor on device %s", e.Fingerprint)
		return
	}

	device, ok := r.findDevice(e.Fingerprint)
	if !ok {
		r.log("device %s disconnected before registration completed", e.Fingerprint)
		return
	}
	r.registrations.Add(domain.RegisteredDevice{
		Fingerprint: e.Fingerprint,
		Kind:        device.Kind,
		Token:       e.Token,
	})
	walletRegistrations.WithLabelValues(resultSuccess).Inc()
	r.log("descriptor registered on %s device %s", device.Kind, e.Fingerprint)
}

func (r *RegisterDescriptor) findDevice(
	fingerprint descriptor.Fingerprint,
) (ports.HardwareWallet, bool) {
	for _, device := range r.devices {
		if device.IsSupported() && device.Fingerprint == fingerprint {
			return device, true
		}
	}
	return ports.HardwareWallet{}, false
}
