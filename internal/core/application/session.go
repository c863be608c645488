package application

import (
	"context"
	"fmt"

	"github.com/vulpemventures/vault/internal/core/ports"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

// StepKind identifies the step of a session.
type StepKind int

const (
	StepDefine StepKind = iota
	StepParticipate
	StepImport
	StepRegister
)

func (k StepKind) String() string {
	switch k {
	case StepDefine:
		return "define descriptor"
	case StepParticipate:
		return "participate xpub"
	case StepImport:
		return "import descriptor"
	case StepRegister:
		return "register descriptor"
	default:
		return "unknown"
	}
}

// Step is one of the steps of a session. Only the field matching Kind is
// set.
type Step struct {
	Kind        StepKind
	Define      *DefineDescriptor
	Participate *ParticipateXpub
	Import      *ImportDescriptor
	Register    *RegisterDescriptor
}

func (s Step) loadContext(ctx *Context) {
	switch s.Kind {
	case StepDefine:
		s.Define.LoadContext(ctx)
	case StepParticipate:
		s.Participate.LoadContext(ctx)
	case StepImport:
		s.Import.LoadContext(ctx)
	case StepRegister:
		s.Register.LoadContext(ctx)
	}
}

// load starts the device enumeration of the steps that need it.
func (s Step) load() {
	switch s.Kind {
	case StepParticipate:
		s.Participate.Load()
	case StepRegister:
		s.Register.Load()
	}
}

func (s Step) apply(ctx *Context) error {
	switch s.Kind {
	case StepDefine:
		return s.Define.Apply(ctx)
	case StepParticipate:
		return s.Participate.Apply(ctx)
	case StepImport:
		return s.Import.Apply(ctx)
	case StepRegister:
		return s.Register.Apply(ctx)
	default:
		return ErrUnknownStep
	}
}

func (s Step) handle(event Event) bool {
	switch s.Kind {
	case StepDefine:
		return s.Define.Handle(event)
	case StepParticipate:
		return s.Participate.Handle(event)
	case StepRegister:
		return s.Register.Handle(event)
	default:
		return false
	}
}

func (s Step) setNetwork(network descriptor.Network) {
	switch s.Kind {
	case StepDefine:
		s.Define.SetNetwork(network)
	case StepParticipate:
		s.Participate.SetNetwork(network)
	case StepImport:
		s.Import.SetNetwork(network)
	}
}

// Flow is the sequence of steps run by a session.
type Flow int

const (
	// FlowCreate defines a new descriptor and registers it on devices.
	FlowCreate Flow = iota
	// FlowParticipate exports keys for a descriptor defined by somebody else.
	FlowParticipate
	// FlowImport imports an existing descriptor and registers it on devices.
	FlowImport
)

func (f Flow) String() string {
	switch f {
	case FlowCreate:
		return "create"
	case FlowParticipate:
		return "participate"
	case FlowImport:
		return "import"
	default:
		return "unknown"
	}
}

type SessionArgs struct {
	Flow       Flow
	Network    descriptor.Network
	DataDir    string
	Label      string
	Signer     ports.SoftwareSigner
	Enumerator ports.DeviceEnumerator
	Loop       *Loop
}

func (a SessionArgs) validate() error {
	if a.Flow < FlowCreate || a.Flow > FlowImport {
		return fmt.Errorf("unknown flow %d", a.Flow)
	}
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

// Session runs the steps of a flow in order, passing the Context from one
// to the next. It owns the software signer and is meant to be driven by a
// single goroutine.
type Session struct {
	flow    Flow
	steps   []Step
	current int
	ctx     *Context
	signer  ports.SoftwareSigner
	loop    *Loop

	log func(format string, a ...interface{})
}

func NewSession(args SessionArgs) (*Session, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}

	steps, err := newSteps(args)
	if err != nil {
		return nil, err
	}
	logFn, _ := loggers("session")

	s := &Session{
		flow:   args.Flow,
		steps:  steps,
		signer: args.Signer,
		loop:   args.Loop,
		ctx: &Context{
			Network: args.Network,
			DataDir: args.DataDir,
		},
		log: logFn,
	}
	s.enter()
	return s, nil
}

func newSteps(args SessionArgs) ([]Step, error) {
	register := func() (Step, error) {
		r, err := NewRegisterDescriptor(RegisterDescriptorArgs{
			Label:      args.Label,
			Enumerator: args.Enumerator,
			Loop:       args.Loop,
		})
		return Step{Kind: StepRegister, Register: r}, err
	}

	switch args.Flow {
	case FlowCreate:
		define, err := NewDefineDescriptor(DefineDescriptorArgs{
			Network:    args.Network,
			DataDir:    args.DataDir,
			Signer:     args.Signer,
			Enumerator: args.Enumerator,
			Loop:       args.Loop,
		})
		if err != nil {
			return nil, err
		}
		reg, err := register()
		if err != nil {
			return nil, err
		}
		return []Step{{Kind: StepDefine, Define: define}, reg}, nil
	case FlowParticipate:
		participate, err := NewParticipateXpub(ParticipateXpubArgs{
			Network:    args.Network,
			DataDir:    args.DataDir,
			Signer:     args.Signer,
			Enumerator: args.Enumerator,
			Loop:       args.Loop,
		})
		if err != nil {
			return nil, err
		}
		return []Step{{Kind: StepParticipate, Participate: participate}}, nil
	default:
		imp, err := NewImportDescriptor(ImportDescriptorArgs{
			Network: args.Network,
			DataDir: args.DataDir,
			Signer:  args.Signer,
		})
		if err != nil {
			return nil, err
		}
		reg, err := register()
		if err != nil {
			return nil, err
		}
		return []Step{{Kind: StepImport, Import: imp}, reg}, nil
	}
}

func (s *Session) Flow() Flow {
	return s.flow
}

// Current returns the active step.
func (s *Session) Current() Step {
	return s.steps[s.current]
}

// IsLast returns whether the active step is the last of the flow.
func (s *Session) IsLast() bool {
	return s.current == len(s.steps)-1
}

// Next applies the active step to the context and moves to the following
// one. The session doesn't move if the step can't be applied.
func (s *Session) Next() error {
	if s.IsLast() {
		return ErrNoNextStep
	}
	if err := s.Current().apply(s.ctx); err != nil {
		return err
	}
	s.current++
	s.enter()
	return nil
}

// Previous moves back to the previous step, which keeps its state.
func (s *Session) Previous() error {
	if s.current == 0 {
		return ErrNoPreviousStep
	}
	s.current--
	s.log("back to step %s", s.Current().Kind)
	return nil
}

// Finish applies the last step and returns the resulting context.
func (s *Session) Finish() (*Context, error) {
	if !s.IsLast() {
		return nil, ErrStepNotReady
	}
	if err := s.Current().apply(s.ctx); err != nil {
		return nil, err
	}
	return s.Context(), nil
}

// Handle forwards the event to the active step. Events of operations issued
// by other steps are dropped.
func (s *Session) Handle(event Event) bool {
	return s.Current().handle(event)
}

// Process waits for the next event of the loop and handles it.
func (s *Session) Process(ctx context.Context) (bool, error) {
	event, err := s.loop.Next(ctx)
	if err != nil {
		return false, err
	}
	return s.Handle(event), nil
}

// SetNetwork changes the network of the session, of the software signer
// and of the active step.
func (s *Session) SetNetwork(network descriptor.Network) error {
	if !network.IsValid() {
		return descriptor.ErrUnknownNetwork
	}
	s.ctx.Network = network
	if s.signer != nil {
		s.signer.SetNetwork(network)
	}
	s.Current().setNetwork(network)
	return nil
}

// Context returns a copy of the context built so far.
func (s *Session) Context() *Context {
	ctx := *s.ctx
	ctx.Keys = append([]KeySetting{}, s.ctx.Keys...)
	ctx.HardwareWallets = append(ctx.HardwareWallets[:0:0], s.ctx.HardwareWallets...)
	return &ctx
}

func (s *Session) enter() {
	step := s.Current()
	step.loadContext(s.ctx)
	step.load()
	s.log("entered step %s", step.Kind)
}
