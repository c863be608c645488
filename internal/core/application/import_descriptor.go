package application

import (
	"fmt"
	"strings"

	"github.com/vulpemventures/vault/internal/core/ports"
	"github.com/vulpemventures/vault/pkg/descriptor"
)

type ImportDescriptorArgs struct {
	Network descriptor.Network
	DataDir string
	Signer  ports.SoftwareSigner
}

func (a ImportDescriptorArgs) validate() error {
	if !a.Network.IsValid() {
		return descriptor.ErrUnknownNetwork
	}
	return nil
}

// ImportDescriptor takes the descriptor of a wallet created elsewhere.
type ImportDescriptor struct {
	network      descriptor.Network
	networkValid bool
	dataDir      string
	signer       ports.SoftwareSigner
	text         string
	err          error

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewImportDescriptor(args ImportDescriptorArgs) (*ImportDescriptor, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	logFn, warnFn := loggers("import descriptor")
	i := &ImportDescriptor{
		dataDir: args.DataDir,
		signer:  args.Signer,
		log:     logFn,
		warn:    warnFn,
	}
	i.SetNetwork(args.Network)
	return i, nil
}

// LoadContext sets the datadir and the network of the session.
func (i *ImportDescriptor) LoadContext(ctx *Context) {
	i.dataDir = ctx.DataDir
	i.SetNetwork(ctx.Network)
}

func (i *ImportDescriptor) SetNetwork(network descriptor.Network) {
	i.err = nil
	i.network = network
	i.networkValid = IsNetworkAvailable(i.dataDir, network)
	if i.signer != nil {
		i.signer.SetNetwork(network)
	}
}

func (i *ImportDescriptor) Network() descriptor.Network {
	return i.network
}

// NetworkValid returns whether no wallet exists yet for the network.
func (i *ImportDescriptor) NetworkValid() bool {
	return i.networkValid
}

func (i *ImportDescriptor) SetDescriptorText(text string) {
	i.err = nil
	i.text = text
}

func (i *ImportDescriptor) DescriptorText() string {
	return i.text
}

// Err returns the error of the last Apply.
func (i *ImportDescriptor) Err() error {
	return i.err
}

// Apply parses the descriptor and hands it to the context if all of its
// keys belong to the active network.
func (i *ImportDescriptor) Apply(ctx *Context) error {
	desc, err := i.parse()
	if err != nil {
		i.err = err
		i.warn(err, "failed to import descriptor")
		return err
	}
	i.err = nil

	ctx.Network = i.network
	ctx.Descriptor = desc
	ctx.Keys = nil
	ctx.Signer = nil
	i.log("imported descriptor %s", desc)
	return nil
}

func (i *ImportDescriptor) parse() (*descriptor.Descriptor, error) {
	if !i.networkValid {
		return nil, ErrNetworkDatadirExists
	}
	text := strings.TrimSpace(i.text)
	if text == "" {
		return nil, ErrMissingDescriptor
	}
	desc, err := descriptor.Parse(text)
	if err != nil {
		return nil, err
	}
	if !desc.IsForNetwork(i.network) {
		return nil, fmt.Errorf("%w: %s", ErrDescriptorNetwork, i.network)
	}
	return desc, nil
}
