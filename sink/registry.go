package sink

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/mitchellh/mapstructure"
)

var (
	ErrFactoryNotFound  = errors.New("sink factory not found")
	ErrDuplicateFactory = errors.New("duplicate sink factory")
	ErrConfigDecode     = errors.New("sink config decode error")
	ErrFactorySetup     = errors.New("sink factory setup error")
)

// Factory constructs sinks of one type from declarative configuration.
type Factory interface {
	// Type returns the configuration type tag handled by this factory.
	Type() string
	// ConfigType returns an empty struct that represents the factory's
	// configuration. It is populated by the registry using mapstructure.
	ConfigType() any
	// Setup builds a sink instance from the populated configuration.
	Setup(name string, cfg any) (Sink, error)
}

// Registry maps configuration type tags to sink factories.
type Registry struct {
	lock      sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with all built-in factories registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	for _, f := range []Factory{
		consoleFactory{},
		fileFactory{},
		natsFactory{},
		postgresFactory{},
	} {
		// Built-in types are distinct, Register cannot fail here.
		_ = r.Register(f)
	}
	return r
}

// Register adds a factory. Registering a second factory for the same
// type tag is an error.
func (r *Registry) Register(f Factory) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, exists := r.factories[f.Type()]; exists {
		return fmt.Errorf("%w: type '%s'", ErrDuplicateFactory, f.Type())
	}
	r.factories[f.Type()] = f
	return nil
}

// Build constructs a single sink: the raw params map is decoded into the
// factory's configuration struct, then handed to Setup.
func (r *Registry) Build(typ, name string, params map[string]any) (Sink, error) {
	r.lock.RLock()
	factory, ok := r.factories[typ]
	r.lock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: type '%s'", ErrFactoryNotFound, typ)
	}

	target := factory.ConfigType()
	if target == nil {
		return nil, fmt.Errorf("%w: factory '%s' did not provide a configuration type", ErrConfigDecode, typ)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: false,
		Result:           target,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create decoder for sink '%s': %v", ErrConfigDecode, name, err)
	}
	if err := decoder.Decode(params); err != nil {
		return nil, fmt.Errorf("%w: failed to decode config for sink '%s': %v", ErrConfigDecode, name, err)
	}

	s, err := factory.Setup(name, target)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to setup sink '%s': %v", ErrFactorySetup, name, err)
	}
	return s, nil
}

// ConsoleSinkConfig configures a console sink.
type ConsoleSinkConfig struct {
	// Target selects the stream, "stdout" (default) or "stderr".
	Target string `mapstructure:"target"`
}

type consoleFactory struct{}

func (consoleFactory) Type() string    { return "console" }
func (consoleFactory) ConfigType() any { return &ConsoleSinkConfig{} }

func (consoleFactory) Setup(name string, cfg any) (Sink, error) {
	c := cfg.(*ConsoleSinkConfig)
	switch c.Target {
	case "", "stdout":
		return NewConsoleSinkTo(name, os.Stdout), nil
	case "stderr":
		return NewConsoleSinkTo(name, os.Stderr), nil
	default:
		return nil, fmt.Errorf("console sink: unknown target '%s'", c.Target)
	}
}

// FileSinkConfig configures a file sink.
type FileSinkConfig struct {
	Path    string `mapstructure:"path"`
	SplitMB int    `mapstructure:"splitMB"`
}

type fileFactory struct{}

func (fileFactory) Type() string    { return "file" }
func (fileFactory) ConfigType() any { return &FileSinkConfig{} }

func (fileFactory) Setup(name string, cfg any) (Sink, error) {
	c := cfg.(*FileSinkConfig)
	return NewFileSink(name, c.Path, c.SplitMB)
}

type natsFactory struct{}

func (natsFactory) Type() string    { return "nats" }
func (natsFactory) ConfigType() any { return &NATSSinkConfig{} }

func (natsFactory) Setup(name string, cfg any) (Sink, error) {
	return NewNATSSink(name, *cfg.(*NATSSinkConfig))
}

type postgresFactory struct{}

func (postgresFactory) Type() string    { return "postgres" }
func (postgresFactory) ConfigType() any { return &PostgresSinkConfig{} }

func (postgresFactory) Setup(name string, cfg any) (Sink, error) {
	return NewPostgresSink(name, *cfg.(*PostgresSinkConfig))
}
