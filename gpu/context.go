package gpu

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/openfluke/devsort/detector"
)

// Context holds the device runtime: the selected backend, its default
// stream and the modules loaded on it.
type Context struct {
	cfg    Config
	be     backend
	limits Limits
	null   *Stream

	modMu   sync.Mutex
	modules map[*Image]*Module

	streamMu   sync.Mutex
	streams    map[uint64]*Stream
	nextStream atomic.Uint64

	closed atomic.Bool
}

var (
	ctx     *Context
	ctxErr  error
	ctxOnce sync.Once
	ctxCfg  *Config
	ctxMu   sync.Mutex
)

// Init configures the process-wide context. It must run before the first
// GetContext; afterwards it fails with ErrInvalidValue.
func Init(cfg Config) error {
	ctxMu.Lock()
	defer ctxMu.Unlock()
	if ctxCfg != nil || ctx != nil || ctxErr != nil {
		return newError(CodeInvalidValue, "init", "context already initialized")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctxCfg = &cfg
	return nil
}

// GetContext returns the singleton context, initializing it from Init's
// configuration or, failing that, from the environment.
func GetContext() (*Context, error) {
	ctxOnce.Do(func() {
		ctxMu.Lock()
		defer ctxMu.Unlock()

		var cfg Config
		if ctxCfg != nil {
			cfg = *ctxCfg
		} else {
			cfg, ctxErr = ConfigFromEnv()
			if ctxErr != nil {
				return
			}
		}
		ctx, ctxErr = NewContext(cfg)
	})

	if ctxErr != nil {
		return nil, ctxErr
	}
	if ctx == nil {
		return nil, newError(CodeNotInitialized, "context", "device context not initialized")
	}
	return ctx, nil
}

// NewContext creates an independent context. Most callers want GetContext;
// separate contexts are useful to isolate budgets and streams.
func NewContext(cfg Config) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger != nil {
		SetLogger(cfg.Logger)
	}
	log := Logger()

	var be backend
	var err error
	switch cfg.Backend {
	case BackendHost:
		be = newHostBackend(cfg)
	case BackendWebGPU:
		be, err = newWebGPUBackend(cfg)
		if err != nil {
			return nil, err
		}
	default:
		be, err = newWebGPUBackend(cfg)
		if err != nil {
			if errors.Is(err, ErrNotSupported) {
				log.Debug("webgpu backend not compiled in, using host backend")
			} else {
				log.Info("webgpu backend unavailable, falling back to host backend", "err", err)
			}
			be = newHostBackend(cfg)
		}
	}

	rep := be.report()
	c := &Context{
		cfg:     cfg,
		be:      be,
		limits:  limitsFrom(rep),
		modules: make(map[*Image]*Module),
		streams: make(map[uint64]*Stream),
	}
	c.null = newStream(c, 0)

	log.Info("device context ready", "backend", be.name(), "device", rep.Name, "adapter_type", rep.AdapterType)
	return c, nil
}

// Backend is the name of the active backend ("host" or "webgpu").
func (c *Context) Backend() string { return c.be.name() }

// Report describes the device behind the context.
func (c *Context) Report() *detector.Report { return c.be.report() }

// Limits bounds launch geometry on this device.
func (c *Context) Limits() Limits { return c.limits }

// Config is the configuration the context was created with.
func (c *Context) Config() Config { return c.cfg }

// DefaultStream is the stream used when a launch or copy names none.
func (c *Context) DefaultStream() *Stream { return c.null }

// Synchronize waits for the default stream.
func (c *Context) Synchronize() error { return c.null.Synchronize() }

func (c *Context) check(op string) error {
	if c.closed.Load() {
		return newError(CodeInvalidHandle, op, "context closed")
	}
	return nil
}

// NewStream creates a stream on c.
func (c *Context) NewStream() (*Stream, error) {
	if err := c.check("stream_create"); err != nil {
		return nil, err
	}
	s := newStream(c, c.nextStream.Add(1))
	c.streamMu.Lock()
	c.streams[s.id] = s
	c.streamMu.Unlock()
	Logger().Debug("stream created", "stream", s.id)
	return s, nil
}

func (c *Context) forgetStream(s *Stream) {
	c.streamMu.Lock()
	delete(c.streams, s.id)
	c.streamMu.Unlock()
}

func (c *Context) streamOrDefault(op string, s *Stream) (*Stream, error) {
	if err := c.check(op); err != nil {
		return nil, err
	}
	if s == nil {
		return c.null, nil
	}
	if s.ctx != c {
		return nil, newError(CodeInvalidHandle, op, "stream %d belongs to another context", s.id)
	}
	return s, nil
}

// Close destroys every stream, unloads modules and releases the backend.
// The first pending stream failure is returned.
func (c *Context) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.streamMu.Lock()
	streams := make([]*Stream, 0, len(c.streams))
	for _, s := range c.streams {
		streams = append(streams, s)
	}
	c.streamMu.Unlock()

	var errs []error
	for _, s := range streams {
		errs = append(errs, s.destroy())
	}
	errs = append(errs, c.null.destroy())

	c.modMu.Lock()
	for img, m := range c.modules {
		m.lm.unload()
		delete(c.modules, img)
	}
	c.modMu.Unlock()

	errs = append(errs, c.be.close())
	return errors.Join(errs...)
}
