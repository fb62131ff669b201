package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thinkaloud/thinkaloud/internal/bus"
	"github.com/thinkaloud/thinkaloud/internal/config"
	"github.com/thinkaloud/thinkaloud/internal/correction"
	"github.com/thinkaloud/thinkaloud/internal/display"
	"github.com/thinkaloud/thinkaloud/internal/feedback"
	"github.com/thinkaloud/thinkaloud/internal/llm"
	"github.com/thinkaloud/thinkaloud/internal/notify"
	"github.com/thinkaloud/thinkaloud/internal/observe"
	"github.com/thinkaloud/thinkaloud/internal/pipeline"
	"github.com/thinkaloud/thinkaloud/internal/recording"
	"github.com/thinkaloud/thinkaloud/internal/transport"
)

// exitTimeout bounds how long leaving correction waits for queued feedback.
const exitTimeout = 30 * time.Second

var errRemoteEngine = errors.New("corrections run on the backend in this mode")

type Daemon struct {
	version  string
	config   *config.Manager // nil when built around an existing pipeline
	notifier *swapNotifier
	pipeline pipeline.Pipeline
	metrics  *observe.Metrics
	provider *observe.Provider

	ctx    context.Context
	cancel context.CancelFunc
}

// New loads the user config and builds the correction pipeline from it.
func New(version string) (*Daemon, error) {
	mgr, err := config.NewManager()
	if err != nil {
		return nil, err
	}
	cfg := mgr.GetConfig()

	d := newDaemon(version, cfg.ToNotifier())
	d.config = mgr

	if cfg.Metrics.Enabled {
		provider, err := observe.InitProvider(d.ctx, observe.ProviderConfig{ServiceVersion: version})
		if err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		d.provider = provider
		d.metrics = observe.DefaultMetrics()
	}

	p, err := buildPipeline(cfg, d.notifier, d.metrics)
	if err != nil {
		return nil, err
	}
	d.pipeline = p
	return d, nil
}

// NewWithPipeline runs the control loop around p without a config file.
func NewWithPipeline(version string, p pipeline.Pipeline, n notify.Notifier) *Daemon {
	d := newDaemon(version, n)
	d.pipeline = p
	return d
}

func newDaemon(version string, n notify.Notifier) *Daemon {
	if n == nil {
		n = notify.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		version:  version,
		notifier: &swapNotifier{current: n},
		ctx:      ctx,
		cancel:   cancel,
	}
}

func buildPipeline(cfg *config.Config, n notify.Notifier, metrics *observe.Metrics) (pipeline.Pipeline, error) {
	recorder := recording.NewRecorder(cfg.ToRecordingConfig())
	tr := transport.New(cfg.ToTransportConfig(), recorder, metrics)

	var engine correction.Engine = remoteEngine{}
	var classifier feedback.Classifier
	if cfg.NeedsLLM() {
		oracle, err := llm.NewAdapter(cfg.ToLLMConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM adapter: %w", err)
		}
		engine = oracle
		classifier = oracle
	}

	return pipeline.New(
		pipeline.Config{SessionID: cfg.Session.ID, FeedbackMode: cfg.Feedback.Mode},
		pipeline.Deps{
			Transport:    tr,
			Accumulator:  feedback.NewAccumulator(classifier, metrics),
			Orchestrator: correction.New(engine, metrics),
			Display:      display.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout),
			Notifier:     n,
			Metrics:      metrics,
		},
	), nil
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	ctx, stop := signal.NotifyContext(d.ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if d.config != nil {
		d.config.OnReload(d.reload)
		if err := d.config.StartWatching(ctx); err != nil {
			log.Printf("Daemon: config hot reload unavailable: %v", err)
		}
		defer d.config.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		return d.acceptLoop(ctx, ln)
	})
	if d.provider != nil {
		addr := d.config.GetConfig().Metrics.Listen
		g.Go(func() error {
			return d.provider.Serve(ctx, addr)
		})
	}

	log.Printf("Daemon: started, listening on socket")
	err = g.Wait()
	d.shutdown()
	return err
}

func (d *Daemon) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("Daemon: shutdown requested")
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(ctx, c)
	}
}

func (d *Daemon) shutdown() {
	if err := d.pipeline.Close(); err != nil {
		log.Printf("Daemon: pipeline close: %v", err)
	}
	if d.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := d.provider.Shutdown(ctx); err != nil {
			log.Printf("Daemon: metrics shutdown: %v", err)
		}
	}
	d.cancel()
}

func (d *Daemon) handle(ctx context.Context, c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		log.Printf("Daemon: client read error: %v", err)
		fmt.Fprint(c, bus.Response{Kind: bus.KindErr, Body: "read_error: " + err.Error()}.Encode())
		return
	}

	req, err := bus.ParseRequest(line)
	if err != nil {
		fmt.Fprint(c, bus.Response{Kind: bus.KindErr, Body: err.Error()}.Encode())
		return
	}

	fmt.Fprint(c, d.dispatch(ctx, req).Encode())
}

func (d *Daemon) dispatch(ctx context.Context, req bus.Request) bus.Response {
	switch req.Cmd {
	case bus.CmdLoad:
		if err := d.pipeline.Load(req.Arg); err != nil {
			return errResponse(err)
		}
		return ok(fmt.Sprintf("loaded %d characters", len([]rune(req.Arg))))

	case bus.CmdCorrect:
		if err := d.pipeline.EnterCorrection(ctx); err != nil {
			return errResponse(err)
		}
		return ok("correction started")

	case bus.CmdEdit:
		exitCtx, cancel := context.WithTimeout(ctx, exitTimeout)
		defer cancel()
		if err := d.pipeline.ExitCorrection(exitCtx); err != nil {
			return errResponse(err)
		}
		return ok("editing")

	case bus.CmdStatus:
		return encoded(bus.KindStatus, d.pipeline.Snapshot())

	case bus.CmdHistory:
		history := d.pipeline.History()
		if history == nil {
			history = []correction.HistoryEntry{}
		}
		return encoded(bus.KindHistory, history)

	case bus.CmdComplete:
		exitCtx, cancel := context.WithTimeout(ctx, exitTimeout)
		defer cancel()
		s, err := d.pipeline.Complete(exitCtx)
		if err != nil {
			return errResponse(err)
		}
		return encoded(bus.KindStatus, s)

	case bus.CmdSession:
		if err := d.pipeline.SetSessionID(req.Arg); err != nil {
			return errResponse(err)
		}
		return ok("session " + req.Arg)

	case bus.CmdVersion:
		return ok(fmt.Sprintf("proto=%s version=%s", bus.ProtoVer, d.version))

	case bus.CmdQuit:
		d.cancel()
		return ok("quitting")

	default:
		log.Printf("Daemon: unknown command: %q", req.Cmd)
		return bus.Response{Kind: bus.KindErr, Body: fmt.Sprintf("unknown=%q", req.Cmd)}
	}
}

// reload applies the settings that can change without rebuilding the
// pipeline. Everything else takes effect on the next serve.
func (d *Daemon) reload(cfg *config.Config) {
	d.notifier.swap(cfg.ToNotifier())
	if cfg.Session.ID != "" {
		if err := d.pipeline.SetSessionID(cfg.Session.ID); err != nil {
			log.Printf("Daemon: session id not applied: %v", err)
		}
	}
	d.notifier.Send(notify.MsgConfigReloaded, "")
}

func ok(body string) bus.Response {
	return bus.Response{Kind: bus.KindOK, Body: body}
}

func errResponse(err error) bus.Response {
	return bus.Response{Kind: bus.KindErr, Body: err.Error()}
}

func encoded(kind string, v any) bus.Response {
	data, err := json.Marshal(v)
	if err != nil {
		return errResponse(err)
	}
	return bus.Response{Kind: kind, Body: string(data)}
}

// swapNotifier lets a config reload replace the notifier the pipeline was
// built with.
type swapNotifier struct {
	mu      sync.RWMutex
	current notify.Notifier
}

func (s *swapNotifier) swap(n notify.Notifier) {
	s.mu.Lock()
	s.current = n
	s.mu.Unlock()
}

func (s *swapNotifier) Send(mt notify.MessageType, detail string) {
	s.mu.RLock()
	n := s.current
	s.mu.RUnlock()
	n.Send(mt, detail)
}

func (s *swapNotifier) Error(msg string) {
	s.mu.RLock()
	n := s.current
	s.mu.RUnlock()
	n.Error(msg)
}

type remoteEngine struct{}

func (remoteEngine) Plan(context.Context, string, string) (string, error) {
	return "", errRemoteEngine
}

func (remoteEngine) Apply(context.Context, string, string, string) (string, error) {
	return "", errRemoteEngine
}
