// Package supervisor wires the loaded configuration and repository into a
// running bridge: it connects the MQTT adapter, opens the transport (or
// replays a captured dump file in dry-run mode), starts the ingress
// processor and the egress producer/poller, and runs until its context is
// cancelled. Grounded on cmd/modbus-poller/main.go's wiring shape (build
// components, start a consumer goroutine, block on signal.NotifyContext).
package supervisor

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hpbridge/nasa-ehs-bridge/internal/config"
	"github.com/hpbridge/nasa-ehs-bridge/internal/mqttadapter"
	"github.com/hpbridge/nasa-ehs-bridge/internal/nasa"
	"github.com/hpbridge/nasa-ehs-bridge/internal/poller"
	"github.com/hpbridge/nasa-ehs-bridge/internal/processor"
	"github.com/hpbridge/nasa-ehs-bridge/internal/producer"
	"github.com/hpbridge/nasa-ehs-bridge/internal/repository"
	"github.com/hpbridge/nasa-ehs-bridge/internal/transport"

	"golang.org/x/sync/errgroup"
)

// Options carries the CLI flags that affect how a Supervisor runs, as
// opposed to the YAML configuration.
type Options struct {
	// DryRun replays frames read from DumpFile through the ingress path
	// instead of opening a real transport. No writes (polling, inbound
	// MQTT commands) are possible while DryRun is set.
	DryRun bool
	// DumpFile is the frame capture file: read from in DryRun mode,
	// appended to (one reassembled frame at a time) otherwise when set.
	DumpFile string
	// CleanKnownDevices clears the adapter's known-devices state once
	// connected, implementing the --clean-known-devices CLI flag.
	CleanKnownDevices bool
}

// Supervisor owns every long-lived component of a running bridge.
type Supervisor struct {
	logger *zap.Logger
	cfg    *config.Config
	repo   *repository.Repository
	opts   Options

	adapter   *mqttadapter.Adapter
	transport *transport.Transport
	proc      *processor.Processor
	prod      *producer.Producer
	poll      *poller.Poller

	dumpFile *os.File
}

// New builds every component but does not connect or open anything; call
// Run to start the bridge.
func New(logger *zap.Logger, cfg *config.Config, repo *repository.Repository, opts Options) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Supervisor{logger: logger, cfg: cfg, repo: repo, opts: opts}

	var protocolLog *os.File
	if cfg.General.ProtocolFile != "" {
		f, err := os.OpenFile(cfg.General.ProtocolFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Warn("failed to open protocol log, continuing without it", zap.Error(err))
		} else {
			protocolLog = f
		}
	}

	s.adapter = mqttadapter.New(mqttadapter.Config{
		Logger:        logger,
		BrokerURL:     fmt.Sprintf("tcp://%s:%d", cfg.MQTT.BrokerURL, cfg.MQTT.BrokerPort),
		ClientID:      cfg.MQTT.ClientID,
		Username:      cfg.MQTT.User,
		Password:      cfg.MQTT.Password,
		TopicPrefix:   cfg.MQTT.TopicPrefix,
		DiscoveryRoot: cfg.MQTT.HomeAssistantAutoDiscoverTopic,
		UseCamelCase:  cfg.MQTT.UseCamelCaseTopicNames,
		AllowControl:  cfg.General.AllowControl,
		OnCommand:     s.handleCommand,
	})

	procConf := processor.Config{
		Logger:           logger,
		LogUnknownPoints: cfg.Logging.MessageNotFound,
	}
	if protocolLog != nil {
		procConf.ProtocolLog = &protocolLogWriter{f: protocolLog}
	}
	s.proc = processor.New(repo, s.adapter, procConf)

	s.prod = producer.New(producer.Config{
		Logger: logger,
		Sender: &lazySender{get: func() producer.Sender {
			if s.transport == nil {
				return nil
			}
			return s.transport
		}},
		Repo: repo,
	})

	s.poll = poller.New(poller.Config{
		Logger: logger,
		Groups: pollerGroups(cfg),
		Read:   s.prod.Read,
	})

	return s
}

// protocolLogWriter lets os.File satisfy io.Writer for processor.Config
// without exposing *os.File directly. The supervisor does not close the
// file; it stays open for the life of the process.
type protocolLogWriter struct{ f *os.File }

func (w *protocolLogWriter) Write(p []byte) (int, error) { return w.f.Write(p) }

// lazySender defers resolving the real transport.Transport until Send is
// first called, since the transport is only opened once Run starts (New
// must be callable before dialing to keep component construction ordering
// simple and testable).
type lazySender struct {
	get func() producer.Sender
}

func (l *lazySender) Send(ctx context.Context, frame []byte) error {
	sender := l.get()
	if sender == nil {
		return fmt.Errorf("supervisor: transport not open")
	}
	return sender.Send(ctx, frame)
}

func pollerGroups(cfg *config.Config) []poller.Group {
	if cfg.Polling == nil {
		return nil
	}
	groups := make([]poller.Group, 0, len(cfg.Polling.FetchInterval))
	for _, fi := range cfg.Polling.FetchInterval {
		groups = append(groups, poller.Group{
			Name:     fi.Name,
			Points:   cfg.Polling.Groups[fi.Name],
			Interval: fi.Interval,
			Enabled:  fi.Enable,
		})
	}
	return groups
}

// handleCommand is the mqttadapter.CommandHandler wired at construction; it
// writes in the background so the paho message-handler goroutine is never
// blocked on bus pacing.
func (s *Supervisor) handleCommand(point, payload string) {
	if s.opts.DryRun {
		s.logger.Warn("ignoring inbound command in dry-run mode", zap.String("point", point))
		return
	}
	go func() {
		if err := s.prod.Write(context.Background(), point, payload, true); err != nil {
			s.logger.Warn("failed to process command", zap.String("point", point), zap.Error(err))
		}
	}()
}

// Run connects to MQTT, opens the transport (or loads the dump file replay
// in dry-run mode), and blocks until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.adapter.Connect(); err != nil {
		return fmt.Errorf("supervisor: connecting to mqtt broker: %w", err)
	}
	defer s.adapter.Close()

	if s.opts.CleanKnownDevices {
		s.adapter.CleanKnownDevices()
	}

	if s.opts.DryRun {
		return s.runDryRun(ctx)
	}
	return s.runLive(ctx)
}

func (s *Supervisor) runLive(ctx context.Context) error {
	var err error
	switch {
	case s.cfg.Serial != nil:
		s.transport, err = transport.NewSerialTransport(ctx, s.logger, transport.SerialConfig{
			Device: s.cfg.Serial.Device,
			Baud:   s.cfg.Serial.Baudrate,
		})
	case s.cfg.TCP != nil:
		s.transport, err = transport.NewTCPTransport(ctx, s.logger, fmt.Sprintf("%s:%d", s.cfg.TCP.IP, s.cfg.TCP.Port))
	default:
		return fmt.Errorf("supervisor: no transport configured")
	}
	if err != nil {
		return fmt.Errorf("supervisor: opening transport: %w", err)
	}
	defer s.transport.Close()

	if s.opts.DumpFile != "" {
		f, err := os.OpenFile(s.opts.DumpFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			s.logger.Warn("failed to open dump file, continuing without capture", zap.Error(err))
		} else {
			s.dumpFile = f
			defer f.Close()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.consumeFrames(s.transport.Frames())
		if gctx.Err() != nil {
			return nil // shutting down, frame channel closing is expected
		}
		return fmt.Errorf("supervisor: transport connection closed unexpectedly")
	})
	g.Go(func() error {
		// Closing the transport on shutdown closes its frame channel, which
		// ends consumeFrames above.
		<-gctx.Done()
		_ = s.transport.Close()
		return nil
	})
	g.Go(func() error { return s.poll.Start(gctx) })
	return g.Wait()
}

// runDryRun replays every frame contained in DumpFile through the ingress
// path without opening a real transport or running the poller, matching
// spec.md §4.8's "feed recorded frames back through decode for debugging".
func (s *Supervisor) runDryRun(ctx context.Context) error {
	data, err := os.ReadFile(s.opts.DumpFile)
	if err != nil {
		return fmt.Errorf("supervisor: reading dump file: %w", err)
	}

	reader := nasa.NewFrameReader(s.logger)
	frames := reader.Feed(data)
	s.logger.Info("dry run: replaying captured frames", zap.Int("frame_count", len(frames)))

	for _, frame := range frames {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		pkt, err := nasa.Parse(frame)
		if err != nil {
			s.logger.Warn("dry run: failed to parse frame, skipping", zap.Error(err))
			continue
		}
		s.proc.Process(pkt)
	}
	return nil
}

func (s *Supervisor) consumeFrames(frames <-chan []byte) {
	for frame := range frames {
		if s.dumpFile != nil {
			if _, err := s.dumpFile.Write(frame); err != nil {
				s.logger.Warn("failed to write dump file capture", zap.Error(err))
			}
		}
		pkt, err := nasa.Parse(frame)
		if err != nil {
			s.logger.Warn("failed to parse frame, dropping", zap.Error(err))
			continue
		}
		s.proc.Process(pkt)
	}
}
