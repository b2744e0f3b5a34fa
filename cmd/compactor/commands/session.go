package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/compactor/pkg/backend"
	"github.com/Sumatoshi-tech/compactor/pkg/config"
	"github.com/Sumatoshi-tech/compactor/pkg/observability"
	"github.com/Sumatoshi-tech/compactor/pkg/progress"
	"github.com/Sumatoshi-tech/compactor/pkg/terminal"
	"github.com/Sumatoshi-tech/compactor/pkg/version"
)

// session is everything one command invocation needs.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	backend   *backend.Backend
	diag      *observability.DiagnosticsServer
	term      terminal.Config
	reporter  progress.Reporter
	logger    *slog.Logger
}

// loadConfig reads the configuration and applies the logging flags.
func loadConfig(cmd *cobra.Command, g *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed(flagLogLevel) {
		_, levelErr := observability.ParseLevel(g.logLevel)
		if levelErr != nil {
			return nil, levelErr
		}

		cfg.Logging.Level = g.logLevel
	}

	if cmd.Flags().Changed(flagLogJSON) {
		cfg.Logging.JSON = g.logJSON
	}

	return cfg, nil
}

func observabilityConfig(cfg *config.Config, g *globalOptions) (observability.Config, error) {
	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Config{}, err
	}

	oc := observability.DefaultConfig()
	oc.ServiceVersion = version.Version
	oc.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	oc.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	oc.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	oc.Mode = observability.ModeCLI
	oc.Prometheus = g.metricsAddr != ""
	oc.LogLevel = level
	oc.LogJSON = cfg.Logging.JSON

	if level == slog.LevelDebug {
		oc.DebugTrace = true
	}

	return oc, nil
}

func openSession(cmd *cobra.Command, g *globalOptions) (*session, error) {
	cfg, err := loadConfig(cmd, g)
	if err != nil {
		return nil, err
	}

	oc, err := observabilityConfig(cfg, g)
	if err != nil {
		return nil, err
	}

	stderr := cmd.ErrOrStderr()

	providers, err := observability.InitWithWriter(oc, stderr)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	s := &session{cfg: cfg, providers: providers, logger: providers.Logger}

	metrics, err := observability.NewCompactionMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, s.close())
	}

	s.backend, err = backend.New(cfg,
		backend.WithLogger(providers.Logger),
		backend.WithTracer(providers.Tracer),
		backend.WithMetrics(metrics),
	)
	if err != nil {
		return nil, errors.Join(err, s.close())
	}

	if g.metricsAddr != "" {
		s.diag, err = observability.NewDiagnosticsServer(g.metricsAddr, providers.MetricsHandler,
			observability.ReadyCheck{Name: "state", Check: stateDirCheck(cfg.State.Dir)})
		if err != nil {
			return nil, errors.Join(err, s.close())
		}

		s.logger.Info("diagnostics listening", "addr", s.diag.Addr())
	}

	s.term = terminal.NewConfig()
	if g.noColor {
		s.term.NoColor = true
	}

	s.reporter = newReporter(stderr, s.term, g.silent, cfg.Decimal)

	return s, nil
}

// stateDirCheck fails while the state directory cannot be created.
func stateDirCheck(dir string) func(context.Context) error {
	return func(context.Context) error {
		return os.MkdirAll(dir, stateDirPerm)
	}
}

const stateDirPerm = 0o750

func newReporter(w io.Writer, term terminal.Config, silent, decimal bool) progress.Reporter {
	if silent {
		return progress.Nop{}
	}

	live := false
	if f, ok := w.(*os.File); ok {
		live = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	if !live {
		term.NoColor = true
	}

	return terminal.NewReporter(w, term, live, decimal)
}

func (s *session) close() error {
	var errs []error

	if s.backend != nil {
		errs = append(errs, s.backend.Close())
	}

	if s.diag != nil {
		errs = append(errs, s.diag.Close())
	}

	if s.providers.Shutdown != nil {
		errs = append(errs, s.providers.Shutdown(context.Background()))
	}

	return errors.Join(errs...)
}
