// epictl launches a small fleet of self-contained demo workers, drives
// them through a handful of step cycles via the Env Process Interface,
// and serves a live status feed over a websocket while it runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"gopkg.in/alecthomas/kingpin.v2"

	rlgymlearn "github.com/Martico2432/rlgym-learn"
	"github.com/Martico2432/rlgym-learn/internal/fakeworker"
	"github.com/Martico2432/rlgym-learn/internal/rawcodec"
	"github.com/Martico2432/rlgym-learn/pkg/epiconfig"
	"github.com/Martico2432/rlgym-learn/pkg/ipc"
	"github.com/Martico2432/rlgym-learn/pkg/logx"
)

const demoPayloadSize = 4096

type arguments struct {
	configPath string
	numWorkers int
	agentsEach int
	numSteps   int
	statusAddr string
	logLevel   string
}

func parseArgs(args []string) (*arguments, error) {
	app := kingpin.New("epictl", "Drives a demo fleet of worker processes through the Env Process Interface.")
	configPath := app.Flag("config", "Path to a YAML config file.").Default("").String()
	numWorkers := app.Flag("workers", "Number of demo worker processes to launch.").Default("4").Int()
	agentsEach := app.Flag("agents", "Number of agents simulated per worker.").Default("2").Int()
	numSteps := app.Flag("steps", "Number of step cycles to run before exiting.").Default("20").Int()
	statusAddr := app.Flag("status-addr", "Address to serve the live status feed on.").Default("127.0.0.1:8787").String()
	logLevel := app.Flag("log-level", "Minimum level for emitted log lines.").Default("info").Enum("debug", "info", "warn", "error")

	if _, err := app.Parse(args); err != nil {
		return nil, err
	}
	return &arguments{
		configPath: *configPath,
		numWorkers: *numWorkers,
		agentsEach: *agentsEach,
		numSteps:   *numSteps,
		statusAddr: *statusAddr,
		logLevel:   *logLevel,
	}, nil
}

func main() {
	kingpin.Version("0.1.0")
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		kingpin.Fatalf("failed to parse arguments: %s, try --help", err)
	}

	if err := run(args); err != nil {
		fmt.Fprintln(os.Stderr)
		kingpin.Fatalf("%s", err)
	}
}

func run(args *arguments) error {
	cfg, err := epiconfig.Load(args.configPath)
	if err != nil {
		return errors.WithMessage(err, "load config")
	}
	cfg.FlinksFolder = filepath.Join(os.TempDir(), fmt.Sprintf("epictl-%d", os.Getpid()))
	if err := os.MkdirAll(cfg.FlinksFolder, 0o755); err != nil {
		return errors.WithMessage(err, "create flinks folder")
	}
	defer os.RemoveAll(cfg.FlinksFolder)

	logger, err := newLogger(args.logLevel)
	if err != nil {
		return errors.WithMessage(err, "build logger")
	}

	codecs := rlgymlearn.Codecs{
		// AgentID uses Str rather than Bytes: the coordinator keys its
		// terminated/truncated maps by agent id, and []byte is not a
		// valid map key.
		AgentID:      rawcodec.Str(),
		Action:       rawcodec.Bytes(),
		Obs:          rawcodec.Bytes(),
		Reward:       rawcodec.Bytes(),
		ObsSpace:     rawcodec.Bytes(),
		ActionSpace:  rawcodec.Bytes(),
		State:        rawcodec.Bytes(),
		StateMetrics: rawcodec.Bytes(),
	}

	epi, err := rlgymlearn.New(cfg, codecs, logger, demoPayloadSize)
	if err != nil {
		return errors.WithMessage(err, "construct EnvProcessInterface")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defs, err := launchDemoFleet(ctx, cfg, args)
	if err != nil {
		return errors.WithMessage(err, "launch demo fleet")
	}
	if err := epi.InitProcesses(defs); err != nil {
		return errors.WithMessage(err, "init processes")
	}
	logger.Log(logx.LevelInfo, "fleet initialized", "workers", len(defs))

	status := newStatusServer(args.statusAddr, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return status.Run(gctx)
	})
	g.Go(func() error {
		defer status.Close()
		return driveDemoLoop(gctx, epi, defs, args.numSteps, args.agentsEach, status, logger)
	})

	err = g.Wait()
	if cerr := epi.Cleanup(); cerr != nil {
		logger.Log(logx.LevelWarn, "cleanup error", "err", cerr)
	}
	if err != nil && errors.Cause(err) != context.Canceled {
		return err
	}
	return nil
}

func newLogger(level string) (logx.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapLevel)
	z, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logx.NewZapLogger(z), nil
}

func launchDemoFleet(ctx context.Context, cfg epiconfig.Config, args *arguments) ([]rlgymlearn.ProcessDef, error) {
	defs := make([]rlgymlearn.ProcessDef, 0, args.numWorkers)
	for i := 0; i < args.numWorkers; i++ {
		procID := fmt.Sprintf("worker-%d", i)

		// Each worker gets its own parent-side socket: the readiness
		// selector registers one socket per worker, so sharing a single
		// socket across the fleet would make every worker's readiness
		// notification indistinguishable from every other's.
		parentConn, parentAddr, err := ipc.NewUnixgramSocket(filepath.Join(cfg.FlinksFolder, procID+"-parent.sock"))
		if err != nil {
			return nil, errors.Wrapf(err, "bind parent socket for %s", procID)
		}

		childAddr, err := fakeworker.Start(ctx, fakeworker.Config{
			ProcID:        procID,
			Flink:         ipc.GetFlink(cfg.FlinksFolder, procID),
			ChildSockPath: filepath.Join(cfg.FlinksFolder, procID+".sock"),
			ParentAddr:    parentAddr,
			PayloadSize:   demoPayloadSize,
			NumAgents:     args.agentsEach,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "start worker %s", procID)
		}
		defs = append(defs, rlgymlearn.ProcessDef{
			ParentConn: parentConn,
			ChildAddr:  childAddr,
			ProcID:     procID,
		})
	}
	return defs, nil
}

func driveDemoLoop(ctx context.Context, epi *rlgymlearn.EnvProcessInterface, defs []rlgymlearn.ProcessDef, numSteps, agentsEach int, status *statusServer, logger logx.Logger) error {
	actions := map[string]rlgymlearn.EnvAction{}
	for _, def := range defs {
		actions[def.ProcID] = rlgymlearn.NewResetAction()
	}
	if err := epi.SendEnvActions(actions); err != nil {
		return err
	}
	if _, _, _, _, err := epi.CollectStepData(); err != nil {
		return err
	}

	for step := 0; step < numSteps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		stepActions := map[string]rlgymlearn.EnvAction{}
		for _, def := range defs {
			stepActions[def.ProcID] = rlgymlearn.NewStepAction(demoActions(agentsEach), nil)
		}
		if err := epi.SendEnvActions(stepActions); err != nil {
			return err
		}

		n, _, timestepData, _, err := epi.CollectStepData()
		if err != nil {
			return err
		}
		status.publish(statusSnapshot{Step: step, Timesteps: n})
		logger.Log(logx.LevelInfo, "step complete", "step", step, "timesteps", n, "workers_reporting", len(timestepData))

		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func demoActions(n int) []any {
	actions := make([]any, n)
	for i := range actions {
		actions[i] = []byte("noop")
	}
	return actions
}
