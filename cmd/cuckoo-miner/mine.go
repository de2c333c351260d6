package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cuckoominer/internal/miner"
	"cuckoominer/internal/statusapi"
	"cuckoominer/pkg/mining/discovery"
	"cuckoominer/pkg/mining/factory"
	"cuckoominer/pkg/mining/worker"
)

// headerSize is the pre-pow header length used when no template is given
const headerSize = 80

type mineOptions struct {
	header      string
	nonceOffset int
	startNonce  uint64
	solutions   uint64
	attempts    uint64
	listen      string
	asJSON      bool
}

func newMineCommand(opts *rootOptions) *cobra.Command {
	mo := &mineOptions{}

	cmd := &cobra.Command{
		Use:     "mine",
		Short:   "construct a worker and mine successive header nonces",
		Example: "cuckoo-miner mine --sizeshift 16 --solutions 3 --listen 127.0.0.1:9100",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMine(cmd, opts, mo)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&mo.header, "header", "", "hex header template (default: 80 zero bytes)")
	flags.IntVar(&mo.nonceOffset, "nonce-offset", -1, "byte offset of the u64 nonce (default: last 8 bytes)")
	flags.Uint64Var(&mo.startNonce, "start-nonce", 0, "first nonce to try")
	flags.Uint64Var(&mo.solutions, "solutions", 1, "stop after this many proofs (0 = run until interrupted)")
	flags.Uint64Var(&mo.attempts, "attempts", 0, "stop after this many headers (0 = unbounded)")
	flags.StringVar(&mo.listen, "listen", "", "status API address, overrides the config")
	flags.BoolVar(&mo.asJSON, "json", false, "print solutions as JSON lines")
	return cmd
}

func runMine(cmd *cobra.Command, opts *rootOptions, mo *mineOptions) error {
	cfg, err := opts.load(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	params, err := cfg.Params()
	if err != nil {
		return err
	}
	baseDir, err := resolveBaseDir(cfg)
	if err != nil {
		return err
	}

	template := make([]byte, headerSize)
	if mo.header != "" {
		if template, err = hex.DecodeString(mo.header); err != nil {
			return fmt.Errorf("decode --header: %w", err)
		}
	}
	offset := mo.nonceOffset
	if offset < 0 {
		offset = len(template) - 8
	}
	headers, err := miner.NewNonceHeaders(template, offset, mo.startNonce)
	if err != nil {
		return err
	}

	// each rebuild gets a fresh factory so discovery runs again
	var current atomic.Pointer[factory.EngineFactory]
	build := func() (miner.Worker, error) {
		f := factory.NewEngineFactory(cfg.Selection(), discovery.NewDirHost(logger), factory.WithLogger(logger))
		current.Store(f)
		w, err := worker.New(params,
			worker.WithFactory(f),
			worker.WithBaseDir(baseDir),
			worker.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return w, nil
	}

	out := cmd.OutOrStdout()
	loop := miner.New(build, headers,
		miner.WithLogger(logger),
		miner.WithMaxReinit(cfg.MaxReinit),
		miner.WithMaxSolutions(mo.solutions),
		miner.WithMaxAttempts(mo.attempts),
		miner.WithSolutionHandler(func(s miner.Solution) error {
			if mo.asJSON {
				return json.NewEncoder(out).Encode(s)
			}
			fmt.Fprintf(out, "%s nonce=%d %s\n", okStyle.Render("solution"), s.Nonce, s.Proof)
			return nil
		}))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listen := cfg.Listen
	if cmd.Flags().Changed("listen") {
		listen = mo.listen
	}
	if listen != "" {
		report := func() *factory.DetectionReport {
			f := current.Load()
			if f == nil {
				return nil
			}
			return f.GetDetectionReport(params)
		}
		server := statusapi.New(params, loop, report, logger)

		serverCtx, cancelServer := context.WithCancel(ctx)
		defer cancelServer()
		go func() {
			if err := server.Run(serverCtx, listen); err != nil {
				logger.Error("status API failed", zap.Error(err))
			}
		}()
	}

	logger.Info("mining started",
		zap.String("tag", params.Tag()),
		zap.String("base_dir", baseDir),
		zap.Strings("preferred_order", cfg.PreferredOrder))

	err = loop.Run(ctx)
	stats := loop.Stats()
	logger.Info("mining stopped",
		zap.Uint64("attempts", stats.Attempts),
		zap.Uint64("solutions", stats.Solutions),
		zap.Uint64("faults", stats.Faults),
		zap.Uint64("reinits", stats.Reinits))

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
