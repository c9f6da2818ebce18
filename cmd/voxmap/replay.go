package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/config"
	logpkg "github.com/kailas-cloud/voxmap/internal/logger"
)

// interimPrefix marks a transcript line as an interim fragment.
const interimPrefix = "~"

func replayCmd() *cobra.Command {
	var (
		env      string
		topic    string
		logLevel string
		noAI     bool
	)

	cmd := &cobra.Command{
		Use:   "replay <transcript|->",
		Short: "Feed a transcript through the pipeline and print the resulting map",
		Long: `Reads one fragment per line and feeds it to a fresh session. Lines starting
with "~" are interim fragments, every other non-empty line is final. Without a
config file the replay runs on the in-memory store with the local fallback.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadReplayConfig(env)
			if err != nil {
				return err
			}
			logger, err := logpkg.NewLogger("local", logLevel)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			in, closeIn, err := openTranscript(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer closeIn()

			return replay(cmd.Context(), cfg, logger, in, cmd.OutOrStdout(), topic, !noAI)
		},
	}

	cmd.Flags().StringVar(&env, "env", "", "Config environment; empty runs on the in-memory store")
	cmd.Flags().StringVar(&topic, "topic", "", "Main topic of the session (required)")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "Classify with the local fallback only")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}

func loadReplayConfig(env string) (config.Config, error) {
	if env == "" {
		return defaultConfig(), nil
	}
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openTranscript(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, nil, fmt.Errorf("open transcript: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func replay(
	ctx context.Context, cfg config.Config, logger *zap.Logger,
	in io.Reader, out io.Writer, topic string, aiEnabled bool,
) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(logger)

	snap, err := a.session.Start(ctx, topic, aiEnabled)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	fragments, feedErr := feedTranscript(ctx, a.session, in)

	// Stop even after a feed error so the words already pushed are drained.
	if _, err := a.session.Stop(ctx); err != nil {
		return errors.Join(feedErr, fmt.Errorf("stop session: %w", err))
	}
	if feedErr != nil {
		return feedErr
	}
	if err := a.enrich.Wait(ctx); err != nil {
		logger.Warn("Pending research abandoned", zap.Error(err))
	}

	m, err := a.graph.GetMap(ctx, snap.Target.MapID)
	if err != nil {
		return fmt.Errorf("get map: %w", err)
	}
	nodes, err := a.graph.ListNodes(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("list nodes: %w", err)
	}

	logger.Info("Replay finished",
		zap.String("map_id", m.ID),
		zap.Int("fragments", fragments),
		zap.Int("nodes", len(nodes)),
	)
	return printTree(out, m, nodes)
}

// fragmentSink accepts transcript fragments.
type fragmentSink interface {
	OnFinalFragment(ctx context.Context, text string) error
	OnInterimFragment(ctx context.Context, text string) error
}

// feedTranscript pushes every line of in and returns the number of fragments sent.
func feedTranscript(ctx context.Context, sink fragmentSink, in io.Reader) (int, error) {
	sc := bufio.NewScanner(in)
	n, lineNo := 0, 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var err error
		if text, ok := strings.CutPrefix(line, interimPrefix); ok {
			err = sink.OnInterimFragment(ctx, strings.TrimSpace(text))
		} else {
			err = sink.OnFinalFragment(ctx, line)
		}
		if err != nil {
			return n, fmt.Errorf("line %d: %w", lineNo, err)
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("read transcript: %w", err)
	}
	return n, nil
}
