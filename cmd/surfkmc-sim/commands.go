package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/daniacca/surfkmc/internal/kmc"
	"github.com/daniacca/surfkmc/internal/logging"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type rootOptions struct {
	logLevel string
	noColor  bool
}

type runOptions struct {
	replicas int
	parallel int
	seed     int64
	outDir   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "surfkmc-sim",
		Short:         "Kinetic Monte Carlo simulation of surface reaction mechanisms",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("SURFKMC_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored log output")

	root.AddCommand(newRunCmd(opts), newValidateCmd(opts), newVersionCmd())
	return root
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	return logging.New(w, o.logLevel, o.noColor)
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Run a simulation config (JSON or YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := kmc.LoadSimulationConfig(args[0])
			if err != nil {
				return err
			}
			logger := root.logger(cmd.ErrOrStderr())
			return runReplicas(cmd, cfg, *opts, logger)
		},
	}
	cmd.Flags().IntVar(&opts.replicas, "replicas", 1, "independent runs, each seeded with seed+i")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 0, "maximum replicas running at once (0 = all)")
	cmd.Flags().Int64Var(&opts.seed, "seed", -1, "override the config seed (negative keeps it)")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "directory for output files (default: paths in the config)")
	return cmd
}

// runReplicas runs every replica in its own engine and stops at the first
// failure.
func runReplicas(cmd *cobra.Command, cfg kmc.SimulationConfig, opts runOptions, logger *slog.Logger) error {
	if opts.replicas < 1 {
		return fmt.Errorf("replicas must be >= 1, got %d", opts.replicas)
	}
	if opts.seed >= 0 {
		cfg.KMC.Seed = uint64(opts.seed)
	}
	base := cfg.ID
	if base == "" {
		base = cfg.Mechanism.Name
	}

	if opts.replicas > 1 && cfg.Output.File == "" {
		if opts.outDir == "" {
			logger.Warn("several replicas and no output file: replica rows are not written; set output.file or --out",
				"replicas", opts.replicas)
		} else {
			logger.Info("replica rows go to the output directory",
				"pattern", filepath.Join(opts.outDir, replicaPath(defaultOutputFile, 0, opts.replicas)))
		}
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	if opts.parallel > 0 {
		g.SetLimit(opts.parallel)
	}
	for i := range opts.replicas {
		rc := cfg
		rc.ID = base
		if opts.replicas > 1 {
			rc.ID = fmt.Sprintf("%s-%d", base, i)
		}
		rc.KMC.Seed = cfg.KMC.Seed + uint64(i)

		g.Go(func() error {
			outputs, err := openOutputs(rc, i, opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer outputs.Close()

			sim, err := kmc.BuildSimulation(rc, kmc.SimulationOptions{
				Logger:  logging.NewAdapter(logger.With("replica", i)),
				Output:  outputs.output,
				Surface: outputs.surface,
				Counter: outputs.counter,
			})
			if err != nil {
				return fmt.Errorf("replica %d: %w", i, err)
			}
			if err := sim.Run(ctx); err != nil {
				return fmt.Errorf("replica %d: %w", i, err)
			}
			st := sim.Status()
			logger.Info("replica finished", "replica", i, "id", st.ID, "x", st.X, "steps", st.Steps)
			return nil
		})
	}
	return g.Wait()
}

// replicaOutputs owns the files a replica writes to.
type replicaOutputs struct {
	output  io.Writer
	surface io.Writer
	counter io.Writer
	files   []*os.File
}

func (o *replicaOutputs) Close() {
	for _, f := range o.files {
		_ = f.Close()
	}
}

func (o *replicaOutputs) create(path string) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	o.files = append(o.files, f)
	return f, nil
}

// defaultOutputFile names the rows file of each replica under --out when
// the config has none.
const defaultOutputFile = "output.dat"

// openOutputs creates the output, surface and counter files of replica i.
// With a single replica and no output file, rows go to stdout; with several
// they go to defaultOutputFile under --out.
func openOutputs(cfg kmc.SimulationConfig, i int, opts runOptions, stdout io.Writer) (*replicaOutputs, error) {
	out := &replicaOutputs{}
	var err error
	rows := cfg.Output.File
	if rows == "" && opts.replicas > 1 && opts.outDir != "" {
		rows = defaultOutputFile
	}
	paths := []struct {
		path string
		dst  *io.Writer
	}{
		{rows, &out.output},
		{cfg.KMC.SurfaceFile, &out.surface},
		{cfg.KMC.CounterFile, &out.counter},
	}
	for _, p := range paths {
		if p.path == "" {
			continue
		}
		path := replicaPath(p.path, i, opts.replicas)
		if opts.outDir != "" {
			path = filepath.Join(opts.outDir, filepath.Base(path))
		}
		if *p.dst, err = out.create(path); err != nil {
			out.Close()
			return nil, err
		}
	}
	if out.output == nil && opts.replicas == 1 {
		out.output = stdout
	}
	return out, nil
}

// replicaPath inserts ".r<i>" before the extension when there are several
// replicas.
func replicaPath(path string, i, n int) string {
	if n <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.r%d%s", strings.TrimSuffix(path, ext), i, ext)
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>...",
		Short: "Validate simulation configs and build their engines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := root.logger(cmd.ErrOrStderr())
			failed := 0
			for _, path := range args {
				cfg, err := kmc.LoadSimulationConfig(path)
				if err == nil {
					_, err = kmc.BuildSimulation(cfg, kmc.SimulationOptions{})
				}
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: INVALID: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d species, %d reactions)\n",
					path, len(cfg.Mechanism.Species), len(cfg.Mechanism.Reactions))
			}
			logger.Debug("validation finished", "files", len(args), "failed", failed)
			if failed > 0 {
				return fmt.Errorf("%d of %d configs invalid", failed, len(args))
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "surfkmc-sim %s\n", version)
		},
	}
}
