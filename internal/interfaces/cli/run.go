package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/macaw-metabolics/macaw/internal/application/battery"
	"github.com/macaw-metabolics/macaw/internal/checks/duplicate"
	"github.com/macaw-metabolics/macaw/internal/checks/report"
	"github.com/macaw-metabolics/macaw/internal/config"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/monitoring/logging"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/monitoring/prometheus"
	"github.com/macaw-metabolics/macaw/internal/infrastructure/solver"
)

// runOptions holds the run subcommand's flags.
type runOptions struct {
	ModelPath   string
	OutPrefix   string
	Threads     int
	MetricsAddr string
}

// newRunCommand builds `macaw run`, the battery driver: load a model, run
// every test, write `<out>_test-results.csv` and `<out>_edge-list.csv`.
func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all consistency tests against a model",
		Example: "  macaw run --model iML1515.json --out figure_data/iML1515 --threads 8\n" +
			"  macaw run -c macaw.yaml --model yeast-GEM.json --out yeast",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBattery(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.ModelPath, "model", "m", "", "path to the model JSON file (required)")
	flags.StringVarP(&opts.OutPrefix, "out", "o", "", "output file prefix (required)")
	flags.IntVarP(&opts.Threads, "threads", "t", 0, "worker threads (overrides config)")
	flags.StringVar(&opts.MetricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runBattery(cmd *cobra.Command, opts *runOptions) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	log := cc.Logger.Named("cli")

	model, err := LoadModel(opts.ModelPath)
	if err != nil {
		return err
	}
	log.Info("model loaded",
		logging.String("model", model.ID),
		logging.Int("metabolites", len(model.Metabolites())),
		logging.Int("reactions", len(model.Reactions())))

	metrics := prometheus.New()
	if opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(opts.MetricsAddr, mux); err != nil {
				log.Warn("metrics endpoint stopped", logging.Err(err))
			}
		}()
		log.Info("serving metrics", logging.String("addr", opts.MetricsAddr))
	}

	// A SIGINT/SIGTERM cancels all outstanding workers within one LP
	// quantum.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	threads := cc.Config.Worker.Threads
	if opts.Threads > 0 {
		threads = opts.Threads
	}

	b := battery.New(solver.NewSimplex(metrics), cc.Logger, metrics)
	out, err := b.RunAll(ctx, model, batteryConfig(cc.Config, threads))
	if err != nil {
		return err
	}

	resultsPath := opts.OutPrefix + "_test-results.csv"
	edgesPath := opts.OutPrefix + "_edge-list.csv"
	if err := writeCSV(resultsPath, out.Table.WriteCSV); err != nil {
		return err
	}
	if err := writeCSV(edgesPath, func(w io.Writer) error {
		return report.WriteEdgeCSV(w, out.Edges)
	}); err != nil {
		return err
	}

	log.Info("results written",
		logging.String("results", resultsPath),
		logging.String("edges", edgesPath),
		logging.Int("pathways", out.Pathways.Components))
	return nil
}

// batteryConfig maps the file/env configuration onto the battery's knobs.
func batteryConfig(cfg *config.Config, threads int) battery.Config {
	pairs := make([]duplicate.RedoxPair, 0, len(cfg.Tests.RedoxPairs))
	for _, p := range cfg.Tests.RedoxPairs {
		if len(p) == 2 {
			pairs = append(pairs, duplicate.RedoxPair{Oxidized: p[0], Reduced: p[1]})
		}
	}
	return battery.Config{
		MediaMets:       cfg.Tests.Media,
		RedoxPairs:      pairs,
		ProtonIDs:       cfg.Tests.ProtonIDs,
		PpiIDs:          cfg.Tests.PpiIDs,
		PiIDs:           cfg.Tests.PiIDs,
		ZeroThresh:      cfg.Solver.ZeroThresh,
		CorrThresh:      cfg.Tests.Loop.CorrThresh,
		LoopSamples:     cfg.Tests.Loop.Samples,
		Seed:            cfg.Tests.Loop.Seed,
		DilutionTimeout: cfg.Tests.Dilution.Timeout,
		SolveTimeout:    cfg.Solver.SolveTimeout,
		MaxAttempts:     cfg.Solver.MaxAttempts,
		Threads:         threads,
		DilFactor:       cfg.Tests.Dilution.DilFactor,
		LeakFlux:        cfg.Tests.Dilution.LeakFlux,
		UseNames:        cfg.Tests.UseNames,
		AddSuffixes:     cfg.Tests.AddSuffixes,
	}
}

func writeCSV(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cli: creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
