package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/odeint/internal/automation"
	"github.com/san-kum/odeint/internal/config"
	"github.com/san-kum/odeint/internal/experiment"
	"github.com/san-kum/odeint/internal/export"
	"github.com/san-kum/odeint/internal/integrators"
	"github.com/san-kum/odeint/internal/sim"
	"github.com/san-kum/odeint/internal/viz"
)

var (
	logLevel string
	log      *logrus.Logger

	// run file overrides
	configFile    string
	preset        string
	method        string
	atol          float64
	rtol          float64
	dx0           float64
	dxMax         float64
	maxSteps      int
	autorestart   int
	returnOnError bool
	x0            float64
	xend          float64
	y0            []float64
	checkpoints   []float64
	params        []string

	// output
	plot      bool
	component int
	format    string

	// batches
	workers      int
	watch        bool
	sweepParam   string
	sweepMin     float64
	sweepMax     float64
	sweepPoints  int
	trials       int
	perturbation float64
	seed         int64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "odeint",
		Short: "adaptive ODE integration driver",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = config.NewLogger(logLevel)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [system]",
		Short: "integrate one system",
		Args:  cobra.ExactArgs(1),
		RunE:  runSystem,
	}
	runFileFlags(runCmd)
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot a state component")
	runCmd.Flags().IntVar(&component, "component", 0, "state component to plot or draw")
	runCmd.Flags().StringVar(&format, "format", "", "write the result to stdout (csv, json, svg)")

	methodsCmd := &cobra.Command{
		Use:   "methods",
		Short: "list integration methods",
		RunE:  listMethods,
	}

	systemsCmd := &cobra.Command{
		Use:   "systems",
		Short: "list systems and their presets",
		RunE:  listSystems,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [system]",
		Short: "list available presets for a system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for system: %s\n", args[0])
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRESET\tMETHOD\tINTERVAL\tMODE")
			for _, name := range presets {
				p := config.GetPreset(args[0], name)
				mode, span := "adaptive", fmt.Sprintf("[%g, %g]", p.X0, p.XEnd)
				if p.Predefined() {
					mode = fmt.Sprintf("%d checkpoints", len(p.Checkpoints))
					span = fmt.Sprintf("[%g, %g]", p.Checkpoints[0], p.Checkpoints[len(p.Checkpoints)-1])
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, p.Method, span, mode)
			}
			return w.Flush()
		},
	}

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run a scenario file in parallel",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().IntVar(&workers, "workers", 0, "worker count (default $"+config.EnvWorkers+")")
	batchCmd.Flags().BoolVar(&watch, "watch", false, "follow progress in the terminal")

	sweepCmd := &cobra.Command{
		Use:   "sweep [system]",
		Short: "sweep one system parameter",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	runFileFlags(sweepCmd)
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "worker count (default $"+config.EnvWorkers+")")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1, "last value")
	sweepCmd.Flags().IntVar(&sweepPoints, "points", 5, "number of values")
	_ = sweepCmd.MarkFlagRequired("param")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo [system]",
		Short: "integrate randomly perturbed initial states",
		Args:  cobra.ExactArgs(1),
		RunE:  runMonteCarlo,
	}
	runFileFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&workers, "workers", 0, "worker count (default $"+config.EnvWorkers+")")
	monteCarloCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	monteCarloCmd.Flags().Float64Var(&perturbation, "perturbation", 0.01, "largest perturbation per component")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 seeds from the clock)")

	rootCmd.AddCommand(runCmd, methodsCmd, systemsCmd, presetsCmd, batchCmd, sweepCmd, monteCarloCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runFileFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "run file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&method, "method", config.DefaultMethod, "integration method")
	f.Float64Var(&atol, "atol", config.DefaultTol, "absolute tolerance")
	f.Float64Var(&rtol, "rtol", config.DefaultTol, "relative tolerance")
	f.Float64Var(&dx0, "dx0", 0, "initial step size (0 picks one)")
	f.Float64Var(&dxMax, "dx-max", 0, "largest step size (0 is unbounded)")
	f.IntVar(&maxSteps, "max-steps", 500, "accepted steps per attempt")
	f.IntVar(&autorestart, "autorestart", 0, "restarts allowed after recoverable failures")
	f.BoolVar(&returnOnError, "return-on-error", false, "return partial results instead of failing")
	f.Float64Var(&x0, "x0", 0, "start of the interval")
	f.Float64Var(&xend, "xend", config.DefaultXEnd, "end of the interval")
	f.Float64SliceVar(&y0, "y0", nil, "initial state")
	f.Float64SliceVar(&checkpoints, "checkpoints", nil, "checkpoints (switches to predefined mode)")
	f.StringSliceVar(&params, "set", nil, "system parameter as name=value")
}

// buildConfig layers defaults, preset, run file and changed flags.
func buildConfig(cmd *cobra.Command, system string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(system, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(system))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	cfg.System = system

	f := cmd.Flags()
	if f.Changed("method") {
		cfg.Method = method
	}
	if f.Changed("atol") {
		cfg.Atol = atol
	}
	if f.Changed("rtol") {
		cfg.Rtol = rtol
	}
	if f.Changed("dx0") {
		cfg.Dx0 = dx0
	}
	if f.Changed("dx-max") {
		cfg.DxMax = dxMax
	}
	if f.Changed("max-steps") {
		cfg.MaxSteps = maxSteps
	}
	if f.Changed("autorestart") {
		cfg.Autorestart = autorestart
	}
	if f.Changed("return-on-error") {
		cfg.ReturnOnError = returnOnError
	}
	if f.Changed("x0") {
		cfg.X0 = x0
	}
	if f.Changed("xend") {
		cfg.XEnd = xend
	}
	if f.Changed("y0") {
		cfg.Y0 = y0
	}
	if f.Changed("checkpoints") {
		cfg.Checkpoints = checkpoints
	}
	for _, kv := range params {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("parameter %q is not name=value", kv)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64)
		}
		cfg.Params[name] = v
	}
	return cfg, nil
}

func runSystem(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"system": cfg.System, "method": cfg.Method}).Info("integrating")
	out, runErr := experiment.New(cfg, nil, log).Run()
	if out == nil {
		return runErr
	}
	tr := trajectoryOf(out)

	switch format {
	case "":
		fmt.Println(viz.Summary(fmt.Sprintf("%s / %s", out.System, out.Method), out.Result, out.Metrics, out.Err))
		if plot && tr != nil {
			fmt.Println(viz.Plot(tr, component, 70, 15))
		}
	case "csv":
		if tr != nil {
			if err := export.WriteCSV(os.Stdout, tr); err != nil {
				return err
			}
		}
	case "json":
		if err := export.WriteJSON(os.Stdout, export.NewDocument(out)); err != nil {
			return err
		}
	case "svg":
		if tr != nil {
			fmt.Println(export.TrajectoryToSVG(tr, -1, component, 800, 400, "#00ff88"))
		}
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	return runErr
}

func trajectoryOf(out *experiment.Outcome) *sim.Trajectory {
	if out.Result == nil {
		return nil
	}
	if len(out.Checkpoints) > 0 {
		ny := len(out.Out) / len(out.Checkpoints)
		return sim.CheckpointTrajectory(out.Checkpoints, out.Out, ny, out.Result)
	}
	return out.Result.Trajectory
}

func listMethods(cmd *cobra.Command, args []string) error {
	reg := integrators.DefaultRegistry
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tJACOBIAN")
	for _, name := range reg.Names() {
		jac := "no"
		if reg.RequiresJacobian(name) {
			jac = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\n", name, jac)
	}
	return w.Flush()
}

func listSystems(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYSTEM\tDIM\tPARAMS\tPRESETS")
	for _, name := range reg.ListSystems() {
		m, err := reg.GetSystem(name, nil)
		if err != nil {
			return err
		}
		ps := m.GetParams()
		keys := make([]string, 0, len(ps))
		for k := range ps {
			keys = append(keys, fmt.Sprintf("%s=%g", k, ps[k]))
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", name, m.NY(), strings.Join(keys, " "), strings.Join(config.ListPresets(name), " "))
	}
	return w.Flush()
}

func runner() *automation.Runner {
	return &automation.Runner{Workers: workers, Log: log}
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	r := runner()

	var outs []*experiment.Outcome
	if watch {
		outs, err = watchScenario(r, scenario)
	} else {
		outs, err = r.RunScenario(scenario)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSYSTEM\tMETHOD\tSTEPS\tNFEV\tRESTARTS\tWALL")
	for i, o := range outs {
		st := o.Result.Stats
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%v\n", i, o.System, o.Method, st.Steps, st.NFev, st.Restarts, st.Wall)
	}
	return w.Flush()
}

type batchResult struct {
	outs []*experiment.Outcome
	err  error
}

func watchScenario(r *automation.Runner, scenario *automation.Scenario) ([]*experiment.Outcome, error) {
	reports := make(chan sim.TaskReport, len(scenario.Runs))
	done := make(chan error, 1)
	results := make(chan batchResult, 1)
	r.OnTaskDone = func(rep sim.TaskReport) { reports <- rep }
	// keep log lines from tearing the progress view
	r.Log = config.NewLogger("error")

	go func() {
		outs, err := r.RunScenario(scenario)
		results <- batchResult{outs: outs, err: err}
		done <- err
	}()

	model, err := tea.NewProgram(viz.NewProgress(scenario.Name, len(scenario.Runs), reports, done)).Run()
	if err != nil {
		return nil, err
	}
	if m, ok := model.(viz.Progress); ok {
		if n, _ := m.Finished(); n < len(scenario.Runs) {
			return nil, fmt.Errorf("stopped watching after %d of %d runs", n, len(scenario.Runs))
		}
	}
	res := <-results
	return res.outs, res.err
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}
	res, err := runner().RunSweep(&automation.ParameterSweep{
		Base: cfg, Param: sweepParam, Min: sweepMin, Max: sweepMax, Steps: sweepPoints,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSTEPS\tNFEV\tFINAL STATE\n", strings.ToUpper(sweepParam))
	for _, p := range res {
		fmt.Fprintf(w, "%.6g\t%d\t%d\t%v\n", p.ParamValue, p.Result.Stats.Steps, p.Result.Stats.NFev, formatState(p.FinalState))
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args[0])
	if err != nil {
		return err
	}
	res, err := runner().RunMonteCarlo(&automation.MonteCarloConfig{
		Base: cfg, Perturbation: perturbation, Trials: trials, Seed: seed,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tINITIAL\tREACHED\tSTABLE")
	for _, t := range res {
		fmt.Fprintf(w, "%d\t%s\t%g\t%v\n", t.TrialID, formatState(t.InitState), t.Reached, t.Stable)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	stable, unstable := automation.MonteCarloStats(res)
	fmt.Printf("\nstable: %d  unstable: %d\n", stable, unstable)
	return nil
}

func formatState(y []float64) string {
	parts := make([]string, len(y))
	for i, v := range y {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
