package cmd

import (
	"fmt"
	"math"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"

	"github.com/zkir-project/zkir/zkgo/fast"
	"github.com/zkir-project/zkir/zkgo/zkir"
)

var (
	RunInputFlag = &cli.PathFlag{
		Name:      "input",
		Usage:     "path to the program image to execute",
		TakesFile: true,
		Required:  true,
	}
	RunPublicInputFlag = &cli.Uint64SliceFlag{
		Name:  "in",
		Usage: "public input words, consumed in order by READ",
	}
	RunHintFlag = &cli.Uint64SliceFlag{
		Name:  "hint",
		Usage: "private hint words, consumed in order by HINT",
	}
	RunCycleLimitFlag = &cli.Uint64Flag{
		Name:  "cycle-limit",
		Usage: "maximum number of cycles before the run is aborted",
		Value: fast.DefaultCycleLimit,
	}
	RunTraceFlag = &cli.PathFlag{
		Name:      "trace",
		Usage:     "write the full execution trace as JSON to this file",
		TakesFile: true,
	}
	RunResultFlag = &cli.PathFlag{
		Name:      "result",
		Usage:     "write the execution result as JSON to this file, or '-' for stdout",
		TakesFile: true,
		Value:     "-",
	}
	RunPProfCPU = &cli.BoolFlag{
		Name:  "pprof.cpu",
		Usage: "enable CPU profiling, writes to the current directory",
	}
)

// traceOutput is the JSON shape of a --trace file.
type traceOutput struct {
	Program string          `json:"program"`
	Cycles  uint64          `json:"cycles"`
	Rows    []fast.TraceRow `json:"rows"`
}

func loadWords(flag *cli.Uint64SliceFlag, ctx *cli.Context) ([]uint32, error) {
	raw := ctx.Uint64Slice(flag.Name)
	words := make([]uint32, 0, len(raw))
	for _, v := range raw {
		if v > math.MaxUint32 {
			return nil, fmt.Errorf("--%s value %d does not fit in a word", flag.Name, v)
		}
		words = append(words, uint32(v))
	}
	return words, nil
}

func Run(ctx *cli.Context) error {
	if ctx.Bool(RunPProfCPU.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}

	l := Logger(os.Stderr, log.LevelInfo)

	path := ctx.Path(RunInputFlag.Name)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open program image: %w", err)
	}
	prog, err := zkir.LoadProgram(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("failed to load program image %q: %w", path, err)
	}

	inputs, err := loadWords(RunPublicInputFlag, ctx)
	if err != nil {
		return err
	}
	hints, err := loadWords(RunHintFlag, ctx)
	if err != nil {
		return err
	}

	cfg := fast.DefaultConfig()
	cfg.CycleLimit = ctx.Uint64(RunCycleLimitFlag.Name)

	vm := fast.NewVM(prog, cfg, fast.NewIOChannel(inputs, hints), l)
	tracePath := ctx.Path(RunTraceFlag.Name)
	if tracePath != "" {
		vm.EnableTracing()
	}

	l.Info("starting run", "program", path, "entry", fast.HexU32(prog.Header.EntryPoint),
		"inputs", len(inputs), "hints", len(hints), "cycleLimit", cfg.CycleLimit)

	res, err := vm.Run(ctx.Context)
	if err != nil {
		return err
	}

	switch res.Status {
	case fast.StatusHalted:
		l.Info("run halted", "exitCode", res.ExitCode, "cycles", res.Cycles,
			"outputs", len(res.Outputs), "commitments", len(res.Commitments),
			"stateHash", res.StateHash)
	case fast.StatusTrapped:
		l.Error("run trapped", "cause", res.Trap.Cause, "pc", fast.HexU32(res.Trap.PC),
			"cycles", res.Cycles, "detail", res.Trap.Detail)
	}

	if tracePath != "" {
		out := traceOutput{Program: path, Cycles: res.Cycles, Rows: res.Trace.Rows()}
		if err := writeJSON(tracePath, out); err != nil {
			return err
		}
	}
	if err := writeJSON(ctx.Path(RunResultFlag.Name), res); err != nil {
		return err
	}
	if res.Status == fast.StatusTrapped {
		return fmt.Errorf("execution trapped: %w", res.Trap)
	}
	return nil
}

var RunCommand = &cli.Command{
	Name:        "run",
	Usage:       "Execute a program image",
	Description: "Loads a program image, executes it to completion, and reports the result. The exit status is non-zero when the program traps.",
	Action:      Run,
	Flags: []cli.Flag{
		RunInputFlag,
		RunPublicInputFlag,
		RunHintFlag,
		RunCycleLimitFlag,
		RunTraceFlag,
		RunResultFlag,
		RunPProfCPU,
	},
}
