package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"kansoc/internal/builder"
	"kansoc/internal/compiler"
	"kansoc/internal/errors"
	"kansoc/internal/executor"
	"kansoc/internal/ir"
	"kansoc/repl"
)

const usage = `Usage: kansoc <command> [flags] <file.kir> [args...]

Commands:
  check    run the pass pipeline and assembler, report errors
  compile  print the runtime bytecode as hex
  ir       print the IR after the pass pipeline
  disasm   print the annotated disassembly
  abi      print the external function table
  run      call a transition: kansoc run file.kir <function> [args...]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	command, args := os.Args[1], os.Args[2:]
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	verbosity := fs.Int("v", -1, "log verbosity (-1 warnings, 1 info, 2 debug)")
	contract := fs.String("contract", "", "override the contract name")
	optimize := fs.Bool("O", false, "remove unreachable blocks before lowering")
	deploy := fs.Bool("deploy", false, "compile: print deployment code instead of runtime code")
	raw := fs.Bool("raw", false, "ir: print the program as built, before the pass pipeline")
	gas := fs.Uint64("gas", executor.DefaultGasLimit, "run: gas limit")
	caller := fs.String("caller", "", "run: caller address")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage+"\nFlags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	commonlog.Configure(*verbosity, nil)

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(2)
	}
	path := fs.Arg(0)

	startTime := time.Now()

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read file: %v\n", err)
		os.Exit(1)
	}

	program, err := builder.BuildString(path, string(source))
	if err != nil {
		fail(path, string(source), err, startTime)
	}
	if command == "ir" && *raw {
		fmt.Print(ir.Print(program))
		return
	}

	out, err := compiler.Compile(program, compiler.Options{Contract: *contract, Optimize: *optimize})
	if err != nil {
		fail(path, string(source), err, startTime)
	}

	switch command {
	case "check":
		color.Green("Successfully checked %s in %s", path, formatDuration(time.Since(startTime)))
	case "compile":
		code := out.Executable.Bytecode
		if *deploy {
			code = out.Executable.DeploymentCode()
		}
		fmt.Println(hexutil.Encode(code))
		color.Green("Successfully compiled %s in %s (%d bytes, code hash %s)",
			path, formatDuration(time.Since(startTime)), len(code), out.Executable.CodeHash().Hex())
	case "ir":
		fmt.Print(ir.Print(out.Program))
	case "disasm":
		fmt.Print(out.Executable.Disassemble())
	case "abi":
		for _, sig := range out.Table.Signatures() {
			fmt.Println(sig)
		}
	case "run":
		os.Exit(run(out, fs.Args()[1:], *gas, *caller))
	default:
		fmt.Fprintf(os.Stderr, "unknown command '%s'\n\n%s", command, usage)
		os.Exit(2)
	}
}

func run(out *compiler.Output, args []string, gas uint64, caller string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "run: missing function name")
		return 2
	}

	config := executor.Config{GasLimit: gas}
	if caller != "" {
		if !common.IsHexAddress(caller) {
			fmt.Fprintf(os.Stderr, "run: invalid caller address '%s'\n", caller)
			return 2
		}
		config.Caller = common.HexToAddress(caller)
	}

	res, err := executor.New(out.Executable, out.Table, config).ExecuteText(args[0], args[1:]...)
	if err != nil {
		color.Red("%s", err)
		return 1
	}

	fmt.Print(repl.FormatResult(res))
	if !res.Succeeded() {
		return 1
	}
	return 0
}

func fail(path, source string, err error, startTime time.Time) {
	if ce, ok := errors.As(err); ok {
		fmt.Fprint(os.Stderr, errors.NewErrorReporter(path, source).FormatError(ce))
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	color.Red("Compilation failed after %s", formatDuration(time.Since(startTime)))
	os.Exit(1)
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.2fmin", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}
