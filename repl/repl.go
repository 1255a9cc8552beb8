// Package repl is an interactive harness: it loads a .kir program, compiles
// it and calls its transitions, printing each call's change-set.
package repl

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"

	"kansoc/internal/builder"
	"kansoc/internal/compiler"
	"kansoc/internal/errors"
	"kansoc/internal/executor"
	"kansoc/internal/ir"
)

const PROMPT = "kir> "

const help = `Commands:
  :load <file.kir>   compile a program and make its transitions callable
  :reload            recompile the current file
  :abi               list callable transitions
  :ir                print the compiled IR
  :disasm            print the annotated disassembly
  :gas [limit]       show or set the gas limit
  :help              show this help
  :quit              leave
Anything else is a call: name(arg, ...) or name arg ...
`

// Session holds the loaded program. It is not safe for concurrent use.
type Session struct {
	out    io.Writer
	path   string
	output *compiler.Output
	config executor.Config
}

func NewSession(out io.Writer) *Session {
	return &Session{out: out, config: executor.Config{GasLimit: executor.DefaultGasLimit}}
}

// Load reads, builds and compiles a file. The previous program stays
// loaded if anything fails.
func (s *Session) Load(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	program, err := builder.BuildString(path, string(source))
	if err == nil {
		var out *compiler.Output
		if out, err = compiler.Compile(program, compiler.Options{}); err == nil {
			s.path, s.output = path, out
			fmt.Fprintf(s.out, "loaded %s: contract %s, %d transitions, %d bytes\n",
				path, out.Program.Contract, out.Table.Len(), len(out.Executable.Bytecode))
			return nil
		}
	}

	if ce, ok := errors.As(err); ok {
		fmt.Fprint(s.out, errors.NewErrorReporter(path, string(source)).FormatError(ce))
	}
	return err
}

// load reports failures that Load did not already render
func (s *Session) load(path string) {
	if err := s.Load(path); err != nil {
		if _, ok := errors.As(err); !ok {
			color.New(color.FgRed).Fprintln(s.out, err)
		}
	}
}

// Functions lists the callable transition names of the loaded program
func (s *Session) Functions() []string {
	if s.output == nil {
		return nil
	}
	sigs := s.output.Table.Signatures()
	names := make([]string, len(sigs))
	for i, sig := range sigs {
		names[i] = sig.Name
	}
	return names
}

// Eval runs one line of input and reports whether the session should end
func (s *Session) Eval(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if strings.HasPrefix(line, ":") {
		return s.command(strings.Fields(line))
	}

	if s.output == nil {
		color.New(color.FgRed).Fprintln(s.out, "no program loaded, use :load <file.kir>")
		return false
	}

	name, args, err := parseCall(line)
	if err != nil {
		color.New(color.FgRed).Fprintln(s.out, err)
		return false
	}

	res, err := executor.New(s.output.Executable, s.output.Table, s.config).ExecuteText(name, args...)
	if err != nil {
		color.New(color.FgRed).Fprintln(s.out, err)
		return false
	}
	fmt.Fprint(s.out, FormatResult(res))
	return false
}

func (s *Session) command(fields []string) bool {
	red := color.New(color.FgRed)

	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true
	case ":help", ":h":
		fmt.Fprint(s.out, help)
	case ":load", ":l":
		if len(fields) != 2 {
			red.Fprintln(s.out, "usage: :load <file.kir>")
			return false
		}
		s.load(fields[1])
	case ":reload", ":r":
		if s.path == "" {
			red.Fprintln(s.out, "no program loaded")
			return false
		}
		s.load(s.path)
	case ":gas":
		if len(fields) == 2 {
			limit, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil || limit == 0 {
				red.Fprintf(s.out, "invalid gas limit '%s'\n", fields[1])
				return false
			}
			s.config.GasLimit = limit
		}
		fmt.Fprintf(s.out, "gas limit %d\n", s.config.GasLimit)
	case ":abi", ":ir", ":disasm":
		if s.output == nil {
			red.Fprintln(s.out, "no program loaded")
			return false
		}
		switch fields[0] {
		case ":abi":
			for _, sig := range s.output.Table.Signatures() {
				fmt.Fprintln(s.out, sig)
			}
		case ":ir":
			fmt.Fprint(s.out, ir.Print(s.output.Program))
		case ":disasm":
			fmt.Fprint(s.out, s.output.Executable.Disassemble())
		}
	default:
		red.Fprintf(s.out, "unknown command %s, try :help\n", fields[0])
	}
	return false
}

// parseCall accepts name(a, b) and name a b
func parseCall(line string) (string, []string, error) {
	open := strings.IndexByte(line, '(')
	if open < 0 {
		fields := strings.Fields(line)
		return fields[0], fields[1:], nil
	}

	if !strings.HasSuffix(line, ")") {
		return "", nil, fmt.Errorf("missing ')' in call '%s'", line)
	}
	name := strings.TrimSpace(line[:open])
	if name == "" {
		return "", nil, fmt.Errorf("missing function name in '%s'", line)
	}

	inner := strings.TrimSpace(line[open+1 : len(line)-1])
	if inner == "" {
		return name, nil, nil
	}
	args := strings.Split(inner, ",")
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
	}
	return name, args, nil
}

// FormatResult renders a call result: outcome, return data and the sorted
// change-set
func FormatResult(res *executor.Result) string {
	var b strings.Builder
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if res.Succeeded() {
		b.WriteString(fmt.Sprintf("%s %s\n", green("success"), dim(fmt.Sprintf("(%d gas)", res.GasUsed))))
	} else {
		b.WriteString(fmt.Sprintf("%s: %s %s\n", red("reverted"), res.Failure, dim(fmt.Sprintf("(%d gas)", res.GasUsed))))
	}

	if len(res.ReturnData) > 0 {
		if w, err := res.ReturnWord(); err == nil {
			b.WriteString(fmt.Sprintf("return %s (%s)\n", w.Dec(), hexutil.Encode(res.ReturnData)))
		} else {
			b.WriteString(fmt.Sprintf("return %s\n", hexutil.Encode(res.ReturnData)))
		}
	}

	for _, key := range res.Keys() {
		value := res.ChangeSet[key]
		if value == nil {
			b.WriteString(fmt.Sprintf("  %s %s\n", key, red("deleted")))
			continue
		}
		b.WriteString(fmt.Sprintf("  %s = %s\n", key, value.Hex()))
	}
	return b.String()
}

// Start runs the interactive loop on the terminal, optionally loading path
// first
func Start(path string) error {
	session := NewSession(os.Stdout)

	completer := readline.NewPrefixCompleter(
		readline.PcItem(":load"),
		readline.PcItem(":reload"),
		readline.PcItem(":abi"),
		readline.PcItem(":ir"),
		readline.PcItem(":disasm"),
		readline.PcItem(":gas"),
		readline.PcItem(":help"),
		readline.PcItem(":quit"),
		readline.PcItemDynamic(func(string) []string { return session.Functions() }),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          PROMPT,
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	if path != "" {
		session.load(path)
	}

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil {
			return nil
		}
		if session.Eval(line) {
			return nil
		}
	}
}
