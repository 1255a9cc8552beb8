package compiler

import (
	"fmt"

	"kansoc/internal/abi"
	"kansoc/internal/assembler"
	"kansoc/internal/ir"
	"kansoc/internal/passes"
)

// Options configures one compilation
type Options struct {
	// Contract overrides the contract name carried by the program
	Contract string
	// Pipeline replaces the default pass list when non-nil
	Pipeline *passes.Manager
	// Optimize drops unreachable blocks before lowering. Ignored when
	// Pipeline is set.
	Optimize bool
}

// Output is everything a successful compilation produces
type Output struct {
	Program    *ir.IntermediateRepresentation
	Table      *abi.Table
	Executable *assembler.Executable
}

// Compile runs the pass pipeline over program, builds the signature table
// and assembles the result. The program is mutated in place. No bytecode is
// produced unless every pass succeeds.
func Compile(program *ir.IntermediateRepresentation, opts Options) (*Output, error) {
	if opts.Contract != "" {
		program.Contract = opts.Contract
	}
	if err := program.Validate(); err != nil {
		return nil, fmt.Errorf("malformed program: %w", err)
	}

	pipeline := opts.Pipeline
	switch {
	case pipeline != nil:
	case opts.Optimize:
		pipeline = passes.NewOptimizingManager()
	default:
		pipeline = passes.NewDefaultManager()
	}
	if err := pipeline.Run(program); err != nil {
		return nil, err
	}

	table, err := abi.NewTable(program)
	if err != nil {
		return nil, err
	}

	exe, err := assembler.Assemble(program, table)
	if err != nil {
		return nil, err
	}

	return &Output{Program: program, Table: table, Executable: exe}, nil
}

// Check runs the pipeline and assembler without keeping the output. Editors
// use it to collect diagnostics.
func Check(program *ir.IntermediateRepresentation) error {
	_, err := Compile(program, Options{})
	return err
}
