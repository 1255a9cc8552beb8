package passes

import (
	"fmt"

	"github.com/tliron/commonlog"

	"kansoc/internal/errors"
	"kansoc/internal/ir"
)

var log = commonlog.GetLogger("kansoc.passes")

// Manager runs an ordered list of passes over one program. Passes run
// strictly in the order they were added; the first failure aborts the run.
type Manager struct {
	passes []Pass
}

// NewManager creates a manager without passes
func NewManager() *Manager {
	return &Manager{}
}

// NewDefaultManager creates a manager with the standard lowering pipeline
func NewDefaultManager() *Manager {
	m := NewManager()

	// Add passes in order of execution
	m.AddPass(NewTypeCollector())
	m.AddPass(NewStorageAllocator())
	m.AddPass(NewTypeAnnotator())
	m.AddPass(NewDependencyAnalysis())
	m.AddPass(NewArgumentBalancer())
	m.AddPass(NewDependencyAnalysis()) // balancing changed block signatures

	return m
}

// NewOptimizingManager runs dead block elimination ahead of the standard
// pipeline
func NewOptimizingManager() *Manager {
	m := NewDefaultManager()
	m.passes = append([]Pass{NewDeadBlockElimination()}, m.passes...)
	return m
}

// AddPass appends a pass to the pipeline
func (m *Manager) AddPass(pass Pass) {
	m.passes = append(m.passes, pass)
}

// Passes lists the pass names in execution order
func (m *Manager) Passes() []string {
	names := make([]string, len(m.passes))
	for i, p := range m.passes {
		names[i] = p.Name()
	}
	return names
}

// Run executes every pass on the program in place
func (m *Manager) Run(program *ir.IntermediateRepresentation) error {
	log.Infof("running %d passes on contract %s", len(m.passes), program.Contract)

	for i, pass := range m.passes {
		log.Debugf("  - [%d] %s", i+1, pass.Name())
		if err := Walk(program, pass); err != nil {
			log.Errorf("pass %s failed: %s", pass.Name(), err)
			return wrap(pass.Name(), err)
		}
	}
	return nil
}

// wrap attaches the failing pass name to the error
func wrap(pass string, err error) error {
	if ce, ok := errors.As(err); ok {
		return ce.InPass(pass)
	}
	return fmt.Errorf("pass %s: %w", pass, err)
}
