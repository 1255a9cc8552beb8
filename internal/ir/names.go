package ir

import "fmt"

// NameGenerator hands out fresh names for one compilation. Each counter only
// grows, so a name is never produced twice by the same generator.
type NameGenerator struct {
	anonTypes int
	registers int
	labels    int
}

// NewNameGenerator creates a generator with all counters at zero
func NewNameGenerator() *NameGenerator {
	return &NameGenerator{}
}

// AnonymousType returns a fresh name for an unnamed type
func (g *NameGenerator) AnonymousType() string {
	name := fmt.Sprintf("__anon_type_%d", g.anonTypes)
	g.anonTypes++
	return name
}

// Register returns a fresh virtual register name
func (g *NameGenerator) Register() string {
	name := fmt.Sprintf("%%__t%d", g.registers)
	g.registers++
	return name
}

// Label returns a fresh block label derived from prefix
func (g *NameGenerator) Label(prefix string) string {
	name := fmt.Sprintf("%s__%d", prefix, g.labels)
	g.labels++
	return name
}
