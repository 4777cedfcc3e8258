package measure

// Definition is one named derived measure: the expression text, display
// metadata and the dependency set extracted at registration. Definitions
// are immutable; redefinition replaces the stored value atomically.
type Definition struct {
	Name       string
	Expression string
	Format     string
	Folder     string

	ast  node
	deps []string
	seq  int // registration position, stable across redefinition
}

// Dependencies returns the measure names this definition references.
func (d *Definition) Dependencies() []string {
	return append([]string(nil), d.deps...)
}

// Info is the measure metadata surfaced to presentation layers.
type Info struct {
	Name   string
	Format string
	Folder string
}

// Registry is the catalog of measure definitions, keyed by name.
// Registration is a single-writer setup phase; once evaluation starts the
// registry is read-only and safe for concurrent readers.
type Registry struct {
	defs  map[string]*Definition
	order []string
	next  int
}

// NewRegistry returns an empty measure catalog.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Define registers or redefines a measure, keyed by name. The expression
// is parsed and schema-checked immediately; dependency extraction happens
// here, never at evaluation time. Redefinition keeps the measure's
// original position in the listing order, so repeated identical calls
// leave the catalog observably unchanged.
func (r *Registry) Define(name, expression, format, folder string) error {
	ast, deps, err := parseExpression(expression)
	if err != nil {
		return err
	}

	def := &Definition{
		Name:       name,
		Expression: expression,
		Format:     format,
		Folder:     folder,
		ast:        ast,
		deps:       deps,
	}
	if prev, ok := r.defs[name]; ok {
		def.seq = prev.seq
	} else {
		def.seq = r.next
		r.next++
		r.order = append(r.order, name)
	}
	r.defs[name] = def
	return nil
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (*Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, &UnknownMeasureError{Name: name}
	}
	return def, nil
}

// List returns definitions in registration order, optionally filtered by
// folder (empty folder = all).
func (r *Registry) List(folder string) []*Definition {
	out := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		def := r.defs[name]
		if folder != "" && def.Folder != folder {
			continue
		}
		out = append(out, def)
	}
	return out
}

// Infos returns {name, format, folder} per measure in listing order.
func (r *Registry) Infos(folder string) []Info {
	defs := r.List(folder)
	out := make([]Info, len(defs))
	for i, d := range defs {
		out[i] = Info{Name: d.Name, Format: d.Format, Folder: d.Folder}
	}
	return out
}

// Len returns the number of registered measures.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Resolve checks referential integrity of the whole catalog: every
// referenced measure must exist and the dependency graph must be acyclic.
func (r *Registry) Resolve() error {
	defs := r.List("")
	for _, def := range defs {
		for _, dep := range def.deps {
			if _, ok := r.defs[dep]; !ok {
				return &UnknownMeasureError{Name: dep, Referrer: def.Name}
			}
		}
	}
	if cycle := buildGraph(defs).findCycle(); cycle != nil {
		return &CycleError{Cycle: cycle}
	}
	return nil
}
