package adapter

import (
	"fmt"
	"sort"
)

// Overrides carries per-adapter configuration from the operator config,
// currently just the external binary path.
type Overrides struct {
	Binary string
}

// constructors maps adapter names to their builders. Registration is
// static: the adapter set is part of the tool's contract, not a plugin
// surface.
var constructors = map[string]func(Overrides) Adapter{
	"nmap":         func(o Overrides) Adapter { return NewNmap(o.Binary) },
	"sqlmap":       func(o Overrides) Adapter { return NewSqlmap(o.Binary) },
	"zap-baseline": func(o Overrides) Adapter { return NewZapBaseline(o.Binary) },
	"lynis":        func(o Overrides) Adapter { return NewLynis(o.Binary) },
	"trivy":        func(o Overrides) Adapter { return NewTrivy(o.Binary) },
	"headercheck":  func(o Overrides) Adapter { return NewHeaderCheck() },
}

// Names lists the registered adapter names, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves each requested adapter name against the registry,
// applying any per-adapter overrides.
func Build(names []string, overrides map[string]Overrides) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(names))
	for _, name := range names {
		ctor, ok := constructors[name]
		if !ok {
			return nil, fmt.Errorf("unknown adapter: %q (available: %v)", name, Names())
		}
		adapters = append(adapters, ctor(overrides[name]))
	}
	return adapters, nil
}
