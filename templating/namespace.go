package templating

import (
	"fmt"
	"maps"
	"slices"
)

// LazyFunc computes a binding at render time. It receives the scope built
// so far: primitives, built-ins and every binding declared before it.
type LazyFunc func(scope map[string]any) (any, error)

type binding struct {
	name  string
	value any
	lazy  LazyFunc
}

// Namespace is the ordered set of caller bindings a template renders
// against. Redefining a name keeps its original position.
type Namespace struct {
	bindings []binding
	index    map[string]int
}

// NewNamespace returns an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{index: make(map[string]int)}
}

// NamespaceFrom returns a namespace holding vars. Go maps carry no order,
// so names are declared in sorted order.
func NamespaceFrom(vars map[string]any) *Namespace {
	ns := NewNamespace()
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		ns.Set(name, vars[name])
	}

	return ns
}

// Set binds name to a plain value.
func (ns *Namespace) Set(name string, value any) *Namespace {
	ns.put(binding{name: name, value: value})
	return ns
}

// SetLazy binds name to a value computed when a render starts.
func (ns *Namespace) SetLazy(name string, fn LazyFunc) *Namespace {
	ns.put(binding{name: name, lazy: fn})
	return ns
}

// Merge copies the bindings of other into ns, other winning on conflicts.
func (ns *Namespace) Merge(other *Namespace) *Namespace {
	if other == nil {
		return ns
	}

	for _, bd := range other.bindings {
		ns.put(bd)
	}

	return ns
}

func (ns *Namespace) put(bd binding) {
	if ns.index == nil {
		ns.index = make(map[string]int)
	}

	if i, ok := ns.index[bd.name]; ok {
		ns.bindings[i] = bd
		return
	}

	ns.index[bd.name] = len(ns.bindings)
	ns.bindings = append(ns.bindings, bd)
}

// Names returns the bound names in declaration order.
func (ns *Namespace) Names() []string {
	if ns == nil {
		return nil
	}

	out := make([]string, len(ns.bindings))
	for i, bd := range ns.bindings {
		out[i] = bd.name
	}

	return out
}

// Lookup returns the binding for name. Lazy bindings report their
// LazyFunc as the value.
func (ns *Namespace) Lookup(name string) (any, bool) {
	if ns == nil {
		return nil, false
	}

	i, ok := ns.index[name]
	if !ok {
		return nil, false
	}

	if bd := ns.bindings[i]; bd.lazy != nil {
		return bd.lazy, true
	}

	return ns.bindings[i].value, true
}

// Len returns the number of bindings.
func (ns *Namespace) Len() int {
	if ns == nil {
		return 0
	}

	return len(ns.bindings)
}

// Clone returns an independent copy of ns.
func (ns *Namespace) Clone() *Namespace {
	out := NewNamespace()
	if ns == nil {
		return out
	}

	out.bindings = append(out.bindings, ns.bindings...)
	out.index = maps.Clone(ns.index)

	return out
}

// resolveInto stores every binding into scope in declaration order,
// calling lazy ones with the scope as it stands. Names listed in reserved
// are skipped.
func (ns *Namespace) resolveInto(scope map[string]any, reserved map[string]bool) error {
	if ns == nil {
		return nil
	}

	for _, bd := range ns.bindings {
		if reserved[bd.name] {
			continue
		}

		if bd.lazy == nil {
			scope[bd.name] = bd.value
			continue
		}

		val, err := bd.lazy(scope)
		if err != nil {
			return fmt.Errorf("resolving binding %q: %w", bd.name, err)
		}

		scope[bd.name] = val
	}

	return nil
}
