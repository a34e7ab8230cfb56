package engine

import (
	"maps"
	"sync"

	"github.com/kode4food/sequin/pkg/api"
)

// Data is the global data table of one execution context. Entries keep the
// type of their declaration when overwritten
type Data struct {
	mu     sync.RWMutex
	types  map[api.Name]string
	values map[api.Name]api.Value
}

func newData(defs []*api.DataDefinition) *Data {
	d := &Data{
		types:  make(map[api.Name]string, len(defs)),
		values: make(map[api.Name]api.Value, len(defs)),
	}
	for _, def := range defs {
		d.types[def.Name] = def.Type
		d.values[def.Name] = api.Value{Type: def.Type, Value: def.Default}
	}
	return d
}

// Get returns the named entry
func (d *Data) Get(name api.Name) (api.Value, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[name]
	return v, ok
}

// Set writes the named entry
func (d *Data) Set(name api.Name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values[name] = api.Value{Type: d.types[name], Value: value}
}

// Merge writes every entry of the given Values
func (d *Data) Merge(values api.Values) {
	for k, v := range values {
		d.Set(k, v)
	}
}

// Snapshot returns a copy of the table
func (d *Data) Snapshot() map[api.Name]api.Value {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.values)
}

// Values returns the table without type information
func (d *Data) Values() api.Values {
	d.mu.RLock()
	defer d.mu.RUnlock()
	res := make(api.Values, len(d.values))
	for k, v := range d.values {
		res[k] = v.Value
	}
	return res
}

func (d *Data) clone() *Data {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return &Data{
		types:  maps.Clone(d.types),
		values: maps.Clone(d.values),
	}
}

// outputs returns the entries declared as flow outputs
func (d *Data) outputs(flow *api.FlowDefinition) map[api.Name]api.Value {
	outs := flow.Outputs()
	d.mu.RLock()
	defer d.mu.RUnlock()
	res := make(map[api.Name]api.Value, len(outs))
	for _, o := range outs {
		if v, ok := d.values[o.Name]; ok {
			res[o.Name] = v
		}
	}
	return res
}
