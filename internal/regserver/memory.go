package regserver

import (
	"fmt"
	"sync"

	"github.com/tinyrange/cpusysregs/internal/command"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

// MemoryBackend serves register values from memory. Snapshot replay and
// tests use it; writes update the stored value. Instructions are answered
// from recorded samples only.
type MemoryBackend struct {
	name    string
	mu      sync.Mutex
	values  map[sysreg.ID]sysreg.Value
	samples map[sampleKey]uint64
}

type sampleKey struct {
	instr command.Instr
	args  command.InstrArgs
}

// Sample is one recorded instruction run.
type Sample struct {
	Instr  command.Instr
	Args   command.InstrArgs
	Result uint64
}

func NewMemoryBackend(name string, values map[sysreg.ID]sysreg.Value) *MemoryBackend {
	m := &MemoryBackend{
		name:    name,
		values:  make(map[sysreg.ID]sysreg.Value, len(values)),
		samples: make(map[sampleKey]uint64),
	}
	for id, v := range values {
		m.values[id] = v
	}
	return m
}

func (m *MemoryBackend) Name() string { return m.name }

func (m *MemoryBackend) Supports(e sysreg.Entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[e.ID]
	return ok
}

func (m *MemoryBackend) Read(e sysreg.Entry) (sysreg.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[e.ID]
	if !ok {
		return sysreg.Value{}, fmt.Errorf("%s not recorded: %w", e.Name, ErrUnsupported)
	}
	return v, nil
}

func (m *MemoryBackend) Write(e sysreg.Entry, v sysreg.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[e.ID]; !ok {
		return fmt.Errorf("%s not recorded: %w", e.Name, ErrUnsupported)
	}
	m.values[e.ID] = v
	return nil
}

// Values returns a copy of the stored registers.
func (m *MemoryBackend) Values() map[sysreg.ID]sysreg.Value {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[sysreg.ID]sysreg.Value, len(m.values))
	for id, v := range m.values {
		out[id] = v
	}
	return out
}

// Record stores the result of running s.Instr on s.Args.
func (m *MemoryBackend) Record(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[sampleKey{s.Instr, s.Args}] = s.Result
}

func (m *MemoryBackend) Exec(i command.Instr, args command.InstrArgs) (command.InstrArgs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.samples[sampleKey{i, args}]
	if !ok {
		return command.InstrArgs{}, fmt.Errorf("%s on 0x%x/%d not recorded: %w", i, args.Value, args.Modifier, ErrUnsupported)
	}
	return command.InstrArgs{Value: result, Modifier: args.Modifier}, nil
}
