// Package snapshot records register values per CPU as YAML and replays them
// through a memory backend.
package snapshot

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/tinyrange/cpusysregs/internal/command"
	"github.com/tinyrange/cpusysregs/internal/regserver"
	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

// Snapshot is the on-disk form of a collection run.
type Snapshot struct {
	// Version is the catalog version the snapshot was taken with.
	Version string    `yaml:"version"`
	Taken   time.Time `yaml:"taken"`
	Host    Host      `yaml:"host"`
	CPUs    []CPU     `yaml:"cpus"`
}

type Host struct {
	OS       string `yaml:"os"`
	Arch     string `yaml:"arch"`
	Hostname string `yaml:"hostname,omitempty"`
	Source   string `yaml:"source"`
}

type CPU struct {
	CPU       int         `yaml:"cpu"`
	Registers []Register  `yaml:"registers"`
	PAC       []PACSample `yaml:"pac,omitempty"`
	Errors    []Failure   `yaml:"errors,omitempty"`
}

// Register holds one value. Values are hex strings; High is only set for
// pair registers.
type Register struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
	High  string `yaml:"high,omitempty"`
}

// PACSample is a pointer authentication instruction run on the sample
// operands. Comparing results taken with different keys tells whether two
// exception levels share a key.
type PACSample struct {
	Instr    string `yaml:"instr"`
	Value    string `yaml:"value"`
	Modifier string `yaml:"modifier"`
	Result   string `yaml:"result"`
}

// Sample operands, the ones every collection uses.
const (
	SampleValue    = 0x12345678
	SampleModifier = 47
)

// SampleInstrs are the signing instructions sampled, one per key.
var SampleInstrs = []command.Instr{command.PACIA, command.PACIB, command.PACDA, command.PACDB, command.PACGA}

type Failure struct {
	Register string `yaml:"register"`
	Error    string `yaml:"error"`
}

// Source reads registers on a given CPU. regserver.NativeBackend implements
// it.
type Source interface {
	Name() string
	NumCPU() int
	ReadOnCPU(cpu int, e sysreg.Entry) (sysreg.Value, error)
}

// InstrSource is implemented by sources that can run pointer authentication
// instructions on a given CPU.
type InstrSource interface {
	ExecOnCPU(cpu int, i command.Instr, args command.InstrArgs) (command.InstrArgs, error)
}

// ReaderFunc reads a register on whichever CPU the caller happens to run.
type ReaderFunc func(e sysreg.Entry) (sysreg.Value, error)

// ExecFunc runs an instruction on whichever CPU the caller happens to run.
type ExecFunc func(i command.Instr, args command.InstrArgs) (command.InstrArgs, error)

type singleCPU struct {
	name string
	read ReaderFunc
	exec ExecFunc
}

// OneCPU adapts read into a Source reporting a single CPU. A non-nil exec
// makes it an InstrSource as well.
func OneCPU(name string, read ReaderFunc, exec ExecFunc) Source {
	if exec == nil {
		return singleCPU{name: name, read: read}
	}
	return singleCPUExec{singleCPU{name: name, read: read, exec: exec}}
}

func (s singleCPU) Name() string { return s.name }
func (s singleCPU) NumCPU() int  { return 1 }

func (s singleCPU) ReadOnCPU(cpu int, e sysreg.Entry) (sysreg.Value, error) {
	return s.read(e)
}

type singleCPUExec struct{ singleCPU }

func (s singleCPUExec) ExecOnCPU(cpu int, i command.Instr, args command.InstrArgs) (command.InstrArgs, error) {
	return s.exec(i, args)
}

// Options controls Collect.
type Options struct {
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
	// Registers limits collection. Empty means every readable register.
	Registers []sysreg.ID
	// PAC also runs SampleInstrs when the source is an InstrSource.
	PAC bool
}

// Collect reads every selected register on every CPU of src. Read failures
// are recorded per CPU and do not stop collection.
func Collect(src Source, opts Options) (*Snapshot, error) {
	entries, err := selectEntries(opts.Registers)
	if err != nil {
		return nil, err
	}
	n := src.NumCPU()
	if n < 1 {
		return nil, fmt.Errorf("source %s reports no CPUs", src.Name())
	}

	exec, _ := src.(InstrSource)
	if !opts.PAC {
		exec = nil
	}
	perCPU := len(entries)
	if exec != nil {
		perCPU += len(SampleInstrs)
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(n*perCPU,
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("collect"),
			progressbar.OptionShowCount(),
		)
		defer bar.Close()
	}

	hostname, _ := os.Hostname()
	s := &Snapshot{
		Version: sysreg.Version,
		Taken:   time.Now().UTC(),
		Host: Host{
			OS:       runtime.GOOS,
			Arch:     runtime.GOARCH,
			Hostname: hostname,
			Source:   src.Name(),
		},
	}
	for cpu := 0; cpu < n; cpu++ {
		rec := CPU{CPU: cpu}
		for _, e := range entries {
			v, err := src.ReadOnCPU(cpu, e)
			if bar != nil {
				bar.Add(1)
			}
			if err != nil {
				rec.Errors = append(rec.Errors, Failure{Register: e.Name, Error: err.Error()})
				continue
			}
			rec.Registers = append(rec.Registers, encodeRegister(e, v))
		}
		if exec != nil {
			collectPAC(exec, cpu, &rec, bar)
		}
		s.CPUs = append(s.CPUs, rec)
	}
	return s, nil
}

func collectPAC(src InstrSource, cpu int, rec *CPU, bar *progressbar.ProgressBar) {
	args := command.InstrArgs{Value: SampleValue, Modifier: SampleModifier}
	for _, i := range SampleInstrs {
		out, err := src.ExecOnCPU(cpu, i, args)
		if bar != nil {
			bar.Add(1)
		}
		if err != nil {
			rec.Errors = append(rec.Errors, Failure{Register: i.String(), Error: err.Error()})
			continue
		}
		rec.PAC = append(rec.PAC, PACSample{
			Instr:    i.String(),
			Value:    hex(args.Value),
			Modifier: strconv.FormatUint(args.Modifier, 10),
			Result:   hex(out.Value),
		})
	}
}

func selectEntries(ids []sysreg.ID) ([]sysreg.Entry, error) {
	if len(ids) == 0 {
		var out []sysreg.Entry
		for _, e := range sysreg.All() {
			if e.Readable() {
				out = append(out, e)
			}
		}
		return out, nil
	}
	out := make([]sysreg.Entry, 0, len(ids))
	for _, id := range ids {
		e, err := sysreg.Get(id)
		if err != nil {
			return nil, err
		}
		if err := e.CheckAccess(false); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func hex(v uint64) string { return fmt.Sprintf("0x%016x", v) }

func encodeRegister(e sysreg.Entry, v sysreg.Value) Register {
	r := Register{Name: e.Name, Value: hex(v.Low)}
	if e.Width() == sysreg.Pair {
		r.High = hex(v.High)
	}
	return r
}

func (r Register) decode() (sysreg.Entry, sysreg.Value, error) {
	e, ok := sysreg.ByName(r.Name)
	if !ok {
		return sysreg.Entry{}, sysreg.Value{}, &sysreg.CatalogError{Op: "snapshot", Name: r.Name, Err: sysreg.ErrUnknownRegister}
	}
	low, err := strconv.ParseUint(r.Value, 0, 64)
	if err != nil {
		return sysreg.Entry{}, sysreg.Value{}, fmt.Errorf("%s: value: %w", r.Name, err)
	}
	v := sysreg.Scalar(low)
	switch {
	case e.Width() == sysreg.Pair && r.High == "":
		return sysreg.Entry{}, sysreg.Value{}, fmt.Errorf("%s: pair register without high half", r.Name)
	case e.Width() == sysreg.Single && r.High != "":
		return sysreg.Entry{}, sysreg.Value{}, fmt.Errorf("%s: high half on a single register", r.Name)
	case r.High != "":
		if v.High, err = strconv.ParseUint(r.High, 0, 64); err != nil {
			return sysreg.Entry{}, sysreg.Value{}, fmt.Errorf("%s: high: %w", r.Name, err)
		}
	}
	return e, v, nil
}

// Values returns the registers recorded for cpu.
func (s *Snapshot) Values(cpu int) (map[sysreg.ID]sysreg.Value, error) {
	for _, c := range s.CPUs {
		if c.CPU != cpu {
			continue
		}
		out := make(map[sysreg.ID]sysreg.Value, len(c.Registers))
		for _, r := range c.Registers {
			e, v, err := r.decode()
			if err != nil {
				return nil, fmt.Errorf("cpu %d: %w", cpu, err)
			}
			out[e.ID] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("cpu %d not in snapshot", cpu)
}

func (p PACSample) decode() (regserver.Sample, error) {
	i, ok := command.InstrByName(p.Instr)
	if !ok {
		return regserver.Sample{}, fmt.Errorf("pac: unknown instruction %q", p.Instr)
	}
	var f [3]uint64
	for n, field := range []string{p.Value, p.Modifier, p.Result} {
		v, err := strconv.ParseUint(field, 0, 64)
		if err != nil {
			return regserver.Sample{}, fmt.Errorf("pac %s: %w", p.Instr, err)
		}
		f[n] = v
	}
	return regserver.Sample{Instr: i, Args: command.InstrArgs{Value: f[0], Modifier: f[1]}, Result: f[2]}, nil
}

// Samples returns the instruction runs recorded for cpu.
func (s *Snapshot) Samples(cpu int) ([]regserver.Sample, error) {
	for _, c := range s.CPUs {
		if c.CPU != cpu {
			continue
		}
		out := make([]regserver.Sample, 0, len(c.PAC))
		for _, p := range c.PAC {
			sample, err := p.decode()
			if err != nil {
				return nil, fmt.Errorf("cpu %d: %w", cpu, err)
			}
			out = append(out, sample)
		}
		return out, nil
	}
	return nil, fmt.Errorf("cpu %d not in snapshot", cpu)
}

// Backend replays cpu of the snapshot, instruction samples included.
func (s *Snapshot) Backend(name string, cpu int) (*regserver.MemoryBackend, error) {
	values, err := s.Values(cpu)
	if err != nil {
		return nil, err
	}
	samples, err := s.Samples(cpu)
	if err != nil {
		return nil, err
	}
	m := regserver.NewMemoryBackend(name, values)
	for _, sample := range samples {
		m.Record(sample)
	}
	return m, nil
}

// Check verifies that the snapshot can be read by this catalog.
func (s *Snapshot) Check() error {
	if !semver.IsValid(s.Version) {
		return fmt.Errorf("snapshot version %q is not a catalog version", s.Version)
	}
	if semver.Major(s.Version) != semver.Major(sysreg.Version) {
		return fmt.Errorf("snapshot catalog %s is incompatible with %s", s.Version, sysreg.Version)
	}
	if semver.Compare(s.Version, sysreg.Version) > 0 {
		return fmt.Errorf("snapshot catalog %s is newer than %s", s.Version, sysreg.Version)
	}
	return nil
}

// Decode reads a snapshot from r.
func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Encode writes s as YAML.
func (s *Snapshot) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// Save writes s to path.
func (s *Snapshot) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := s.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
