package execevent

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"git.home.luguber.info/inful/buildbridge/internal/module"
)

// Record types that carry no execution event.
const (
	RecordToolInfo     = "toolInfo"
	RecordBuildFailure = "buildFailure"
)

var (
	// ErrNotARecord marks input lines that are not JSON records.
	ErrNotARecord = errors.New("not an event record")
	// ErrMalformedRecord marks records that cannot be turned into an event.
	// Decoding can continue with the next line.
	ErrMalformedRecord = errors.New("malformed event record")
)

const maxLineSize = 4 << 20

type wireProject struct {
	GroupID    string `json:"groupId"`
	ArtifactID string `json:"artifactId"`
	Version    string `json:"version"`
	Name       string `json:"name,omitempty"`
	Packaging  string `json:"packaging,omitempty"`
	BaseDir    string `json:"baseDir,omitempty"`
}

type wireStep struct {
	GroupID     string `json:"groupId,omitempty"`
	ArtifactID  string `json:"artifactId"`
	Version     string `json:"version"`
	Goal        string `json:"goal"`
	ExecutionID string `json:"executionId"`
}

type wireException struct {
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

type wireRecord struct {
	Type      string         `json:"type"`
	Version   string         `json:"version,omitempty"`
	Project   *wireProject   `json:"project,omitempty"`
	Step      *wireStep      `json:"step,omitempty"`
	Projects  []wireProject  `json:"projects,omitempty"`
	Exception *wireException `json:"exception,omitempty"`
}

func (p wireProject) toProject() module.Project {
	return module.Project{
		Name:        module.NewName(p.GroupID, p.ArtifactID, p.Version),
		DisplayName: p.Name,
		Packaging:   p.Packaging,
		BaseDir:     p.BaseDir,
	}
}

func fromProject(p module.Project) wireProject {
	return wireProject{
		GroupID:    p.Name.GroupID,
		ArtifactID: p.Name.ArtifactID,
		Version:    p.Name.Version,
		Name:       p.DisplayName,
		Packaging:  p.Packaging,
		BaseDir:    p.BaseDir,
	}
}

func (e *wireException) toError() error {
	if e == nil {
		return nil
	}
	f := &Failure{Message: e.Message, Stack: e.Stack}
	if e.Cause != "" {
		f.Cause = &Failure{Message: e.Cause}
	}
	return f
}

func fromError(err error) *wireException {
	if err == nil {
		return nil
	}
	ex := &wireException{Message: err.Error(), Stack: StackOf(err)}
	if cause := errors.Unwrap(err); cause != nil {
		ex.Cause = cause.Error()
	}
	return ex
}

// Decoder reads NDJSON records and yields execution events. Tool information
// and aggregate build failures are collected as side information.
type Decoder struct {
	sc   *bufio.Scanner
	line int

	mu       sync.Mutex
	caps     Capabilities
	failures []error
	// Passthrough receives lines that are not event records. Nil drops them.
	Passthrough io.Writer
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Decoder{sc: sc}
}

// Decode returns the next event, or io.EOF when the input is exhausted.
func (d *Decoder) Decode() (Event, error) {
	for d.sc.Scan() {
		d.line++
		raw := d.sc.Bytes()
		rec, err := parseLine(raw)
		if errors.Is(err, ErrNotARecord) {
			if d.Passthrough != nil {
				_, _ = d.Passthrough.Write(append(append([]byte{}, raw...), '\n'))
			}
			continue
		}
		if err != nil {
			return Event{}, fmt.Errorf("line %d: %w: %w", d.line, ErrMalformedRecord, err)
		}
		ev, ok, err := d.apply(rec)
		if err != nil {
			return Event{}, fmt.Errorf("line %d: %w: %w", d.line, ErrMalformedRecord, err)
		}
		if ok {
			return ev, nil
		}
	}
	if err := d.sc.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

func (d *Decoder) apply(rec wireRecord) (Event, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch rec.Type {
	case RecordToolInfo:
		d.caps = CapabilitiesFor(rec.Version)
		return Event{}, false, nil
	case RecordBuildFailure:
		if err := rec.Exception.toError(); err != nil {
			d.failures = append(d.failures, err)
		}
		return Event{}, false, nil
	}
	ev := Event{Kind: Kind(rec.Type)}
	if rec.Project != nil {
		p := rec.Project.toProject()
		ev.Project = &p
	}
	if rec.Step != nil {
		s := module.StepInfo(*rec.Step)
		ev.Step = &s
	}
	for _, p := range rec.Projects {
		ev.Projects = append(ev.Projects, p.toProject())
	}
	if ev.Kind.Failed() && d.caps.FailureAccessor() {
		ev.Exception = rec.Exception.toError()
	}
	if err := ev.Validate(); err != nil {
		return Event{}, false, err
	}
	return ev, true, nil
}

// Capabilities returns the capabilities announced by the last toolInfo record.
func (d *Decoder) Capabilities() Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps
}

// Failures returns the aggregate build failures read so far.
func (d *Decoder) Failures() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]error, len(d.failures))
	copy(out, d.failures)
	return out
}

// parseLine decodes one NDJSON line. Lines that do not look like a JSON
// object return ErrNotARecord so callers can treat them as plain output.
func parseLine(raw []byte) (wireRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return wireRecord{}, ErrNotARecord
	}
	var rec wireRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return wireRecord{}, fmt.Errorf("decode event record: %w", err)
	}
	if rec.Type == "" {
		return wireRecord{}, ErrNotARecord
	}
	return rec, nil
}

// Encoder writes NDJSON records.
type Encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes ev as one record.
func (e *Encoder) Encode(ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	rec := wireRecord{Type: string(ev.Kind), Exception: fromError(ev.Exception)}
	if ev.Project != nil {
		p := fromProject(*ev.Project)
		rec.Project = &p
	}
	if ev.Step != nil {
		s := wireStep(*ev.Step)
		rec.Step = &s
	}
	for _, p := range ev.Projects {
		rec.Projects = append(rec.Projects, fromProject(p))
	}
	return e.write(rec)
}

// EncodeToolInfo writes the tool version record.
func (e *Encoder) EncodeToolInfo(version string) error {
	return e.write(wireRecord{Type: RecordToolInfo, Version: version})
}

// EncodeBuildFailure writes an aggregate build failure record.
func (e *Encoder) EncodeBuildFailure(err error) error {
	if err == nil {
		return errors.New("nil build failure")
	}
	return e.write(wireRecord{Type: RecordBuildFailure, Exception: fromError(err)})
}

func (e *Encoder) write(rec wireRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(rec)
}
