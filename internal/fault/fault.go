// Package fault implements the fault schedule model: parsing,
// normalization into canonical order, and the per-step view the
// scheduler consults (faults firing at a step, resource block map).
package fault

import (
	"fmt"
	"sort"

	"github.com/nomercy-sim/nomercy/internal/protocol"
)

// Kind is the closed set of fault kinds.
type Kind int

const (
	KindCrash Kind = iota
	KindIOError
	KindDelay
)

// canonicalRank orders kinds: crash < io_error < delay.
func (k Kind) canonicalRank() int { return int(k) }

func (k Kind) String() string {
	switch k {
	case KindCrash:
		return "crash"
	case KindIOError:
		return "io_error"
	case KindDelay:
		return "delay"
	default:
		return "unknown"
	}
}

// Fault is one scheduled adversarial event. Identity is (kind, resource,
// step, duration); Resource and Duration are only meaningful for delay
// (io_error/crash leave Resource empty).
type Fault struct {
	Kind     Kind
	Resource string
	Step     int64
	Duration int64 // delay only; 0 otherwise
}

// Validate rejects faults that are structurally malformed: crash
// targeting shutdown is caught by the caller (crash has no command
// target field of
// its own — it always targets whatever command is scheduled at Step, and
// step 1 always resolves to init, so "crash@1" is rejected by Engine.Run
// before init is issued, not here), io_error that isn't implicitly apply-only
// (same reasoning), non-positive duration, and step <= 0.
func (f Fault) Validate() error {
	if f.Step <= 0 {
		return fmt.Errorf("fault: step must be positive, got %d", f.Step)
	}
	if f.Kind == KindDelay && f.Duration <= 0 {
		return fmt.Errorf("fault: delay duration must be positive, got %d", f.Duration)
	}
	if f.Kind == KindDelay && f.Resource == "" {
		return fmt.Errorf("fault: delay requires a resource")
	}
	return nil
}

// Less implements the canonical ordering: kind, then resource
// lexicographically, then step ascending.
func Less(a, b Fault) bool {
	if a.Kind != b.Kind {
		return a.Kind.canonicalRank() < b.Kind.canonicalRank()
	}
	if a.Resource != b.Resource {
		return a.Resource < b.Resource
	}
	return a.Step < b.Step
}

// Schedule is a normalized, canonically ordered fault list plus the
// derived per-step and per-resource views the scheduler consults.
type Schedule struct {
	faults  []Fault
	byStep  map[int64][]Fault
	maxStep int64
}

// Normalize sorts faults into canonical order, coalesces overlapping or
// adjacent delay faults on the same resource (earliest start step and max
// end-step retained), and deduplicates identical faults.
func Normalize(raw []Fault) (*Schedule, error) {
	for _, f := range raw {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}

	// Coalesce delays per resource by merging overlapping or adjacent
	// [step, step+dur-1] intervals into their union, retaining the earliest start and the
	// max end-step.
	byResource := map[string][]Fault{}
	var others []Fault
	for _, f := range raw {
		if f.Kind == KindDelay {
			byResource[f.Resource] = append(byResource[f.Resource], f)
			continue
		}
		others = append(others, f)
	}

	var delayFaults []Fault
	for resource, fs := range byResource {
		sort.SliceStable(fs, func(i, j int) bool { return fs[i].Step < fs[j].Step })
		var cur Fault
		have := false
		for _, f := range fs {
			end := f.Step + f.Duration - 1
			if !have {
				cur = Fault{Kind: KindDelay, Resource: resource, Step: f.Step, Duration: f.Duration}
				have = true
				continue
			}
			curEnd := cur.Step + cur.Duration - 1
			if f.Step <= curEnd+1 {
				if end > curEnd {
					cur.Duration = end - cur.Step + 1
				}
				continue
			}
			delayFaults = append(delayFaults, cur)
			cur = Fault{Kind: KindDelay, Resource: resource, Step: f.Step, Duration: f.Duration}
		}
		if have {
			delayFaults = append(delayFaults, cur)
		}
	}

	// Deduplicate non-delay faults.
	seen := map[Fault]bool{}
	var deduped []Fault
	for _, f := range others {
		if seen[f] {
			continue
		}
		seen[f] = true
		deduped = append(deduped, f)
	}
	deduped = append(deduped, delayFaults...)

	sort.SliceStable(deduped, func(i, j int) bool { return Less(deduped[i], deduped[j]) })

	s := &Schedule{faults: deduped, byStep: map[int64][]Fault{}}
	for _, f := range deduped {
		s.byStep[f.Step] = append(s.byStep[f.Step], f)
		if f.Step > s.maxStep {
			s.maxStep = f.Step
		}
	}
	for step := range s.byStep {
		sort.SliceStable(s.byStep[step], func(i, j int) bool {
			return Less(s.byStep[step][i], s.byStep[step][j])
		})
	}
	return s, nil
}

// Faults returns the normalized, canonically ordered fault list.
func (s *Schedule) Faults() []Fault {
	out := make([]Fault, len(s.faults))
	copy(out, s.faults)
	return out
}

// FaultsAt returns the canonically ordered faults firing at step.
func (s *Schedule) FaultsAt(step int64) []Fault {
	fs := s.byStep[step]
	out := make([]Fault, len(fs))
	copy(out, fs)
	return out
}

// ResourceBlocked reports whether resource is covered by a delay fault at
// step: any delay with Step <= step < Step+Duration blocks it.
func (s *Schedule) ResourceBlocked(resource string, step int64) bool {
	for _, f := range s.faults {
		if f.Kind != KindDelay || f.Resource != resource {
			continue
		}
		if step >= f.Step && step < f.Step+f.Duration {
			return true
		}
	}
	return false
}

// ResourcesTouched returns the resources a command kind touches, per the
// adapter manifest's declared resource map. An empty/unknown map for a
// command means delay faults never block it.
type ResourceMap map[protocol.CmdKind][]string

func (m ResourceMap) ResourcesTouched(cmd protocol.CmdKind) []string {
	return m[cmd]
}
