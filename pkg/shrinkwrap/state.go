package shrinkwrap

// Phase is the state of the support refinement.
type Phase int

const (
	// Exploring runs before the first support update; the support is fixed
	Exploring Phase = iota
	// Refining performs an update every Cadence iterations
	Refining
	// Converged is terminal: the run has met its stopping rule
	Converged
	// Diverged is terminal: too many consecutive bad masks
	Diverged
)

func (p Phase) String() string {
	switch p {
	case Exploring:
		return "exploring"
	case Refining:
		return "refining"
	case Converged:
		return "converged"
	case Diverged:
		return "diverged"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible
func (p Phase) Terminal() bool { return p == Converged || p == Diverged }

// Schedule sets when support updates happen and when a run is declared diverged.
type Schedule struct {
	// Start is the first iteration (0-based) at which an update runs
	Start int
	// Cadence is the number of iterations between updates; 0 disables shrink-wrap
	Cadence int
	// MaxBadMasks is the number of consecutive bad masks that ends the run
	MaxBadMasks int
}

// Machine tracks the refinement phase. All transitions go through Observe
// and Converge so they can be exercised without running a reconstruction.
type Machine struct {
	schedule Schedule
	phase    Phase
	badMasks int
}

// NewMachine returns a machine in the Exploring phase
func NewMachine(schedule Schedule) *Machine {
	if schedule.MaxBadMasks < 1 {
		schedule.MaxBadMasks = 1
	}
	return &Machine{schedule: schedule, phase: Exploring}
}

// Phase returns the current phase
func (m *Machine) Phase() Phase { return m.phase }

// BadMasks returns the current run of consecutive bad masks
func (m *Machine) BadMasks() int { return m.badMasks }

// Due reports whether a support update should run at iteration iter.
func (m *Machine) Due(iter int) bool {
	if m.phase.Terminal() || m.schedule.Cadence <= 0 || iter < m.schedule.Start {
		return false
	}
	return (iter-m.schedule.Start)%m.schedule.Cadence == 0
}

// Observe records the outcome of a support update and returns the new phase.
//
//	Exploring --update--> Refining
//	Refining  --MaxBadMasks consecutive bad--> Diverged
//	any good outcome resets the bad-mask count
func (m *Machine) Observe(o Outcome) Phase {
	if m.phase.Terminal() {
		return m.phase
	}
	if m.phase == Exploring {
		m.phase = Refining
	}
	if o.Bad() {
		m.badMasks++
		if m.badMasks >= m.schedule.MaxBadMasks {
			m.phase = Diverged
		}
		return m.phase
	}
	m.badMasks = 0
	return m.phase
}

// Converge moves a non-terminal machine to Converged
func (m *Machine) Converge() {
	if !m.phase.Terminal() {
		m.phase = Converged
	}
}
