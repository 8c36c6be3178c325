package train

// Outcome is the scheduler's verdict after observing one validation loss.
type Outcome int

const (
	// Improved: the loss is the best seen; the caller should checkpoint.
	Improved Outcome = iota
	// NoImprovement: worse than the best, but patience is not exhausted.
	NoImprovement
	// ShouldStop: patience consecutive non-improving epochs; stop early.
	ShouldStop
)

func (o Outcome) String() string {
	switch o {
	case Improved:
		return "improved"
	case NoImprovement:
		return "no improvement"
	case ShouldStop:
		return "should stop"
	}
	return "unknown"
}

// Scheduler is the early-stopping state machine: it tracks the best
// validation loss seen and a bad-epoch counter, and Observe is its only
// transition function.
type Scheduler struct {
	patience  int
	best      float64
	badEpochs int
	started   bool
}

// NewScheduler creates a scheduler that stops after patience consecutive
// non-improving epochs.
func NewScheduler(patience int) *Scheduler {
	return &Scheduler{patience: patience}
}

// Observe feeds one validation loss into the state machine and returns the
// transition outcome. A strict improvement resets the bad-epoch counter.
func (s *Scheduler) Observe(loss float64) Outcome {
	if !s.started || loss < s.best {
		s.started = true
		s.best = loss
		s.badEpochs = 0
		return Improved
	}
	s.badEpochs++
	if s.badEpochs >= s.patience {
		return ShouldStop
	}
	return NoImprovement
}

// Best returns the best validation loss observed so far.
func (s *Scheduler) Best() float64 { return s.best }

// BadEpochs returns the current count of consecutive non-improving epochs.
func (s *Scheduler) BadEpochs() int { return s.badEpochs }
