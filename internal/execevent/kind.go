package execevent

// Kind is the type of an execution event.
type Kind string

const (
	KindDiscoveryStarted       Kind = "discoveryStarted"
	KindSessionStarted         Kind = "sessionStarted"
	KindSessionEnded           Kind = "sessionEnded"
	KindProjectSkipped         Kind = "projectSkipped"
	KindProjectStarted         Kind = "projectStarted"
	KindProjectSucceeded       Kind = "projectSucceeded"
	KindProjectFailed          Kind = "projectFailed"
	KindStepSkipped            Kind = "stepSkipped"
	KindStepStarted            Kind = "stepStarted"
	KindStepSucceeded          Kind = "stepSucceeded"
	KindStepFailed             Kind = "stepFailed"
	KindForkStarted            Kind = "forkStarted"
	KindForkSucceeded          Kind = "forkSucceeded"
	KindForkFailed             Kind = "forkFailed"
	KindForkedProjectStarted   Kind = "forkedProjectStarted"
	KindForkedProjectSucceeded Kind = "forkedProjectSucceeded"
	KindForkedProjectFailed    Kind = "forkedProjectFailed"
)

var allKinds = []Kind{
	KindDiscoveryStarted, KindSessionStarted, KindSessionEnded, KindProjectSkipped,
	KindProjectStarted, KindProjectSucceeded, KindProjectFailed,
	KindStepSkipped, KindStepStarted, KindStepSucceeded, KindStepFailed,
	KindForkStarted, KindForkSucceeded, KindForkFailed,
	KindForkedProjectStarted, KindForkedProjectSucceeded, KindForkedProjectFailed,
}

// Kinds returns every known event kind.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Forked reports whether k belongs to a forked execution.
func (k Kind) Forked() bool {
	switch k {
	case KindForkStarted, KindForkSucceeded, KindForkFailed,
		KindForkedProjectStarted, KindForkedProjectSucceeded, KindForkedProjectFailed:
		return true
	}
	return false
}

// NeedsProject reports whether events of this kind must name a project.
func (k Kind) NeedsProject() bool {
	switch k {
	case KindDiscoveryStarted, KindSessionStarted, KindSessionEnded:
		return false
	}
	return true
}

// NeedsStep reports whether events of this kind must name a step.
func (k Kind) NeedsStep() bool {
	switch k {
	case KindStepSkipped, KindStepStarted, KindStepSucceeded, KindStepFailed,
		KindForkStarted, KindForkSucceeded, KindForkFailed:
		return true
	}
	return false
}

// Failed reports whether k signals a failed project or step.
func (k Kind) Failed() bool {
	switch k {
	case KindProjectFailed, KindStepFailed, KindForkFailed, KindForkedProjectFailed:
		return true
	}
	return false
}
