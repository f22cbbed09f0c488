package terminate

import "fmt"

// Kind tags an Outcome.
type Kind string

const (
	Killed           Kind = "killed"
	AlreadyGone      Kind = "already_gone"
	PermissionDenied Kind = "permission_denied"
	Failed           Kind = "failed"
)

// Outcome is the terminal result of one kill request.
type Outcome struct {
	Kind   Kind   `json:"kind" yaml:"kind"`
	PID    int32  `json:"pid" yaml:"pid"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
	// Escalated is set when the forceful kill was needed.
	Escalated bool `json:"escalated,omitempty" yaml:"escalated,omitempty"`
}

// IsSuccess reports whether the process is known to be gone. AlreadyGone
// counts: the caller wanted the process stopped and it is.
func (o Outcome) IsSuccess() bool {
	return o.Kind == Killed || o.Kind == AlreadyGone
}

func (o Outcome) String() string {
	switch o.Kind {
	case Killed:
		if o.Escalated {
			return fmt.Sprintf("process %d killed (forced after grace period)", o.PID)
		}
		return fmt.Sprintf("process %d terminated", o.PID)
	case AlreadyGone:
		return fmt.Sprintf("process %d no longer exists", o.PID)
	case PermissionDenied:
		return fmt.Sprintf("permission denied for process %d", o.PID)
	default:
		return fmt.Sprintf("failed to kill process %d: %s", o.PID, o.Detail)
	}
}
