package command

// Result is the tri-state outcome a handler reports.
type Result int

const (
	// ResultOK leaves the reply as the handler built it.
	ResultOK Result = iota
	// ResultBadArgument reports missing or malformed form fields.
	ResultBadArgument
	// ResultError reports a failure while carrying out the command.
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultBadArgument:
		return "BADARG"
	case ResultError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Outcome labels used for logging and metrics.
const (
	OutcomeOK          = "ok"
	OutcomeBadArgument = "bad_argument"
	OutcomeError       = "error"
	OutcomeNotFound    = "not_found"
	OutcomeMalformed   = "malformed"
)
