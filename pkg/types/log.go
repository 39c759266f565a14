package types

// Severity grades a message sent to a Logger.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARN"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the sink the update pipeline reports progress and notices to.
type Logger interface {
	Log(sev Severity, msg string)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(sev Severity, msg string)

// Log calls f(sev, msg).
func (f LoggerFunc) Log(sev Severity, msg string) {
	f(sev, msg)
}
