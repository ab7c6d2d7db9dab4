package chat

// Severity is the visual weight of a notification
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityDestructive
)

func (s Severity) String() string {
	switch s {
	case SeverityDestructive:
		return "destructive"
	default:
		return "info"
	}
}

// Notifier delivers fire-and-forget, user-visible notifications
type Notifier interface {
	Notify(title, description string, severity Severity)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(title, description string, severity Severity)

// Notify calls f
func (f NotifierFunc) Notify(title, description string, severity Severity) {
	f(title, description, severity)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, Severity) {}
