package notifications

// Alert levels
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notifier defines the interface for notification services
type Notifier interface {
	// SendAlert sends an alert with the specified level and message
	SendAlert(level, message string) error
}

// Nop discards every alert
type Nop struct{}

// SendAlert does nothing
func (Nop) SendAlert(level, message string) error { return nil }

// OrNop returns n, or a Nop notifier when n is nil
func OrNop(n Notifier) Notifier {
	if n == nil {
		return Nop{}
	}
	return n
}
