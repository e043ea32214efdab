package core

// Logger is the application-wide logging contract. Implementations may fan
// out to an error tracker in addition to a local sink; a user.User passed in
// args is attached to the report as the affected person.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
