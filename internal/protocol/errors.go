package protocol

import "fmt"

// Error kinds surfaced to callers. The strings are stable: they appear in
// ExecutionReport JSON and in audit entries.
const (
	// Input/boundary validation.
	KindValidation = "E_VALIDATION"
	KindConfig     = "E_CONFIG"

	// Transport layer.
	KindConnect = "E_CONNECT"
	KindAuth    = "E_AUTH"
	KindTimeout = "E_TIMEOUT"

	// Target environment rejected the command text.
	KindCommand = "E_COMMAND"

	KindInternal = "E_INTERNAL"
)

var knownKinds = map[string]struct{}{
	KindValidation: {},
	KindConfig:     {},
	KindConnect:    {},
	KindAuth:       {},
	KindTimeout:    {},
	KindCommand:    {},
	KindInternal:   {},
}

func IsKnownKind(kind string) bool {
	if kind == "" {
		return true
	}
	_, ok := knownKinds[kind]
	return ok
}

// Fault is an error carrying one of the kinds above.
type Fault struct {
	Kind string
	Msg  string
}

func (f *Fault) Error() string { return f.Kind + ": " + f.Msg }

func Faultf(kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the fault kind of err, or E_INTERNAL for plain errors.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	if f, ok := err.(*Fault); ok {
		return f.Kind
	}
	return KindInternal
}
