package logx

// nop discards everything; used by tests and optional collaborators.
type nop struct{}

var discard Logger = nop{}

// Nop returns a Logger that drops every entry.
func Nop() Logger { return discard }

// OrNop returns l, or Nop() when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return discard
	}
	return l
}

func (nop) Debug(string, ...Field) {}
func (nop) Info(string, ...Field)  {}
func (nop) Warn(string, ...Field)  {}
func (nop) Error(string, ...Field) {}
func (nop) With(...Field) Logger   { return discard }
func (nop) Sync() error            { return nil }
