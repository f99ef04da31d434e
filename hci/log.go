package hci

import "github.com/sirupsen/logrus"

// log is this package's structured logger. The teacher's own go.mod
// requires logrus but never imports it (every trace call there is a
// `log.Printf` no-op or a bare stdlib log.Printf); this rewrite actually
// wires it in, with structured fields such as opcode, stream, and the
// wrapped error.
var log = logrus.WithField("component", "hci")

// SetLogger lets an embedder point this package's diagnostics at its
// own logrus instance (e.g. to share hooks/output with the rest of a
// host process) instead of the default standard logger.
func SetLogger(l *logrus.Logger) {
	log = l.WithField("component", "hci")
}
