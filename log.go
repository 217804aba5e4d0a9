package dbus

import "github.com/sirupsen/logrus"

// fieldLogger is the subset of logrus's API the core depends on, so a
// caller can hand in a *logrus.Entry, a *logrus.Logger, or a test double
// without pulling logrus types into the public API's method signatures
// any more than necessary.
type fieldLogger interface {
	WithField(key string, value interface{}) *logrus.Entry
	WithError(err error) *logrus.Entry
}

// defaultLogger wraps logrus's package-level standard logger, used when
// a connection is dialed without WithLogger (§7 "observability hook").
func defaultLogger() fieldLogger { return logrus.StandardLogger() }

// logDroppedMessage logs and drops a per-message decode error without
// closing the connection, per §7 "Per-message decoding errors do NOT
// close the connection: the faulty message is dropped and the error is
// logged through the observability hook."
func logDroppedMessage(log fieldLogger, err error) {
	log.WithError(err).WithField("action", "drop").Error("dbus: malformed message dropped")
}
