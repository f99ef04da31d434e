package fragmenter

import "github.com/sirupsen/logrus"

// log is this package's structured logger, matching hci.SetLogger's
// shape: a component field on top of whatever logrus instance the
// embedder configured.
var log = logrus.WithField("component", "fragmenter")
