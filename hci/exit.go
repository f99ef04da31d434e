package hci

import "os"

// osExit is the production default passed to newDefaultFaultReporter;
// indirected through a var so tests exercising the registry's timeout
// path without a WithFaultReporter override don't take down the test
// binary.
var osExit = os.Exit
