package waldump

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the package-level logger, following the teacher's package-var
// logger pattern. The CLI driver may replace its formatter/level but
// never its identity, so library code and the driver always share one
// sink.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetQuiet raises the logger's level so only warnings and errors are
// emitted, for the --quiet CLI flag.
func SetQuiet(quiet bool) {
	if quiet {
		Log.SetLevel(logrus.WarnLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}
