package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

func InitLogger(debug bool) {
	Log = logrus.New()
	Log.Out = os.Stdout

	if debug {
		Log.SetLevel(logrus.DebugLevel)
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		Log.SetLevel(logrus.InfoLevel)
		Log.SetFormatter(&logrus.JSONFormatter{})
	}
}

// WithComponent returns an entry tagged with the emitting component,
// so registry, receiver and sender lines can be told apart.
func WithComponent(name string) *logrus.Entry {
	if Log == nil {
		InitLogger(false)
	}
	return Log.WithField("component", name)
}
