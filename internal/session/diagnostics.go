package session

import (
	"bytes"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
)

// TableDiagnostics logs every series as a sample/axis table at debug
// level and correlations at info level.
type TableDiagnostics struct {
	Logger *log.Logger
}

func (d TableDiagnostics) logger() *log.Logger {
	if d.Logger == nil {
		return log.StandardLogger()
	}
	return d.Logger
}

func (d TableDiagnostics) Series(label string, s gesture.Series) {
	l := d.logger()
	if !l.IsLevelEnabled(log.DebugLevel) {
		return
	}
	var buf bytes.Buffer
	if err := gesture.WriteTable(&buf, s); err != nil {
		l.Warnf("diagnostics: %s table: %v", label, err)
		return
	}
	l.Debugf("diagnostics: %s\n%s", label, buf.String())
}

func (d TableDiagnostics) Correlation(c gesture.CorrelationVector, v gesture.Verdict) {
	d.logger().WithField("verdict", v.String()).Infof("diagnostics: correlation %s", gesture.FormatCorrelations(c))
}

// MultiDiagnostics fans out to several Diagnostics.
type MultiDiagnostics []Diagnostics

func (m MultiDiagnostics) Series(label string, s gesture.Series) {
	for _, d := range m {
		d.Series(label, s)
	}
}

func (m MultiDiagnostics) Correlation(c gesture.CorrelationVector, v gesture.Verdict) {
	for _, d := range m {
		d.Correlation(c, v)
	}
}
