package logging

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

const Header = "${time_rfc3339} ${level} ${short_file}:${line} -"

// New returns a leveled logger writing to out.
func New(prefix, level string, out io.Writer) *log.Logger {
	logger := log.New(prefix)
	logger.SetLevel(ParseLevel(level))
	logger.SetHeader(Header)
	logger.SetOutput(out)
	return logger
}

func ParseLevel(level string) log.Lvl {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return log.DEBUG
	case "WARN":
		return log.WARN
	case "ERROR":
		return log.ERROR
	case "OFF":
		return log.OFF
	default:
		return log.INFO
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Output returns stdout, mirrored to Logstash when addr is set. The closer
// flushes and disconnects the Logstash writer.
func Output(addr string) (io.Writer, io.Closer, error) {
	if strings.TrimSpace(addr) == "" {
		return os.Stdout, nopCloser{}, nil
	}
	ls, err := NewLogstashWriter(addr)
	if err != nil {
		return nil, nil, err
	}
	return io.MultiWriter(os.Stdout, ls), ls, nil
}
