package logging

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// restyLogger routes resty's internal messages into zerolog.
type restyLogger struct {
	logger zerolog.Logger
}

// Resty adapts a zerolog logger to resty's Logger interface.
func Resty(logger zerolog.Logger) resty.Logger {
	return &restyLogger{logger: logger.With().Str("source", "resty").Logger()}
}

func (l *restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msg(trim(format, v...))
}

func (l *restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msg(trim(format, v...))
}

func (l *restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msg(trim(format, v...))
}

// resty debug dumps end with newlines.
func trim(format string, v ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, v...))
}

// Redacted replaces credential header values in resty debug dumps.
const Redacted = "[REDACTED]"

// credentialHeaders never reach a debug dump in clear text.
var credentialHeaders = []string{"Authorization", "Proxy-Authorization", "Cookie", "Set-Cookie"}

// RedactRequestLog is a resty.RequestLogCallback that masks credentials in a
// request dump. The scheme of an Authorization header is kept.
func RedactRequestLog(rl *resty.RequestLog) error {
	redact(rl.Header)
	return nil
}

// RedactResponseLog is a resty.ResponseLogCallback that masks cookies set by
// the backend.
func RedactResponseLog(rl *resty.ResponseLog) error {
	redact(rl.Header)
	return nil
}

func redact(header http.Header) {
	for _, name := range credentialHeaders {
		values := header.Values(name)
		if len(values) == 0 {
			continue
		}
		masked := make([]string, len(values))
		for i, v := range values {
			masked[i] = Redacted
			if scheme, _, ok := strings.Cut(v, " "); ok && strings.HasSuffix(name, "Authorization") {
				masked[i] = scheme + " " + Redacted
			}
		}
		header[http.CanonicalHeaderKey(name)] = masked
	}
}
