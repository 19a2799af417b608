package hkp

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// statusWriter wraps an http.ResponseWriter to record the status code
// and body size written by a handler.
type statusWriter struct {
	http.ResponseWriter
	code int
	size int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.code = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	sw.size += n
	return n, err
}

// remoteIP returns the client IP of a request, honoring the usual
// proxy headers.
func remoteIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	return ip
}

// logRequests logs every request once its response has been written.
func logRequests(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{w, http.StatusOK, 0}
		h.ServeHTTP(sw, r)

		logrus.WithFields(logrus.Fields{
			"remote": remoteIP(r),
			"code":   sw.code,
			"size":   sw.size,
			"method": r.Method,
			"path":   r.RequestURI,
			"agent":  r.UserAgent(),
			"took":   time.Since(start),
		}).Info("http request")
	})
}
