// Package statusrecorder wraps a response writer so middlewares can
// observe the status code downstream handlers answered with.
package statusrecorder

import "net/http"

type Writer struct {
	http.ResponseWriter

	status int
}

// Wrap covers the given response writer.
func Wrap(w http.ResponseWriter) *Writer {
	return &Writer{ResponseWriter: w}
}

func (w *Writer) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}

	w.ResponseWriter.WriteHeader(code)
}

func (w *Writer) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	return w.ResponseWriter.Write(b)
}

// Status returns the recorded status code. A handler that never wrote
// anything counts as 200, matching net/http.
func (w *Writer) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}

	return w.status
}
