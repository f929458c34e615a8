package log

import "io"

// MultiWriter fans a single logrus output stream out to every appender
// registered on it (console, file, kafka, loki), continuing past any one
// appender's write error so a broken sink never blocks the others.
type MultiWriter struct {
	writers []io.Writer
}

// NewMultiWriter returns an empty MultiWriter ready to have appenders added.
func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}

// Write forwards p to every registered writer. It returns the last error
// encountered, if any, but always reports len(p) written so one failing
// appender doesn't make logrus think the whole line was lost.
func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		if e := writeAll(w, p); e != nil {
			err = e
		}
	}
	return len(p), err
}

func writeAll(w io.Writer, p []byte) error {
	_, err := w.Write(p)
	return err
}

// Add registers writer as an additional output and returns m for chaining.
func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}
