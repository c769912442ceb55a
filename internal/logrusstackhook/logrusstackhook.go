// Package logrusstackhook attaches a formatted call stack to log entries, so
// debug output from deep inside the ingestion loops says where it came from.
package logrusstackhook

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytsubs/internal/stackutil"
)

type Formatter interface {
	FormatKey(i int, frame runtime.Frame) (string, error)
	FormatValue(i int, frame runtime.Frame) (string, error)
}

type FastFormatter struct{}

func (FastFormatter) FormatKey(i int, frame runtime.Frame) (string, error) {
	return fmt.Sprintf("stack.%02d", i), nil
}

func (FastFormatter) FormatValue(i int, frame runtime.Frame) (string, error) {
	return stackutil.FormatStackFrame(frame), nil
}

type FilterFunc func(index int, frame runtime.Frame) bool

func RemovePathsContaining(values []string) FilterFunc {
	return func(index int, frame runtime.Frame) bool {
		for _, value := range values {
			if strings.Contains(frame.File, value) {
				return false
			}
		}

		return true
	}
}

var (
	DefaultFormatter = &FastFormatter{}
	DefaultLevels    = []logrus.Level{logrus.DebugLevel, logrus.TraceLevel}
	DefaultFilter    = RemovePathsContaining([]string{"github.com/sirupsen/logrus"})
)

type StackHook struct {
	formatter Formatter
	levels    []logrus.Level
	filter    FilterFunc
}

func NewStackHook(formatter Formatter, levels []logrus.Level, filter FilterFunc) *StackHook {
	if formatter == nil {
		formatter = DefaultFormatter
	}

	if levels == nil {
		levels = DefaultLevels
	}

	if filter == nil {
		filter = DefaultFilter
	}

	return &StackHook{
		formatter: formatter,
		levels:    levels,
		filter:    filter,
	}
}

func (h *StackHook) Levels() []logrus.Level { return h.levels }

func (h *StackHook) Fire(e *logrus.Entry) error {
	// skip calls from inside logrus
	for index, frame := range stackutil.GetStack(25, 0) {
		if h.filter != nil && !h.filter(index, frame) {
			continue
		}

		key, err := h.formatter.FormatKey(index, frame)
		if err != nil {
			return err
		}

		value, err := h.formatter.FormatValue(index, frame)
		if err != nil {
			return err
		}

		e.Data[key] = value
	}

	return nil
}
