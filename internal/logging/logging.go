package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/mrhapile/vsix-updater/pkg/types"
)

// FormatEnv selects JSON output when set to "json".
const FormatEnv = "VSIXUPDATER_LOG_FORMAT"

var (
	logFormatOnce sync.Once
	logAsJSON     bool
	formatMu      sync.RWMutex
)

// SetFormat forces the output format ("text" or "json"), overriding the
// environment.
func SetFormat(format string) {
	logFormatOnce.Do(func() {})
	formatMu.Lock()
	logAsJSON = strings.EqualFold(strings.TrimSpace(format), "json")
	formatMu.Unlock()
}

func jsonEnabled() bool {
	logFormatOnce.Do(func() {
		formatMu.Lock()
		logAsJSON = strings.EqualFold(strings.TrimSpace(os.Getenv(FormatEnv)), "json")
		formatMu.Unlock()
	})
	formatMu.RLock()
	defer formatMu.RUnlock()
	return logAsJSON
}

// Info logs a message with key/value fields using a consistent prefix.
func Info(component, msg string, kv ...interface{}) {
	emit("INFO", component, msg, kv...)
}

// Warn logs a warning with key/value fields.
func Warn(component, msg string, kv ...interface{}) {
	emit("WARN", component, msg, kv...)
}

// Error logs an error message with key/value fields using a consistent prefix.
func Error(component, msg string, kv ...interface{}) {
	emit("ERROR", component, msg, kv...)
}

func emit(level, component, msg string, kv ...interface{}) {
	if jsonEnabled() {
		log.Print(formatJSON(level, component, msg, kv...))
		return
	}
	prefix := ""
	if level != "INFO" {
		prefix = level + " "
	}
	log.Printf("[%s] %s%s%s", strings.ToUpper(component), prefix, msg, formatFields(kv...))
}

func formatJSON(level, component, msg string, kv ...interface{}) string {
	payload := map[string]any{
		"level":     level,
		"component": component,
		"msg":       msg,
	}
	if len(kv)%2 != 0 {
		kv = append(kv, "(missing)")
	}
	for i := 0; i < len(kv); i += 2 {
		key := strings.TrimSpace(toString(kv[i]))
		if _, taken := payload[key]; taken {
			key = "field." + key
		}
		payload[key] = jsonValue(kv[i+1])
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"level":%q,"component":%q,"msg":%q}`, level, component, msg)
	}
	return string(buf)
}

func jsonValue(v interface{}) interface{} {
	switch t := v.(type) {
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	default:
		return t
	}
}

func formatFields(kv ...interface{}) string {
	if len(kv) == 0 {
		return ""
	}
	if len(kv)%2 != 0 {
		kv = append(kv, "(missing)")
	}
	var b strings.Builder
	b.WriteString(" ")
	for i := 0; i < len(kv); i += 2 {
		if i > 0 {
			b.WriteString(" ")
		}
		key := kv[i]
		val := kv[i+1]
		b.WriteString(strings.TrimSpace(toString(key)))
		b.WriteString("=")
		b.WriteString(toString(val))
	}
	return b.String()
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(fmt.Sprintf("%v", t)), "\n", " "), "\t", " "))
	}
}

// Sink adapts the package level functions to types.Logger so pipeline
// notices end up in the same log stream.
type Sink struct {
	Component string
}

// Log implements types.Logger.
func (s Sink) Log(sev types.Severity, msg string) {
	switch sev {
	case types.SeverityWarning:
		Warn(s.Component, msg)
	case types.SeverityError:
		Error(s.Component, msg)
	default:
		Info(s.Component, msg)
	}
}
