package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// FixedFormatWriter converts zerolog JSON lines into fixed-width columns for log files
// that are read by people rather than shippers:
//
//	2026-10-19 09:00:00.000 [INF] [keepalive      ] Keep-alive cycle started interval=100ms
//	2026-10-19 09:00:01.200 [WRN] [keepalive      ] Update callback failed err="sink closed"
type FixedFormatWriter struct {
	w io.Writer
}

// NewFixedFormatWriter creates a new FixedFormatWriter that wraps the given writer.
func NewFixedFormatWriter(w io.Writer) *FixedFormatWriter {
	return &FixedFormatWriter{w: w}
}

const (
	componentWidth = 15
	timestampWidth = 23
)

var levelAbbrev = map[string]string{
	zerolog.TraceLevel.String(): "TRC",
	zerolog.DebugLevel.String(): "DBG",
	zerolog.InfoLevel.String():  "INF",
	zerolog.WarnLevel.String():  "WRN",
	zerolog.ErrorLevel.String(): "ERR",
	zerolog.FatalLevel.String(): "FTL",
	zerolog.PanicLevel.String(): "PNC",
}

func (f *FixedFormatWriter) Write(p []byte) (int, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		return f.w.Write(p)
	}

	ts := formatTimestamp(popString(fields, zerolog.TimestampFieldName))
	lvl, ok := levelAbbrev[popString(fields, zerolog.LevelFieldName)]
	if !ok {
		lvl = "???"
	}
	comp := popString(fields, "component")
	if len(comp) > componentWidth {
		comp = comp[:componentWidth]
	}
	msg := popString(fields, zerolog.MessageFieldName)
	delete(fields, zerolog.CallerFieldName)

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%-*s] %s", ts, lvl, componentWidth, comp, msg)
	if extra := formatExtra(fields); extra != "" {
		b.WriteByte(' ')
		b.WriteString(extra)
	}
	b.WriteByte('\n')

	_, err := io.WriteString(f.w, b.String())
	// zerolog treats a short write as an error, so report the input length.
	return len(p), err
}

func popString(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	delete(fields, key)
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// formatTimestamp turns an RFC3339 timestamp into "2006-01-02 15:04:05.000",
// dropping the zone and normalizing the fraction to milliseconds.
func formatTimestamp(ts string) string {
	if len(ts) < 19 {
		return strings.Repeat(" ", timestampWidth)
	}

	result := strings.Replace(ts, "T", " ", 1)
	if idx := strings.IndexAny(result[11:], "Z+-"); idx >= 0 {
		result = result[:11+idx]
	}

	dot := strings.LastIndex(result, ".")
	if dot == -1 {
		result += ".000"
	} else if frac := result[dot+1:]; len(frac) > 3 {
		result = result[:dot+4]
	} else {
		result += strings.Repeat("0", 3-len(frac))
	}

	if len(result) < timestampWidth {
		return result + strings.Repeat(" ", timestampWidth-len(result))
	}
	return result[:timestampWidth]
}

// formatExtra renders the remaining fields as sorted key=value pairs.
func formatExtra(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		s := fmt.Sprintf("%v", fields[k])
		if strings.ContainsAny(s, " \t\n\"") {
			parts = append(parts, fmt.Sprintf("%s=%q", k, s))
		} else {
			parts = append(parts, k+"="+s)
		}
	}
	return strings.Join(parts, " ")
}
