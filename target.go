package odbcarrow

import (
	"strconv"
	"strings"
)

// aliasMaxLen is the longest host identifier still treated as a registered
// data source alias.
const aliasMaxLen = 32

// AddressingStyle is how a host identifier addresses the data source.
type AddressingStyle int

const (
	// StyleAlias is a short registered data source name.
	StyleAlias AddressingStyle = iota
	// StylePath is a database file or a long name, addressed through an
	// explicit driver.
	StylePath
	// StyleConnectionString is a complete driver connection string.
	StyleConnectionString
)

func (s AddressingStyle) String() string {
	switch s {
	case StyleConnectionString:
		return "connection-string"
	case StylePath:
		return "path"
	default:
		return "alias"
	}
}

var connStringMarkers = []string{"driver=", "server=", "dsn=", "filedsn="}

var databaseFileExts = []string{".fdb", ".gdb", ".ib", ".db", ".sqlite", ".sqlite3", ".mdb", ".accdb"}

// ClassifyHost returns the addressing style of a host identifier. Exactly one
// style applies, checked in priority order: connection string markers, path
// markers, length, alias.
func ClassifyHost(hostID string) AddressingStyle {
	switch {
	case hasConnStringMarker(hostID):
		return StyleConnectionString
	case isPathLike(hostID), len(hostID) > aliasMaxLen:
		return StylePath
	default:
		return StyleAlias
	}
}

func hasConnStringMarker(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range connStringMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func isPathLike(s string) bool {
	if strings.ContainsAny(s, `/\`) {
		return true
	}
	if len(s) >= 2 && s[1] == ':' && isASCIILetter(s[0]) {
		return true
	}
	lower := strings.ToLower(s)
	for _, ext := range databaseFileExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// ConnectionTarget is a resolved, driver-ready connection string. It is built
// once per call and holds the password in clear; String and Redacted mask it,
// only ConnString exposes it.
type ConnectionTarget struct {
	conn  string
	style AddressingStyle
}

// ConnString returns the connection string handed to the driver.
func (t ConnectionTarget) ConnString() string {
	return t.conn
}

// Style reports the addressing style the target was built with.
func (t ConnectionTarget) Style() AddressingStyle {
	return t.style
}

// String implements fmt.Stringer with the password masked.
func (t ConnectionTarget) String() string {
	return t.Redacted()
}

// Redacted returns the connection string with the PWD value masked.
func (t ConnectionTarget) Redacted() string {
	return RedactConnString(t.conn)
}

// RedactConnString masks the PWD attribute of an ODBC connection string.
func RedactConnString(conn string) string {
	parts := splitAttributes(conn)
	for i, p := range parts {
		k, _, ok := strings.Cut(p, "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), "PWD") {
			parts[i] = k + "=****"
		}
	}
	return strings.Join(parts, ";")
}

// splitAttributes splits a connection string on ';' outside braced values.
// Inside braces "}}" is an escaped '}'.
func splitAttributes(s string) []string {
	var (
		parts   []string
		inBrace bool
		start   int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case inBrace && c == '}':
			if i+1 < len(s) && s[i+1] == '}' {
				i++
				continue
			}
			inBrace = false
		case !inBrace && c == '{':
			inBrace = true
		case !inBrace && c == ';':
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// Resolve builds the connection target for one call. It never fails: input it
// cannot make sense of is passed through as well as possible.
func Resolve(hostID, user, password string, cfg QueryConfig) ConnectionTarget {
	var b strings.Builder

	style := ClassifyHost(hostID)
	switch style {
	case StyleConnectionString:
		b.WriteString(hostID)
		if !strings.HasSuffix(hostID, ";") {
			b.WriteByte(';')
		}
	case StylePath:
		writeAttr(&b, "DRIVER", "{"+cfg.driverName()+"}")
		if isPathLike(hostID) {
			writeAttr(&b, "DBNAME", quoteValue(hostID))
		} else {
			writeAttr(&b, "DSN", quoteValue(hostID))
		}
	default:
		writeAttr(&b, "DSN", quoteValue(hostID))
	}

	writeAttr(&b, "UID", quoteValue(user))
	writeAttr(&b, "PWD", quoteValue(password))

	if cfg.ReadOnly {
		writeAttr(&b, "ReadOnly", "1")
	}
	if cfg.ConnectionTimeout != nil {
		writeAttr(&b, "Connection Timeout", strconv.FormatUint(uint64(*cfg.ConnectionTimeout), 10))
	}
	if cfg.QueryTimeout != nil {
		writeAttr(&b, "Query Timeout", strconv.FormatUint(uint64(*cfg.QueryTimeout), 10))
	}
	if cfg.IsolationLevel != "" {
		writeAttr(&b, "Isolation Level", IsolationToken(cfg.IsolationLevel))
	}

	return ConnectionTarget{conn: b.String(), style: style}
}

func writeAttr(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteByte(';')
}

// quoteValue brace-quotes values the driver manager would otherwise split.
func quoteValue(v string) string {
	if !strings.ContainsAny(v, ";{}") && strings.TrimSpace(v) == v {
		return v
	}
	return "{" + strings.ReplaceAll(v, "}", "}}") + "}"
}
