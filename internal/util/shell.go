package util

import "strings"

// ShellQuote wraps s in single quotes for a POSIX shell, escaping embedded quotes.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// PowerShellQuote wraps s in a PowerShell single-quoted literal.
func PowerShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
