package dronectl

import (
	"bytes"
	"text/template"
)

// reapScript is the POSIX shell routine pushed to the remote host once per
// stop operation. It performs the whole enumerate/match/kill/re-enumerate
// batch in a single round trip, so a process can never be double-matched
// across separate remote calls, then removes itself.
//
// It reads /proc/<pid>/cmdline directly instead of parsing ps output: the
// receiver host runs BusyBox, where ps column layout is unstable, and
// matching needs the full command line, not just argv[0]. Its own shell is
// skipped by PID. NUL, newline, and CR in the cmdline are all mapped to
// spaces so no process can forge extra protocol lines by embedding a
// newline in its own argv.
//
// Output line protocol, consumed by parseStopReport:
//
//	MATCH|<pattern index>|<pid>|<command line>
//	KILL|<pid>|ok        signal accepted
//	KILL|<pid>|fail      signal rejected (gone already, or EPERM)
//	RESIDUAL|<pattern index>|<pid>|<command line>
var reapScript = template.Must(template.New("reap").Funcs(template.FuncMap{
	"quote": shellQuote,
	"inc":   func(i int) int { return i + 1 },
}).Parse(`#!/bin/sh
# dronectl reap routine: scan for command lines containing known fragments,
# force-kill every distinct match once, rescan, remove self.

scan() {
	phase="$1"
	for d in /proc/[0-9]*; do
		pid="${d#/proc/}"
		[ "$pid" = "$$" ] && continue
		cmd=$(tr '\0\n\r' '   ' <"$d/cmdline" 2>/dev/null)
		[ -n "$cmd" ] || continue
{{- range $i, $p := .Patterns}}
		case "$cmd" in *{{quote $p}}*) printf '%s|{{inc $i}}|%s|%s\n' "$phase" "$pid" "$cmd";; esac
{{- end}}
	done
}

matches=$(scan MATCH)
if [ -n "$matches" ]; then
	printf '%s\n' "$matches"
	for pid in $(printf '%s\n' "$matches" | cut -d'|' -f3 | sort -un); do
		if kill -9 "$pid" 2>/dev/null; then
			printf 'KILL|%s|ok\n' "$pid"
		else
			printf 'KILL|%s|fail\n' "$pid"
		fi
	done
	scan RESIDUAL
fi
rm -f -- "$0"
`))

// renderReapScript embeds the quoted patterns into the reap routine.
// Patterns must already be validated.
func renderReapScript(patterns PatternSet) ([]byte, error) {
	var buf bytes.Buffer
	if err := reapScript.Execute(&buf, struct{ Patterns PatternSet }{patterns}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
