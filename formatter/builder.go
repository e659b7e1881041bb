// Package formatter renders issues as annotated source snippets.
package formatter

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	"github.com/fatih/color"

	tt "github.com/gnolang/smartcast/internal/types"
)

const tabWidth = 8

var (
	errorStyle   = color.New(color.FgRed, color.Bold)
	warningStyle = color.New(color.FgHiYellow, color.Bold)
	infoStyle    = color.New(color.FgCyan, color.Bold)
	ruleStyle    = color.New(color.FgYellow, color.Bold)
	fileStyle    = color.New(color.FgCyan, color.Bold)
	lineStyle    = color.New(color.FgHiBlue, color.Bold)
	messageStyle = color.New(color.FgRed, color.Bold)
	noteStyle    = color.New(color.FgGreen, color.Bold)
)

const issueTemplate = `{{header .}}
{{snippet .}}
{{underline .}}
{{- note .}}
`

var tmpl = template.Must(template.New("issue").Funcs(template.FuncMap{
	"header":    header,
	"snippet":   snippet,
	"underline": underline,
	"note":      note,
}).Parse(issueTemplate))

type issueData struct {
	tt.Issue
	Lines   []string
	Width   int
	Padding string
	Indent  string
}

// GenerateFormattedIssue renders every issue of one file.
func GenerateFormattedIssue(issues []tt.Issue, src *tt.SourceCode) string {
	var b strings.Builder
	for _, issue := range issues {
		b.WriteString(buildIssue(issue, src))
	}
	return b.String()
}

func buildIssue(issue tt.Issue, src *tt.SourceCode) string {
	if issue.End.Line < issue.Start.Line {
		issue.End = issue.Start
	}
	width := len(fmt.Sprint(issue.End.Line))
	data := issueData{
		Issue:   issue,
		Lines:   src.Lines,
		Width:   width,
		Padding: strings.Repeat(" ", width+1),
	}
	if validRange(issue.Start.Line, issue.End.Line, src.Lines) {
		data.Indent = commonIndent(src.Lines[issue.Start.Line-1 : issue.End.Line])
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("error formatting issue: %v\n", err)
	}
	return buf.String()
}

func header(d issueData) string {
	var sev string
	switch d.Severity {
	case tt.SeverityError:
		sev = errorStyle.Sprint("error")
	case tt.SeverityInfo:
		sev = infoStyle.Sprint("info")
	default:
		sev = warningStyle.Sprint("warning")
	}
	return sev + ": " + ruleStyle.Sprint(d.Rule) + "\n" +
		lineStyle.Sprintf("%s--> ", strings.Repeat(" ", d.Width)) +
		fileStyle.Sprintf("%s:%d:%d", d.Filename, d.Start.Line, d.Start.Column)
}

func snippet(d issueData) string {
	out := lineStyle.Sprintf("%s|", d.Padding)
	if !validRange(d.Start.Line, d.End.Line, d.Lines) {
		return out
	}
	for i := d.Start.Line; i <= d.End.Line; i++ {
		line := strings.TrimPrefix(d.Lines[i-1], d.Indent)
		out += "\n" + lineStyle.Sprintf("%*d | ", d.Width, i) + line
	}
	return out
}

func underline(d issueData) string {
	out := lineStyle.Sprintf("%s| ", d.Padding)
	if validRange(d.Start.Line, d.End.Line, d.Lines) {
		indent := visualColumn(d.Indent, len(d.Indent)+1)
		first := d.Lines[d.Start.Line-1]
		start := visualColumn(first, d.Start.Column) - indent
		if start < 0 {
			start = 0
		}
		end := visualColumn(first, len(first)+1) - indent
		if d.End.Line == d.Start.Line {
			end = visualColumn(first, d.End.Column) - indent
		}
		length := end - start
		if length < 1 {
			length = 1
		}
		out += strings.Repeat(" ", start) + messageStyle.Sprint(strings.Repeat("~", length)) + "\n"
		out += lineStyle.Sprintf("%s= ", d.Padding)
	}
	return out + messageStyle.Sprint(d.Message) + "\n"
}

func note(d issueData) string {
	if d.Note == "" {
		return ""
	}
	return lineStyle.Sprintf("%s= ", d.Padding) + noteStyle.Sprint("note: ") + d.Note + "\n"
}

func validRange(start, end int, lines []string) bool {
	return start > 0 && start <= end && end <= len(lines)
}

// visualColumn returns the display offset of the 1-based byte column,
// expanding tabs.
func visualColumn(line string, column int) int {
	visual := 0
	for i, ch := range line {
		if i+1 >= column {
			break
		}
		if ch == '\t' {
			visual += tabWidth - visual%tabWidth
		} else {
			visual++
		}
	}
	return visual
}

// commonIndent returns the leading whitespace shared by all non-blank lines.
func commonIndent(lines []string) string {
	var indent []rune
	found := false
	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed == "" {
			continue
		}
		current := []rune(line[:len(line)-len(trimmed)])
		if !found {
			indent, found = current, true
			continue
		}
		indent = commonPrefix(indent, current)
	}
	return string(indent)
}

func commonPrefix(a, b []rune) []rune {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
