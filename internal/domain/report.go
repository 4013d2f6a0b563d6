package domain

import "strings"

type Section struct {
	Title string
	Body  string
}

// Report is the ordered, rendered output of one run. Immutable once
// produced; the delivery collaborator receives the rendered text as-is.
type Report struct {
	Sections []Section
}

func (r Report) Render() string {
	var sb strings.Builder
	for i, sec := range r.Sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if sec.Title != "" {
			sb.WriteString(sec.Title)
			sb.WriteString("\n")
		}
		sb.WriteString(sec.Body)
	}
	return sb.String()
}

func (r Report) Empty() bool { return len(r.Sections) == 0 }
