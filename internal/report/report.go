// Package report renders extraction results for people and for other tools.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/joestump/client-radar/internal/extract"
	"github.com/joestump/client-radar/internal/timeline"
)

// Format selects the output encoding.
type Format string

const (
	JSON     Format = "json"
	YAML     Format = "yaml"
	Markdown Format = "markdown"
	HTML     Format = "html"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case JSON, YAML, Markdown, HTML:
		return f, nil
	case "md":
		return Markdown, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, yaml, markdown or html)", s)
	}
}

// Post is a PostRecord with its parsed content attached when parsing was
// requested and succeeded.
type Post struct {
	extract.PostRecord `yaml:",inline"`
	Parsed             *timeline.Content `json:"parsed,omitempty" yaml:"parsed,omitempty"`
}

// Renderer writes results in one Format.
type Renderer struct {
	Format Format
	// Parse interprets post payloads as timeline XML.
	Parse bool
	// Excerpt caps the raw content shown per post in markdown and html.
	Excerpt int
}

// Posts writes a post listing.
func (r Renderer) Posts(w io.Writer, posts []extract.PostRecord) error {
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		item := Post{PostRecord: p}
		if r.Parse {
			if c, ok := timeline.Parse(p.RawContent); ok {
				item.Parsed = &c
			}
		}
		out = append(out, item)
	}

	switch r.Format {
	case Markdown, HTML:
		var md strings.Builder
		fmt.Fprintf(&md, "# Timeline posts\n\n%d posts.\n\n", len(out))
		md.WriteString("| ID | Time | Content | Media |\n|---|---|---|---|\n")
		for _, p := range out {
			text, media := r.excerpt(p.RawContent), "-"
			if p.Parsed != nil {
				text = cell(p.Parsed.Text)
				media = fmt.Sprint(len(p.Parsed.Media))
			}
			fmt.Fprintf(&md, "| %s | %s | %s | %s |\n", cell(p.ID), formatTime(p.Timestamp), text, media)
		}
		return r.markdown(w, "Timeline posts", md.String())
	default:
		return r.data(w, out)
	}
}

// Contacts writes an address-book listing.
func (r Renderer) Contacts(w io.Writer, contacts []extract.ContactRecord) error {
	switch r.Format {
	case Markdown, HTML:
		var md strings.Builder
		fmt.Fprintf(&md, "# Contacts\n\n%d contacts.\n\n", len(contacts))
		md.WriteString("| Username | Remark | Nickname |\n|---|---|---|\n")
		for _, c := range contacts {
			fmt.Fprintf(&md, "| %s | %s | %s |\n", cell(c.Identifier), cell(c.DisplayAlias), cell(c.DisplayName))
		}
		return r.markdown(w, "Contacts", md.String())
	default:
		if contacts == nil {
			contacts = []extract.ContactRecord{}
		}
		return r.data(w, contacts)
	}
}

// Inspection writes a catalog report.
func (r Renderer) Inspection(w io.Writer, in *extract.Inspection) error {
	switch r.Format {
	case Markdown, HTML:
		var md strings.Builder
		fmt.Fprintf(&md, "# Inspection of `%s`\n\n", in.Path)
		if in.Diagnostic != nil {
			fmt.Fprintf(&md, "**%s**: %s\n\n", in.Diagnostic.Stage, in.Diagnostic.Error())
		} else {
			fmt.Fprintf(&md, "Timeline table `%s` (%s).\n\n", in.Table, in.Rule)
			for _, role := range []string{"id", "time", "content"} {
				ri, ok := in.Roles[role]
				if !ok {
					continue
				}
				col := ri.Column
				if col == "" {
					col = "none"
				}
				fmt.Fprintf(&md, "- %s: `%s` (%s)\n", role, col, ri.Kind)
			}
			md.WriteString("\n")
		}
		md.WriteString("| Table | Rows | Columns |\n|---|---|---|\n")
		for _, t := range in.Tables {
			fmt.Fprintf(&md, "| %s | %d | %s |\n", cell(t.Name), t.Rows, cell(strings.Join(t.Columns, ", ")))
		}
		return r.markdown(w, "Inspection", md.String())
	default:
		return r.data(w, in)
	}
}

// Diagnostic writes a resolution failure with the schema state it carries.
func (r Renderer) Diagnostic(w io.Writer, d *extract.Diagnostic) error {
	switch r.Format {
	case Markdown, HTML:
		var md strings.Builder
		fmt.Fprintf(&md, "# Extraction failed: %s\n\n%s\n", d.Stage, d.Error())
		return r.markdown(w, "Extraction failed", md.String())
	default:
		return r.data(w, d)
	}
}

func (r Renderer) data(w io.Writer, v any) error {
	if r.Format == YAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

var page = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
{{.Body}}</body>
</html>
`))

func (r Renderer) markdown(w io.Writer, title, md string) error {
	if r.Format != HTML {
		_, err := io.WriteString(w, md)
		return err
	}
	gm := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := gm.Convert([]byte(md), &buf); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	return page.Execute(w, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(buf.String())}) //nolint:gosec
}

func (r Renderer) excerpt(s string) string {
	n := r.Excerpt
	if n <= 0 {
		n = 80
	}
	s = cell(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}

// cell makes s safe inside a markdown table cell.
func cell(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		if r < ' ' {
			return -1
		}
		return r
	}, s)
	return strings.ReplaceAll(s, "|", `\|`)
}

func formatTime(ts uint32) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}
