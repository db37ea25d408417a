// Package timeline interprets the XML payload stored with a timeline post.
// Parsing is best effort: anything unreadable yields ok=false, never an error.
package timeline

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

const rootElement = "timelineobject"

// videoType is the media type code used for video clips; every other code
// is treated as an image.
const videoType = "6"

// Media is one attachment. URL falls back to the thumbnail when the full
// resolution address is missing.
type Media struct {
	Type  string `json:"type"`
	URL   string `json:"url"`
	Thumb string `json:"thumb,omitempty"`
}

// Content is the readable part of a post.
type Content struct {
	Text       string  `json:"text"`
	Author     string  `json:"author,omitempty"`
	CreateTime string  `json:"create_time,omitempty"`
	Media      []Media `json:"media"`
}

// Parse extracts text and media from raw. Bytes before the root element and
// control characters other than tab, newline and carriage return are
// discarded first. Element names are matched case-insensitively.
func Parse(raw string) (Content, bool) {
	clean := stripControl(raw)
	start := strings.Index(strings.ToLower(clean), "<"+rootElement)
	if start < 0 {
		return Content{}, false
	}

	dec := xml.NewDecoder(strings.NewReader(clean[start:]))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var (
		c     = Content{Media: []Media{}}
		path  []string
		cur   *pendingMedia
		text  strings.Builder
		found bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Content{}, false
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			path = append(path, name)
			text.Reset()
			if name == rootElement && len(path) == 1 {
				found = true
			}
			if name == "media" && parent(path) == "medialist" {
				cur = &pendingMedia{}
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(path) == 0 {
				continue
			}
			name := path[len(path)-1]
			value := strings.TrimSpace(text.String())
			text.Reset()

			switch {
			case len(path) == 2 && name == "contentdesc":
				c.Text = value
			case len(path) == 2 && name == "username":
				c.Author = value
			case len(path) == 2 && name == "createtime":
				c.CreateTime = value
			case cur != nil && parent(path) == "media":
				cur.set(name, value)
			case cur != nil && name == "media":
				if m, ok := cur.finish(); ok {
					c.Media = append(c.Media, m)
				}
				cur = nil
			}

			path = path[:len(path)-1]
			if name == rootElement && len(path) == 0 {
				return c, found
			}
		}
	}
	return c, found
}

type pendingMedia struct {
	typ, url, thumb string
}

func (p *pendingMedia) set(field, value string) {
	switch field {
	case "type":
		p.typ = value
	case "url":
		p.url = value
	case "thumb":
		p.thumb = value
	}
}

func (p *pendingMedia) finish() (Media, bool) {
	src := p.url
	if src == "" {
		src = p.thumb
	}
	if src == "" {
		return Media{}, false
	}
	kind := "image"
	if p.typ == videoType {
		kind = "video"
	}
	return Media{Type: kind, URL: src, Thumb: p.thumb}, true
}

func parent(path []string) string {
	if len(path) < 2 {
		return ""
	}
	return path[len(path)-2]
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < ' ' && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
