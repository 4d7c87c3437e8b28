package jira

import "strings"

// Atlassian Document Format helpers. Jira Cloud v3 endpoints take and
// return rich-text fields as ADF documents; callers here only need plain
// text, so the conversion is line oriented.

// ADFDoc is the subset of an ADF document this service produces and reads.
type ADFDoc struct {
	Type    string    `json:"type"`
	Version int       `json:"version"`
	Content []ADFNode `json:"content,omitempty"`
}

type ADFNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text,omitempty"`
	Content []ADFNode `json:"content,omitempty"`
}

// TextToADF wraps plain text into an ADF document, one paragraph per line.
// Blank lines become empty paragraphs so spacing survives the round trip.
func TextToADF(text string) ADFDoc {
	doc := ADFDoc{Type: "doc", Version: 1}
	if text == "" {
		return doc
	}
	for _, line := range strings.Split(text, "\n") {
		p := ADFNode{Type: "paragraph"}
		if line != "" {
			p.Content = []ADFNode{{Type: "text", Text: line}}
		}
		doc.Content = append(doc.Content, p)
	}
	return doc
}

// ADFToText flattens an ADF document to plain text. Block nodes become
// newline-separated lines; inline formatting is dropped.
func ADFToText(doc any) string {
	m, ok := doc.(map[string]any)
	if !ok {
		if s, ok := doc.(string); ok {
			return s
		}
		return ""
	}

	var lines []string
	var walk func(node map[string]any) string
	walk = func(node map[string]any) string {
		if t, _ := node["type"].(string); t == "text" {
			s, _ := node["text"].(string)
			return s
		}
		var b strings.Builder
		if content, ok := node["content"].([]any); ok {
			for _, child := range content {
				if cm, ok := child.(map[string]any); ok {
					b.WriteString(walk(cm))
				}
			}
		}
		return b.String()
	}

	if content, ok := m["content"].([]any); ok {
		for _, block := range content {
			if bm, ok := block.(map[string]any); ok {
				lines = append(lines, walk(bm))
			}
		}
	}
	return strings.Join(lines, "\n")
}
