package doctree

import (
	"regexp"
	"strconv"
	"strings"
)

// SectionSep joins heading titles in a section path.
const SectionSep = " > "

var levelRe = regexp.MustCompile(`\d+`)

// HeadingLevel returns the heading level encoded in a paragraph style name,
// or 0 if the style is not a heading. Any style containing "heading"
// (case-insensitive) is a heading; its level is the first integer in the
// name, defaulting to 1.
func HeadingLevel(style string) int {
	if !strings.Contains(strings.ToLower(style), "heading") {
		return 0
	}
	m := levelRe.FindString(style)
	if m == "" {
		return 1
	}
	n, err := strconv.Atoi(m)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// BuildNodes converts paragraphs into nodes. Headings are always kept;
// body paragraphs are dropped when their trimmed text is empty.
func BuildNodes(paras []Paragraph) []Node {
	nodes := make([]Node, 0, len(paras))
	for _, p := range paras {
		text := strings.TrimSpace(p.Text)
		if level := HeadingLevel(p.Style); level > 0 {
			nodes = append(nodes, Node{Level: level, Text: text})
			continue
		}
		if text != "" {
			nodes = append(nodes, Node{Text: text})
		}
	}
	return nodes
}

// AssignSectionPaths annotates each node, in place, with the path of
// headings open at that point. A heading of level L closes every open
// heading of level >= L before opening itself.
func AssignSectionPaths(nodes []Node) []Node {
	var stack []string
	for i := range nodes {
		if level := nodes[i].Level; level > 0 {
			if len(stack) > level-1 {
				stack = stack[:level-1]
			}
			stack = append(stack, nodes[i].Text)
		}
		nodes[i].SectionPath = strings.Join(stack, SectionSep)
	}
	return nodes
}

// Extract runs BuildNodes and AssignSectionPaths.
func Extract(paras []Paragraph) []Node {
	return AssignSectionPaths(BuildNodes(paras))
}
