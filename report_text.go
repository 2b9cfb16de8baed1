package autodoc

import (
	"fmt"
	"strings"
)

// formatReportText formats the report as an ASCII tree.
func formatReportText(root *ReportNode) string {
	var sb strings.Builder
	sb.WriteString("Template selection report\n")
	formatNodeAsText(root, "", true, &sb)
	return sb.String()
}

// formatNodeAsText recursively formats a node and its children as text.
func formatNodeAsText(node *ReportNode, prefix string, isLast bool, sb *strings.Builder) {
	connector := "├─ "
	if isLast {
		connector = "└─ "
	}
	if prefix == "" {
		connector = ""
	}

	fmt.Fprintf(sb, "%s%s%s\n", prefix, connector, formatNodeInfo(node))

	childPrefix := prefix
	if prefix == "" {
		childPrefix = "  "
	} else if isLast {
		childPrefix += "   "
	} else {
		childPrefix += "│  "
	}

	for i, child := range node.Children {
		formatNodeAsText(child, childPrefix, i == len(node.Children)-1, sb)
	}
}

// formatNodeInfo formats information for a single node.
func formatNodeInfo(node *ReportNode) string {
	parts := []string{string(node.Type)}
	if node.Label != "" {
		parts = append(parts, fmt.Sprintf("%q", node.Label))
	}

	var details []string
	if node.Score != nil {
		details = append(details, fmt.Sprintf("score=%.2f", *node.Score))
	}
	if node.Confidence != nil {
		details = append(details, fmt.Sprintf("confidence=%.2f", *node.Confidence))
	}
	if node.Coverage != nil {
		details = append(details, fmt.Sprintf("coverage=%.2f", *node.Coverage))
	}
	if node.Strategy != "" {
		details = append(details, "strategy="+string(node.Strategy))
	}
	if node.Source != "" {
		details = append(details, "source="+node.Source)
	}
	if len(details) > 0 {
		parts = append(parts, fmt.Sprintf("(%s)", strings.Join(details, ", ")))
	}
	if node.Reasoning != "" {
		parts = append(parts, "- "+node.Reasoning)
	}
	return strings.Join(parts, " ")
}
