package autodoc

import (
	"encoding/json"
)

// formatReportJSON formats the report as indented JSON.
func formatReportJSON(root *ReportNode) (string, error) {
	bytes, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
