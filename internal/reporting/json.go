package reporting

import "encoding/json"

// RenderJSON renders report as indented JSON string.
func RenderJSON(r *Report) (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
