package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/pocketbase/pocketbase/core"
)

func parseTrigger(t *testing.T, header string) map[string]json.RawMessage {
	t.Helper()
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(header), &parsed); err != nil {
		t.Fatalf("HX-Trigger is not valid JSON: %v (%q)", err, header)
	}
	return parsed
}

func TestSetToast(t *testing.T) {
	tests := []struct {
		name      string
		existing  string
		toastType string
		message   string
		keep      string // event that must survive the merge
	}{
		{"fresh header", "", "success", "Exported Quotation-WP-001.pdf", ""},
		{"merges", `{"someEvent":{"key":"value"}}`, "success", "Merged toast", "someEvent"},
		{"invalid existing", "notValidJSON", "error", "Overwritten", ""},
		{"special characters", "", "error", `<script>"x"</script>` + "\nline2", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e := &core.RequestEvent{}
			e.Response = rec
			if tt.existing != "" {
				rec.Header().Set("HX-Trigger", tt.existing)
			}

			setToast(e, tt.toastType, tt.message)

			parsed := parseTrigger(t, rec.Header().Get("HX-Trigger"))
			var toast map[string]string
			if err := json.Unmarshal(parsed["showToast"], &toast); err != nil {
				t.Fatalf("showToast is not valid JSON: %v", err)
			}
			if toast["type"] != tt.toastType || toast["message"] != tt.message {
				t.Errorf("toast = %v", toast)
			}
			if tt.keep != "" {
				if _, ok := parsed[tt.keep]; !ok {
					t.Errorf("%s was dropped by the merge", tt.keep)
				}
			}
		})
	}
}
