package extract

import (
	"strings"
	"testing"
)

func TestVisibleText_KeepsRowsAndSkipsScripts(t *testing.T) {
	page := `<html><head><title>Claims</title><style>td{}</style></head><body>
<script>var secret = "hidden";</script>
<h1>Claim History</h1>
<table>
<tr><td>01/10/2026</td><td>Office visit</td><td>$200.00</td></tr>
<tr><td>01/12/2026</td><td>Lab draw</td><td>$45.00</td></tr>
</table>
</body></html>`

	text, err := VisibleText(page)
	if err != nil {
		t.Fatalf("VisibleText failed: %v", err)
	}

	if strings.Contains(text, "secret") || strings.Contains(text, "td{}") || strings.Contains(text, "Claims") {
		t.Errorf("expected script, style and head to be skipped: %q", text)
	}
	if !strings.Contains(text, "01/10/2026  Office visit  $200.00") {
		t.Errorf("expected first row on one line: %q", text)
	}

	items := HeuristicLineItems(text, nil)
	if len(items) != 2 {
		t.Errorf("expected 2 rows to parse as line items, got %d", len(items))
	}
}

func TestIsHTML(t *testing.T) {
	if !IsHTML("export.HTML") || !IsHTML("a.htm") || IsHTML("bill.txt") {
		t.Error("unexpected IsHTML result")
	}
}
