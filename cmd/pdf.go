package cmd

import (
	"fmt"
	"strings"
)

// guardPDF denies direct PDF reads and points at the extraction command.
func (h *Hooks) guardPDF(ev HookEvent) Result {
	if !ev.IsRead() {
		return Result{}
	}
	path := ev.ToolInput.FilePath
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return Result{}
	}
	return Result{Deny: true, StopReason: fmt.Sprintf(
		"BLOCKED: Direct PDF read not allowed. Use extraction script instead:\n\n"+
			"  %s %q\n\n"+
			"Then read the extracted .txt file.",
		h.Config.PDFExtractCommand, path)}
}
