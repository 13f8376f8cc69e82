package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/whispin/modloader/internal/orchestrator"
)

// printSummary renders one row per attempted module with the session status as the caption
func printSummary(w io.Writer, rep *orchestrator.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Module", "Result", "Handle/Error"})

	for i, out := range rep.Outcomes {
		detail := fmt.Sprintf("0x%x", out.ModuleHandle)
		if !out.OK() {
			detail = fmt.Sprintf("%v", out.Err)
		}
		t.AppendRow(table.Row{i + 1, out.Module, out.Result.String(), detail})
	}

	t.SetCaption("%s", statusLine(rep))
	t.Render()
}

func statusLine(rep *orchestrator.Report) string {
	line := fmt.Sprintf("session %s: %s", rep.Session, rep.Status)
	if rep.PID != 0 {
		line += fmt.Sprintf(", pid %d", rep.PID)
	}
	if n := len(rep.Failed()); n > 0 {
		line += fmt.Sprintf(", %d of %d module(s) failed", n, len(rep.Outcomes))
	}
	if rep.Err != nil {
		line += fmt.Sprintf(": %v", rep.Err)
	}
	return line
}
