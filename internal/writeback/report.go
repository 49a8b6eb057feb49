package writeback

import (
	"fmt"
	"html"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

const reportCSS = `    <style>
        :root {
            --background: 0 0% 100%;
            --foreground: 222.2 84% 4.9%;
            --card: 0 0% 100%;
            --muted: 210 40% 96%;
            --border: 214.3 31.8% 91.4%;
            --primary: 222.2 47.4% 11.2%;
            --destructive: 0 84.2% 60.2%;
            --radius: 0.5rem;
        }
        * { box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif;
            line-height: 1.5;
            color: hsl(var(--foreground));
            background-color: hsl(var(--background));
            margin: 0;
            padding: 20px;
        }
        .container { max-width: 960px; margin: 0 auto; }
        h1 { font-size: 1.75rem; font-weight: 700; margin-bottom: 1.5rem; }
        .badges { display: flex; gap: 0.75rem; margin-bottom: 1.5rem; flex-wrap: wrap; }
        .badge {
            padding: 0.4rem 0.75rem;
            border-radius: var(--radius);
            font-size: 0.875rem;
            font-weight: 600;
            background: hsl(var(--muted));
        }
        .badge.ok { color: hsl(142 76% 30%); }
        .badge.fail { color: hsl(var(--destructive)); }
        table { width: 100%; border-collapse: collapse; border: 1px solid hsl(var(--border)); border-radius: var(--radius); overflow: hidden; }
        th, td { text-align: left; padding: 0.6rem 0.75rem; border-bottom: 1px solid hsl(var(--border)); font-size: 0.875rem; }
        th { background: hsl(var(--muted)); font-weight: 600; }
        .status-ok { color: hsl(142 76% 30%); font-weight: 600; }
        .status-fail { color: hsl(var(--destructive)); font-weight: 600; }
    </style>`

// WriteHTMLReport renders a save session's Summary as a standalone HTML
// file: badge counts up top, one row per file underneath, grounded on the
// teacher's reporting.go layout but generalized to write-back's
// succeeded/failed/skipped/cancelled taxonomy.
func WriteHTMLReport(path string, summary Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "<!doctype html><html><head><meta charset=\"utf-8\"><title>renamecore save report</title>%s</head><body>", reportCSS)
	fmt.Fprint(f, "<div class=\"container\">")
	fmt.Fprint(f, "<h1>renamecore save report</h1>")
	fmt.Fprint(f, "<div class=\"badges\">")
	fmt.Fprintf(f, "<span class=\"badge ok\">Succeeded: %s</span>", humanize.Comma(int64(summary.Succeeded)))
	fmt.Fprintf(f, "<span class=\"badge fail\">Failed: %s</span>", humanize.Comma(int64(summary.Failed)))
	fmt.Fprintf(f, "<span class=\"badge\">Skipped: %s</span>", humanize.Comma(int64(summary.Skipped)))
	fmt.Fprintf(f, "<span class=\"badge\">Cancelled: %s</span>", humanize.Comma(int64(summary.Cancelled)))
	fmt.Fprintf(f, "<span class=\"badge\">Elapsed: %s</span>", formatDuration(summary.Elapsed))
	fmt.Fprint(f, "</div>")

	fmt.Fprint(f, "<table><thead><tr><th>File</th><th>Fields</th><th>Status</th><th>Error</th></tr></thead><tbody>")
	for _, r := range summary.Results {
		class := "status-ok"
		if r.Status == StatusFailed {
			class = "status-fail"
		}
		errText := ""
		if r.Err != nil {
			errText = html.EscapeString(r.Err.Error())
		}
		fmt.Fprintf(f, "<tr><td>%s</td><td>%d</td><td class=\"%s\">%s</td><td>%s</td></tr>",
			html.EscapeString(string(r.Path)), r.Fields, class, string(r.Status), errText)
	}
	fmt.Fprint(f, "</tbody></table></div></body></html>")
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Millisecond * 10).String()
}
