package journal

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/rustyeddy/portsim/stats"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block. Structured
// facts go in a PROPERTIES drawer; the Thesis/Execution/Review headings are
// left for notes.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("** Trade: %s %s (%s)", t.Instrument, t.Direction, shortID(t.TradeID))
	open := t.OpenTime.UTC().Format(time.RFC3339)
	close := t.CloseTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":RUN_ID: %s\n", t.RunID)
	fmt.Fprintf(&b, ":INSTRUMENT: %s\n", t.Instrument)
	fmt.Fprintf(&b, ":DIRECTION: %s\n", t.Direction)
	fmt.Fprintf(&b, ":SHARES: %d\n", t.Shares)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.4f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.4f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", open)
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", close)
	fmt.Fprintf(&b, ":REALIZED_PL: %s\n", money(t.RealizedPL))
	fmt.Fprintf(&b, ":RETURN_PCT: %.2f\n", t.ReturnPct*100)
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

// shortID keeps the random tail of a ULID; the leading characters encode
// the timestamp and repeat across a run.
func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}

var runOrgFuncs = template.FuncMap{
	"money": money,
	"pct": func(v stats.Value) string {
		x, ok := v.Float()
		if !ok {
			return "n/a"
		}
		s := fmt.Sprintf("%.2f%%", x*100)
		if v.IsApprox() {
			s = "~" + s
		}
		return s
	},
	"metric": func(v stats.Value) string {
		if !v.IsDefined() {
			return "n/a"
		}
		return v.String()
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "(none)"
		}
		return t.Format("2006-01-02")
	},
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"join":  strings.Join,
	"trade": FormatTradeOrg,
}

var runOrg = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

type runView struct {
	RunRecord
	NetPL  float64
	Trades []TradeRecord
}

// FormatRunOrg renders a run summary followed by its trades.
func FormatRunOrg(r RunRecord, trades []TradeRecord) (string, error) {
	var buf bytes.Buffer
	if err := runOrg.Execute(&buf, runView{RunRecord: r, NetPL: r.NetPL(), Trades: trades}); err != nil {
		return "", fmt.Errorf("render run %s: %w", r.RunID, err)
	}
	return buf.String(), nil
}

// WriteRunOrg renders the run report to path.
func WriteRunOrg(path string, r RunRecord, trades []TradeRecord) error {
	s, err := FormatRunOrg(r, trades)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0o644)
}

const RunOrgTemplate = `* RUN: {{if .Name}}{{.Name}}{{else}}(unnamed){{end}} {{join .Instruments ", "}}
:PROPERTIES:
:RUN_ID:       {{.RunID}}
:INSTRUMENTS:  {{join .Instruments ","}}
:START_DATE:   {{date .Start}}
:END_DATE:     {{date .End}}
:START_CASH:   {{money .InitialCash}}
:FINAL_VALUE:  {{money .FinalValue}}
:NET_PL:       {{money .NetPL}}
:TRADES:       {{.RunRecord.Trades}}
:WINS:         {{.Wins}}
:LOSSES:       {{.Losses}}
:CREATED:      [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Risk Configuration
{{- if .Config}}
#+begin_src json
{{printf "%s" .Config}}
#+end_src
{{- else}}
(defaults)
{{- end}}

** Performance Summary
| Metric        | Value |
|---------------+-------|
| Total Return  | {{pct .TotalReturn}} |
| CAGR          | {{pct .CAGR}} |
| Sharpe        | {{metric .Sharpe}} |
| Sortino       | {{metric .Sortino}} |
| Max Drawdown  | {{pct .MaxDrawdown}} |
| Calmar        | {{metric .Calmar}} |
| Profit Factor | {{metric .ProfitFactor}} |
| Win Rate      | {{pct .WinRate}} |

{{- if .Notes}}

** Observations
{{- range .Notes}}
- {{.}}
{{- end}}
{{- end}}

{{- if .Trades}}

** Trades
{{range .Trades}}
{{trade .}}
{{- end}}
{{- end}}
`
