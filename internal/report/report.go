package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wonny/marketpulse/internal/domain/analysis"
	"github.com/wonny/marketpulse/internal/domain/effect"
	effectsvc "github.com/wonny/marketpulse/internal/service/effect"
)

// Format selects the table renderer
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatMarkdown:
		return FormatMarkdown, nil
	case FormatText, "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown report format %q (markdown, text)", s)
	}
}

// AlertStats 알림 집계
type AlertStats struct {
	Positive int
	Negative int
	Neutral  int
	Total    int
	Tickers  int
}

// CountAlerts tallies effects per label
func CountAlerts(groups []effectsvc.TickerAlerts) AlertStats {
	var s AlertStats
	s.Tickers = len(groups)
	for _, g := range groups {
		for _, e := range g.Effects {
			switch e.Label {
			case effect.LabelPositive:
				s.Positive++
			case effect.LabelNegative:
				s.Negative++
			default:
				s.Neutral++
			}
		}
	}
	s.Total = s.Positive + s.Negative + s.Neutral
	return s
}

// Writer renders reports to an io.Writer
type Writer struct {
	out    io.Writer
	format Format
}

// NewWriter creates a report writer
func NewWriter(out io.Writer, format Format) *Writer {
	return &Writer{out: out, format: format}
}

// Alerts writes one table per ticker of high-score effects
func (w *Writer) Alerts(groups []effectsvc.TickerAlerts, minScore float64) error {
	stats := CountAlerts(groups)
	w.heading(fmt.Sprintf("Sentiment alerts (score >= %.2f)", minScore))

	if len(groups) == 0 {
		w.printf("No high sentiment alerts found (score >= %.2f).\n", minScore)
		return nil
	}

	w.printf("%d tickers, %d events: %d positive, %d negative, %d neutral\n\n",
		stats.Tickers, stats.Total, stats.Positive, stats.Negative, stats.Neutral)

	for _, g := range groups {
		w.subheading(g.Ticker)

		rows := make([][]string, 0, len(g.Effects))
		for _, e := range g.Effects {
			rows = append(rows, []string{
				e.EventDate.Format(effect.DateLayout),
				fmt.Sprintf("%.2f", e.Score),
				string(e.Label),
				fmt.Sprintf("%.2f", e.PriceBefore),
				fmt.Sprintf("%.2f", e.PriceAfter),
				fmt.Sprintf("%+.2f%%", e.PriceChangePct),
				provenance(e),
			})
		}

		if err := w.table([]string{"Date", "Score", "Label", "Before", "After", "Change", "Source"}, rows); err != nil {
			return fmt.Errorf("render %s alerts: %w", g.Ticker, err)
		}
	}
	return nil
}

// Analysis writes the statistical appendix
func (w *Writer) Analysis(s analysis.Summary) error {
	w.heading("Statistical appendix")

	dateRange := "n/a"
	if s.DateRangeStart != nil && s.DateRangeEnd != nil {
		dateRange = s.DateRangeStart.Format(effect.DateLayout) + " .. " + s.DateRangeEnd.Format(effect.DateLayout)
	}
	overview := [][]string{
		{"Dataset size", fmt.Sprintf("%d", s.DatasetSize)},
		{"Date range", dateRange},
		{"Pearson r", optional(s.Overall.Coefficient, "%.4f")},
		{"p-value", optional(s.Overall.PValue, "%.4f")},
	}
	if in := s.Interpretation; in != nil {
		overview = append(overview,
			[]string{"Strength", string(in.Strength) + " " + string(in.Direction)},
			[]string{"Significant", fmt.Sprintf("%t", in.Significant)},
			[]string{"Conclusion", string(in.Conclusion)},
			[]string{"Recommendation", in.Recommendation},
		)
	}
	if err := w.table([]string{"Metric", "Value"}, overview); err != nil {
		return fmt.Errorf("render overview: %w", err)
	}

	if len(s.Distribution) > 0 {
		w.subheading("Price change by label")
		rows := make([][]string, 0, len(s.Distribution))
		for _, d := range s.Distribution {
			rows = append(rows, []string{
				d.Label,
				fmt.Sprintf("%d", d.Count),
				fmt.Sprintf("%+.2f", d.Mean),
				fmt.Sprintf("%+.2f", d.Median),
				optional(d.StdDev, "%.2f"),
				fmt.Sprintf("%+.2f", d.Min),
				fmt.Sprintf("%+.2f", d.Max),
			})
		}
		if err := w.table([]string{"Label", "Count", "Mean %", "Median %", "Std", "Min %", "Max %"}, rows); err != nil {
			return fmt.Errorf("render distribution: %w", err)
		}
	}

	w.subheading("Lag correlation")
	if s.Lag.Insufficient {
		w.printf("%s\n", s.Lag.Reason)
		return nil
	}
	rows := make([][]string, 0, len(s.Lag.Results))
	for _, l := range s.Lag.Results {
		rows = append(rows, []string{
			fmt.Sprintf("%d", l.Lag),
			fmt.Sprintf("%d", l.N),
			optional(l.Coefficient, "%.4f"),
			optional(l.PValue, "%.4f"),
		})
	}
	if err := w.table([]string{"Lag", "Pairs", "r", "p-value"}, rows); err != nil {
		return fmt.Errorf("render lag: %w", err)
	}
	return nil
}

// RunSummary writes the resolution counters of one run
func (w *Writer) RunSummary(s effect.RunSummary) error {
	w.heading("Run " + s.RunID.String())
	rows := [][]string{
		{"Events", fmt.Sprintf("%d", s.Total)},
		{"Resolved", fmt.Sprintf("%d", s.Resolved)},
		{"Dropped", fmt.Sprintf("%d", s.Dropped)},
		{"Corrected", fmt.Sprintf("%d", s.Corrected)},
		{"Synthetic", fmt.Sprintf("%d", s.Synthetic)},
		{"Live quoted", fmt.Sprintf("%d", s.LiveQuoted)},
		{"Elapsed", s.FinishedAt.Sub(s.StartedAt).String()},
	}
	return w.table([]string{"Metric", "Value"}, rows)
}

func (w *Writer) table(headers []string, rows [][]string) error {
	opts := []tablewriter.Option{
		tablewriter.WithHeaderAutoFormat(tw.Off),
	}
	if w.format == FormatMarkdown {
		alignment := make([]tw.Align, len(headers))
		for i := range alignment {
			alignment[i] = tw.AlignNone
		}
		opts = append(opts,
			tablewriter.WithRenderer(renderer.NewMarkdown()),
			tablewriter.WithAlignment(alignment),
		)
	}

	table := tablewriter.NewTable(w.out, opts...)
	table.Header(headers)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	w.printf("\n")
	return nil
}

func (w *Writer) heading(s string) {
	if w.format == FormatMarkdown {
		w.printf("## %s\n\n", s)
		return
	}
	w.printf("%s\n%s\n\n", s, strings.Repeat("=", len(s)))
}

func (w *Writer) subheading(s string) {
	if w.format == FormatMarkdown {
		w.printf("### %s\n\n", s)
		return
	}
	w.printf("%s\n", s)
}

func (w *Writer) printf(format string, args ...interface{}) {
	fmt.Fprintf(w.out, format, args...)
}

func optional(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}

func provenance(e effect.SentimentPriceEffect) string {
	s := string(e.BeforeSource) + " → " + string(e.AfterSource)
	if e.Synthetic {
		s += " (synthetic)"
	} else if e.Corrected {
		s += " (corrected)"
	}
	return s
}
