package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"

	"github.com/yubzen/globetrip/internal/pipeline"
	"github.com/yubzen/globetrip/internal/planning"
	"github.com/yubzen/globetrip/internal/trip"
)

const defaultWidth = 100

var (
	agentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	domainStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func terminalWidth() int {
	if !term.IsTerminal(os.Stdout.Fd()) {
		return defaultWidth
	}
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

func wrapToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	wrapper := lipgloss.NewStyle().Width(width)

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			out = append(out, "")
			continue
		}
		for _, wrapped := range strings.Split(wrapper.Render(line), "\n") {
			out = append(out, strings.TrimRight(wrapped, " "))
		}
	}
	return strings.Join(out, "\n")
}

// wrapWithPrefix wraps content beside prefix, indenting continuation lines
// to the prefix's visible width.
func wrapWithPrefix(prefix, content string, width int) string {
	if width <= 0 {
		return prefix + content
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")

	prefixWidth := lipgloss.Width(prefix)
	if prefixWidth >= width {
		return wrapToWidth(prefix+content, width)
	}

	lines := strings.Split(wrapToWidth(content, width-prefixWidth), "\n")
	indent := strings.Repeat(" ", prefixWidth)
	for i := range lines {
		if i == 0 {
			lines[i] = prefix + lines[i]
			continue
		}
		lines[i] = indent + lines[i]
	}
	return strings.Join(lines, "\n")
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case string(planning.StatusSuccess), "done":
		return successStyle
	case string(planning.StatusSkipped), "skipped":
		return skippedStyle
	case string(planning.StatusError), "failed":
		return errorStyle
	default:
		return dimStyle
	}
}

func renderUpdate(u pipeline.StepUpdate) string {
	line := fmt.Sprintf("%-14s %-7s %s",
		domainStyle.Render(string(u.Domain)),
		u.Stage,
		statusStyle(u.Status).Render(u.Status))
	if msg := strings.TrimSpace(u.Msg); msg != "" {
		line += " " + dimStyle.Render(msg)
	}
	return line
}

func writeOutcomes(w io.Writer, outs []pipeline.Outcome) error {
	tw := tabwriter.NewWriter(w, 2, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tSTAGE\tSTATUS\tREASON\tCOUNT")
	for _, o := range outs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			o.Domain, o.Stage, o.Result.Status, dash(o.Result.Reason), outcomeCount(o.Result))
	}
	return tw.Flush()
}

func outcomeCount(r planning.Result) string {
	switch {
	case r.Created > 0:
		return strconv.Itoa(r.Created) + " created"
	case r.Results > 0:
		return strconv.Itoa(r.Results) + " results"
	case r.Updated > 0:
		return strconv.Itoa(r.Updated) + " updated"
	default:
		return "-"
	}
}

func writeCosts(w io.Writer, costs trip.CostSummary) error {
	currencies := make([]string, 0, len(costs.CurrencyTotals))
	for c := range costs.CurrencyTotals {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	tw := tabwriter.NewWriter(w, 2, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "CURRENCY\tFLIGHTS\tACCOMMODATION\tTOTAL")
	for _, c := range currencies {
		t := costs.CurrencyTotals[c]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c,
			priceRange(t.FlightsLow, t.FlightsHigh),
			priceRange(t.AccommodationLow, t.AccommodationHigh),
			priceRange(t.GrandTotalLow, t.GrandTotalHigh))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(currencies) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No priced flights or stays yet."))
	}
	for _, h := range costs.VisaFeeHints {
		fmt.Fprintf(w, "visa fee, traveler %d (%s): %s\n", h.TravelerIndex, dash(h.Nationality), h.Cost)
	}
	if costs.Budget.TotalBudget != nil {
		fmt.Fprintf(w, "budget: %s (%s)\n", money(*costs.Budget.TotalBudget), dash(costs.Budget.Mode))
	} else if costs.Budget.Mode != "" {
		fmt.Fprintf(w, "budget mode: %s\n", costs.Budget.Mode)
	}
	return nil
}

func priceRange(low, high *float64) string {
	switch {
	case low == nil && high == nil:
		return "-"
	case low == nil:
		return money(*high)
	case high == nil || *low == *high:
		return money(*low)
	default:
		return money(*low) + " - " + money(*high)
	}
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// plannerLine is the one-line picture of where intake stands.
func plannerLine(p trip.PlannerState) string {
	parts := []string{"status=" + string(p.Status)}
	if d := p.TripDetails.Destination; d != "" {
		parts = append(parts, "destination="+d)
	}
	if p.TripDetails.StartDate != "" || p.TripDetails.EndDate != "" {
		parts = append(parts, "dates="+dash(p.TripDetails.StartDate)+".."+dash(p.TripDetails.EndDate))
	}
	parts = append(parts, "travelers="+strconv.Itoa(len(p.Demographics.Travelers)))
	return strings.Join(parts, " ")
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
