// Package panel renders the supervisor status for a terminal operator.
package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"

	"live-chat-supervisor/pkg/models"
)

// Client fetches status snapshots from a running supervisor.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Status(ctx context.Context) (models.StatusSnapshot, error) {
	var snapshot models.StatusSnapshot

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return snapshot, fmt.Errorf("building status request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return snapshot, fmt.Errorf("fetching status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snapshot, fmt.Errorf("fetching status: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return snapshot, fmt.Errorf("decoding status: %w", err)
	}
	return snapshot, nil
}

// Render writes one frame of the panel.
func Render(w io.Writer, snapshot models.StatusSnapshot) {
	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)

	bold.Fprintf(w, "Live chat supervisor  ")
	gray.Fprintf(w, "%s\n", snapshot.EvaluatedAt.Format("15:04:05"))

	fmt.Fprintf(w, "  Active:   %d\n", snapshot.ActiveCount)
	counter(w, "  Delayed:  ", snapshot.DelayedCount, yellow)
	counter(w, "  Critical: ", snapshot.CriticalCount, red)

	switch snapshot.LoadLevel {
	case models.LoadCritical:
		red.Fprintln(w, "  CRITICAL LOAD")
	case models.LoadHigh:
		yellow.Fprintln(w, "  HIGH LOAD")
	default:
		color.New(color.FgGreen).Fprintln(w, "  Load normal")
	}

	for _, cs := range snapshot.Conversations {
		if !cs.IsActive || (!cs.IsDelayed && !cs.HasKeywordMatch) {
			continue
		}

		line := fmt.Sprintf("  %-20s waiting %4ds", cs.DisplayName, cs.SecondsWaiting)
		switch {
		case cs.HasKeywordMatch && cs.IsDelayed:
			red.Fprintln(w, line+"  [critical, delayed]")
		case cs.HasKeywordMatch:
			red.Fprintln(w, line+"  [critical]")
		default:
			yellow.Fprintln(w, line+"  [delayed]")
		}
	}
}

func counter(w io.Writer, label string, n int, highlight *color.Color) {
	fmt.Fprint(w, label)
	if n > 0 {
		highlight.Fprintf(w, "%d\n", n)
		return
	}
	fmt.Fprintf(w, "%d\n", n)
}

// AlertLine formats an alert received from the stream.
func AlertLine(event models.AlertEvent) string {
	return color.New(color.FgRed, color.Bold).Sprintf("ALERT %s: %q (%s)",
		event.DisplayName, event.Text, strings.Join(event.MatchedKeywords, ", "))
}
