// package formatter renders scan results as plain text, CSV, Markdown or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/shared"
)

// Format is an output encoding for a [Report].
type Format string

const (
	Text     Format = "text"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	JSON     Format = "json"
)

// ParseFormat matches name case-insensitively; "md" is accepted for Markdown.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt":
		return Text, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (text, csv, markdown, json)", shared.ErrInvalidInput, name)
	}
}

// Report is the result of one scan.
type Report struct {
	Identity  string                `json:"identity"`
	ScannedAt time.Time             `json:"scanned_at"`
	Items     []models.ProgressItem `json:"items"`
}

// TotalRemaining sums the remaining drops across items.
func (r Report) TotalRemaining() int {
	total := 0
	for _, item := range r.Items {
		total += item.Remaining
	}
	return total
}

// Render encodes r in format f.
func Render(f Format, r Report) ([]byte, error) {
	switch f {
	case Text:
		return ToText(r), nil
	case CSV:
		return ToCSV(r)
	case Markdown:
		return ToMarkdown(r), nil
	case JSON:
		return ToJSON(r)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, f)
	}
}

// Write renders r to w.
func Write(w io.Writer, f Format, r Report) error {
	data, err := Render(f, r)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s output: %w", f, err)
	}
	return nil
}

// WriteFile renders r to path.
func WriteFile(path string, f Format, r Report) error {
	data, err := Render(f, r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s file: %w", f, err)
	}
	return nil
}

// ToCSV renders columns ID, Title, Remaining.
func ToCSV(r Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Title", "Remaining"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range r.Items {
		record := []string{strconv.Itoa(item.ID), item.Title, strconv.Itoa(item.Remaining)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ToMarkdown renders a heading, a summary and an item table.
func ToMarkdown(r Report) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Drops remaining for %s\n\n", r.Identity)
	if !r.ScannedAt.IsZero() {
		fmt.Fprintf(&buf, "**Scanned**: %s\n", r.ScannedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&buf, "**Items**: %d\n", len(r.Items))
	fmt.Fprintf(&buf, "**Drops**: %d\n\n", r.TotalRemaining())

	buf.WriteString("| # | ID | Title | Remaining |\n")
	buf.WriteString("|---|----|-------|-----------|\n")
	for i, item := range r.Items {
		title := strings.ReplaceAll(item.Title, "|", `\|`)
		fmt.Fprintf(&buf, "| %d | %d | %s | %d |\n", i+1, item.ID, title, item.Remaining)
	}

	return buf.Bytes()
}

// ToText renders one numbered line per item.
func ToText(r Report) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Account: %s\n", r.Identity)
	fmt.Fprintf(&buf, "Items: %d (%d drops)\n\n", len(r.Items), r.TotalRemaining())
	for i, item := range r.Items {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, item)
	}

	return buf.Bytes()
}

// ToJSON renders the report as indented JSON.
func ToJSON(r Report) ([]byte, error) {
	if r.Items == nil {
		r.Items = []models.ProgressItem{}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}
