package render

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Header is optional page context printed above the results.
type Header struct {
	PageURL  string            `json:"page_url,omitempty"`
	Product  string            `json:"product,omitempty"`
	Price    *float64          `json:"price,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Write prints a snapshot in the requested format.
func Write(w io.Writer, format string, header *Header, snap Snapshot) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, header, snap)
	case FormatMarkdown:
		return writeMarkdown(w, header, snap)
	case FormatText, "":
		return writeText(w, header, snap)
	default:
		return fmt.Errorf("unknown output format: %s (available: text, markdown, json)", format)
	}
}

func writeText(w io.Writer, header *Header, snap Snapshot) error {
	var b strings.Builder
	if header != nil && len(header.Metadata) > 0 {
		for _, key := range sortedKeys(header.Metadata) {
			fmt.Fprintf(&b, "%s: %s\n", key, header.Metadata[key])
		}
		b.WriteString("\n")
	}

	if snap.Status != "" {
		b.WriteString(snap.Status + "\n")
	}
	for i, card := range snap.Cards {
		if i > 0 || snap.Status != "" {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, card.Title)
		for _, line := range card.Prices {
			fmt.Fprintf(&b, "   %s\n", line.Text)
		}
		fmt.Fprintf(&b, "   %s\n", card.URL)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeMarkdown(w io.Writer, header *Header, snap Snapshot) error {
	var b strings.Builder
	if header != nil {
		if header.Product != "" {
			fmt.Fprintf(&b, "# %s\n\n", header.Product)
		}
		for _, key := range sortedKeys(header.Metadata) {
			fmt.Fprintf(&b, "- **%s:** %s\n", key, header.Metadata[key])
		}
		if len(header.Metadata) > 0 {
			b.WriteString("\n")
		}
	}

	if snap.Status != "" {
		b.WriteString(snap.Status + "\n\n")
	}
	for i, card := range snap.Cards {
		fmt.Fprintf(&b, "## %d. [%s](%s)\n\n", i+1, escapeMarkdown(card.Title), card.URL)
		if card.Image != "" {
			fmt.Fprintf(&b, "![%s](%s)\n\n", escapeMarkdown(card.Title), card.Image)
		}
		for _, line := range card.Prices {
			text := line.Text
			if line.Kind == LineSavings {
				text = "**" + text + "**"
			}
			fmt.Fprintf(&b, "- %s\n", text)
		}
		if len(card.Prices) > 0 {
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, strings.TrimRight(b.String(), "\n")+"\n")
	return err
}

func writeJSON(w io.Writer, header *Header, snap Snapshot) error {
	out := struct {
		*Header
		Snapshot
	}{header, snap}
	if out.Cards == nil {
		out.Cards = []Card{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

var markdownEscaper = strings.NewReplacer("[", `\[`, "]", `\]`, "*", `\*`, "_", `\_`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
