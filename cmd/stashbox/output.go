package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sagarc03/stashbox"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTokens(w io.Writer, tokens []stashbox.AccessToken) error {
	if len(tokens) == 0 {
		_, _ = fmt.Fprintln(w, "No tokens found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TOKEN\tUSER\tREVOKED\tUSES\tCREATED")
	for _, tok := range tokens {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\n",
			tok.Value, tok.UserID, tok.Revoked, tok.UsageCount, tok.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func formatObjects(w io.Writer, objects []stashbox.ObjectSummary) error {
	if len(objects) == 0 {
		_, _ = fmt.Fprintln(w, "No objects found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tFILENAME\tTYPE\tSIZE\tVIEWS\tCREATED")
	for _, obj := range objects {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			obj.Path, obj.Filename, obj.MimeType, formatSize(obj.SizeBytes), obj.Views, obj.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// formatSize formats a byte size in human-readable form.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
