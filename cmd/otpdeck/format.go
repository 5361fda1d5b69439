package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"otpdeck/internal/agent"
	"otpdeck/internal/otp"
	"otpdeck/internal/scheduler"
	"otpdeck/internal/secrets"
)

// parseIndex converts a 1-based record number from the command line into a store index
func parseIndex(arg string, n int) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", arg)
	}
	if i < 1 || i > n {
		return 0, fmt.Errorf("%w: %d (have %d records)", secrets.ErrIndexOutOfRange, i, n)
	}
	return i - 1, nil
}

// parseAt reads an optional "--at <unix>" flag, defaulting to now
func parseAt(args []string, now time.Time) (time.Time, error) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		var value string
		switch {
		case arg == "--at":
			if i+1 >= len(args) {
				return time.Time{}, errors.New("--at requires a unix timestamp")
			}
			value = args[i+1]
			i++
		case strings.HasPrefix(arg, "--at="):
			value = strings.TrimPrefix(arg, "--at=")
		default:
			return time.Time{}, fmt.Errorf("unknown argument %q", arg)
		}

		sec, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid unix timestamp %q", value)
		}
		now = time.Unix(sec, 0)
	}
	return now, nil
}

// formatCode groups a 6-digit code as "123 456"
func formatCode(code string) string {
	if len(code) != otp.Digits {
		return code
	}
	return code[:3] + " " + code[3:]
}

// codeCell renders a code, or the error in its place
func codeCell(e scheduler.Entry) string {
	switch {
	case e.Err == nil:
		return formatCode(e.Code)
	case errors.Is(e.Err, otp.ErrEmptyKey):
		return "⚠ EmptyKey"
	case errors.Is(e.Err, otp.ErrCryptoUnavailable):
		return "⚠ CryptoUnavailable"
	case errors.Is(e.Err, otp.ErrInvalidSecretFormat):
		return "⚠ InvalidSecretFormat"
	case errors.Is(e.Err, otp.ErrInvalidTime):
		return "⚠ InvalidTime"
	default:
		return "⚠ Error"
	}
}

func labelWidth(labels []string) int {
	width := len("Label")
	for _, l := range labels {
		if len(l) > width {
			width = len(l)
		}
	}
	return width
}

// writeList prints the records with their 1-based numbers
func writeList(w io.Writer, records []secrets.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No secrets stored. Add one with: otpdeck add <label> <secret>")
		return
	}
	for i, rec := range records {
		fmt.Fprintf(w, "  %2d  %s\n", i+1, rec.Label)
	}
}

// writeCodes prints one code table for a snapshot
func writeCodes(w io.Writer, snap scheduler.Snapshot, countdown int) {
	if len(snap.Entries) == 0 {
		fmt.Fprintln(w, "No secrets stored.")
		return
	}

	labels := make([]string, len(snap.Entries))
	for i, e := range snap.Entries {
		labels[i] = e.Label
	}
	width := labelWidth(labels)

	fmt.Fprintf(w, "  #   %-*s  Code\n", width, "Label")
	for _, e := range snap.Entries {
		fmt.Fprintf(w, "  %2d  %-*s  %s\n", e.Index+1, width, e.Label, codeCell(e))
	}
	if snap.Computed {
		fmt.Fprintf(w, "\nPeriod %d, next refresh in %ds\n", snap.Period, countdown)
	}
}

// snapshotOf turns a published frame back into the table form
func snapshotOf(f agent.Frame) scheduler.Snapshot {
	return scheduler.Snapshot{Period: f.Period, Computed: true, Entries: f.Entries}
}
