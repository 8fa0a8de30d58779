// Package stockwatch defines domain types and interfaces for the stock tracker.
// This package has no project imports -- it is the dependency root.
package stockwatch

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// --- Drop results ---

// DropResult is produced by a check that found new stock. It is immutable:
// fields are unexported and Links returns a copy.
type DropResult struct {
	date  time.Time
	links []string
	info  string
}

// NewDropResult stores date, links and info verbatim. Links are neither
// normalized nor required to be non-empty; their order is preserved.
func NewDropResult(date time.Time, links []string, info string) *DropResult {
	return &DropResult{
		date:  date,
		links: slices.Clone(links),
		info:  info,
	}
}

// Date returns the moment the drop was discovered.
func (d *DropResult) Date() time.Time { return d.date }

// Links returns a copy of the resource links in discovery order.
func (d *DropResult) Links() []string { return slices.Clone(d.links) }

// Info returns the free-form description.
func (d *DropResult) Info() string { return d.info }

// String renders the date, the info text and each link on its own line.
func (d *DropResult) String() string {
	var b strings.Builder
	b.WriteString("Drop discovered at ")
	b.WriteString(d.date.Format(time.RFC3339))
	b.WriteString("\nInfo: ")
	b.WriteString(d.info)
	b.WriteString("\nLinks:")
	for _, l := range d.links {
		b.WriteString("\n  - ")
		b.WriteString(l)
	}
	return b.String()
}

type dropResultJSON struct {
	Date  time.Time `json:"date"`
	Links []string  `json:"links"`
	Info  string    `json:"info"`
}

// MarshalJSON encodes the drop as {"date","links","info"}.
func (d *DropResult) MarshalJSON() ([]byte, error) {
	links := d.links
	if links == nil {
		links = []string{}
	}
	return json.Marshal(dropResultJSON{Date: d.date, Links: links, Info: d.info})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (d *DropResult) UnmarshalJSON(data []byte) error {
	var v dropResultJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*d = DropResult{date: v.Date, links: v.Links, info: v.Info}
	return nil
}

// --- Checks ---

// Checker is the pluggable stock check capability implemented by each
// concrete tracker variant.
type Checker interface {
	// Check reports a populated DropResult when new stock appeared, or
	// (nil, nil) when there is nothing new.
	Check(ctx context.Context) (*DropResult, error)
}

// CheckerFunc adapts an ordinary function to the Checker interface.
type CheckerFunc func(ctx context.Context) (*DropResult, error)

// Check calls f(ctx).
func (f CheckerFunc) Check(ctx context.Context) (*DropResult, error) { return f(ctx) }

// Callback handles the outcome of one check. A nil result means the check
// found nothing new.
type Callback func(ctx context.Context, result *DropResult)

// --- Context keys ---

type contextKey int

const (
	ctxKeyCheckID contextKey = iota
	ctxKeyRequestID
	ctxKeyTracker
)

// ContextWithCheckID returns a context carrying the ID of the check in progress.
func ContextWithCheckID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCheckID, id)
}

// CheckIDFromContext extracts the check ID from context.
func CheckIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyCheckID).(string)
	return id
}

// ContextWithTracker returns a context carrying the name of the tracker
// running the current check.
func ContextWithTracker(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxKeyTracker, name)
}

// TrackerFromContext extracts the tracker name from context.
func TrackerFromContext(ctx context.Context) string {
	name, _ := ctx.Value(ctxKeyTracker).(string)
	return name
}

// ContextWithRequestID returns a context carrying the given HTTP request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext extracts the HTTP request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
