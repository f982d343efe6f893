// Package generator contains the provider adapters that turn a body image and
// one or two clothing images into a generated try-on image.
package generator

import (
	"context"
)

// Request carries everything a provider needs for one generation. Image
// inputs are passed as resolvable URLs; adapters download what they need.
type Request struct {
	TaskID            string
	BodyImageURL      string
	ClothingImageURLs []string // ordered, 1..2 entries
	Part              string   // "", upper, lower, full_set

	// Progress is a best-effort sink for 0-100 percentages. May be nil.
	Progress func(percent int)

	// SaveProviderTask persists the provider-side task ID as soon as it is
	// known, so an operator can reconcile against the provider after a
	// crash. May be nil. Only fitroom calls it.
	SaveProviderTask func(ctx context.Context, providerTaskID string) error
}

// Generator produces a try-on image for one provider backend.
type Generator interface {
	// Kind returns the provider identifier used in task records.
	Kind() string

	// ReportsProgress is true when the provider pushes its own progress
	// through Request.Progress during Generate. The orchestrator only
	// simulates coarse progress for providers that return false.
	ReportsProgress() bool

	// Generate runs one synchronous generation and returns the image bytes.
	// Failures are *Error values.
	Generate(ctx context.Context, req Request) ([]byte, error)
}

func (r Request) reportProgress(percent int) {
	if r.Progress != nil {
		r.Progress(percent)
	}
}

func (r Request) firstClothingURL() string {
	if len(r.ClothingImageURLs) == 0 {
		return ""
	}
	return r.ClothingImageURLs[0]
}
