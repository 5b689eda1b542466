// Package buffer derives a pessimistic effective-availability estimate for
// an externally-operated dependency from two noisy inputs: a vendor-published
// SLA and an observed availability ratio. It performs no I/O.
package buffer

import (
	"fmt"

	"slograph/pkg/domain"
)

// PessimisticMultiplier is the policy constant applied to a vendor's
// advertised unavailability: real unavailability is assumed to be this many
// times worse than advertised.
const PessimisticMultiplier = 11.0

// DefaultAvailability is used when neither a published SLA nor an observed
// availability is available for a target.
const DefaultAvailability = 0.999

// Input carries the two noisy availability signals for an external target.
// Either field may be absent (nil).
type Input struct {
	PublishedSLA        *float64
	ObservedAvailability *float64
}

// Result is the derived effective availability and an explanation of how it
// was selected.
type Result struct {
	EffectiveAvailability float64
	PublishedAdjusted     *float64
	Note                  string
}

// Adjust applies the pessimistic-adjustment rule set to an external target's
// published SLA and observed availability, producing a single effective
// availability ratio in (0, 1].
func Adjust(in Input) Result {
	var publishedAdjusted *float64
	if in.PublishedSLA != nil {
		adjusted := domain.Max(0, 1-PessimisticMultiplier*(1-*in.PublishedSLA))
		publishedAdjusted = &adjusted
	}

	switch {
	case publishedAdjusted != nil && in.ObservedAvailability != nil:
		effective := domain.Min(*in.ObservedAvailability, *publishedAdjusted)
		return Result{
			EffectiveAvailability: domain.ClampAvailability(effective),
			PublishedAdjusted:     publishedAdjusted,
			Note: fmt.Sprintf(
				"both an observed availability (%.4f) and a published SLA (adjusted to %.4f via %gx pessimistic margin) were present; used the lower of the two",
				*in.ObservedAvailability, *publishedAdjusted, PessimisticMultiplier,
			),
		}

	case in.ObservedAvailability != nil:
		return Result{
			EffectiveAvailability: domain.ClampAvailability(*in.ObservedAvailability),
			Note:                  fmt.Sprintf("no published SLA was on file; used the observed availability (%.4f) directly", *in.ObservedAvailability),
		}

	case publishedAdjusted != nil:
		return Result{
			EffectiveAvailability: domain.ClampAvailability(*publishedAdjusted),
			PublishedAdjusted:     publishedAdjusted,
			Note: fmt.Sprintf(
				"no observed availability was on file; used the published SLA (%.4f) adjusted to %.4f via the %gx pessimistic margin",
				*in.PublishedSLA, *publishedAdjusted, PessimisticMultiplier,
			),
		}

	default:
		return Result{
			EffectiveAvailability: DefaultAvailability,
			Note:                  fmt.Sprintf("neither a published SLA nor an observed availability was on file; defaulted to %.4f", DefaultAvailability),
		}
	}
}
