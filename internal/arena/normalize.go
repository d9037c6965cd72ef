package arena

import (
	"fmt"

	"github.com/i2y/schemair/internal/domain"
)

// Limits bound a normalization run. Zero disables a guard.
type Limits struct {
	MaxPasses int
	MaxNodes  int
}

// Report summarizes a normalization run.
type Report struct {
	Sweeps      int
	Passes      int
	Changes     int
	Synthesized int
}

// Normalize applies each transform repeatedly until it changes nothing, in
// order, and repeats whole sweeps until a sweep changes nothing. Exceeding a
// limit yields domain.ErrNoFixpoint.
func (a *Arena) Normalize(transforms []Transform, limits Limits) (Report, error) {
	var report Report
	start := a.Len()
	for {
		report.Sweeps++
		sweepChanges := 0
		for _, t := range transforms {
			for {
				if limits.MaxPasses > 0 && report.Passes >= limits.MaxPasses {
					report.Synthesized = a.Len() - start
					return report, fmt.Errorf("%w: %d passes exceeded", domain.ErrNoFixpoint, limits.MaxPasses)
				}
				n, err := a.ApplyTransform(t)
				report.Passes++
				if err != nil {
					return report, err
				}
				if limits.MaxNodes > 0 && a.Len() > limits.MaxNodes {
					report.Synthesized = a.Len() - start
					return report, fmt.Errorf("%w: arena grew past %d nodes", domain.ErrNoFixpoint, limits.MaxNodes)
				}
				if n == 0 {
					break
				}
				sweepChanges += n
			}
		}
		report.Changes += sweepChanges
		if sweepChanges == 0 {
			break
		}
	}
	report.Synthesized = a.Len() - start
	return report, nil
}
