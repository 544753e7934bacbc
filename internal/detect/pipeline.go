package detect

import "synthdesk-listener/internal/domain"

// detectorFunc is the uniform detector signature.
type detectorFunc func(pair string, price float64, ts string, m domain.Metrics, th Thresholds) *domain.Annotation

// Pipeline evaluates every detector, in a fixed order, on every tick.
// No short-circuiting: one tick can yield zero, one, or several
// annotations.
type Pipeline struct {
	thresholds Thresholds
	detectors  []struct {
		name string
		fn   detectorFunc
	}
}

// NewPipeline creates a Pipeline with the run's thresholds. Evaluation
// order matches domain.DetectorNames.
func NewPipeline(th Thresholds) *Pipeline {
	return &Pipeline{
		thresholds: th,
		detectors: []struct {
			name string
			fn   detectorFunc
		}{
			{domain.EventBreakout, detectBreakout},
			{domain.EventVolSpike, detectVolSpike},
			{domain.EventMRTouch, detectMRTouch},
		},
	}
}

// Evaluate runs all detectors against one accepted tick and returns every
// annotation that fired, plus the full fired/not-fired flag map keyed by
// detector name.
func (p *Pipeline) Evaluate(pair string, price float64, ts string, m domain.Metrics) ([]*domain.Annotation, map[string]bool) {
	annotations := make([]*domain.Annotation, 0, len(p.detectors))
	fired := make(map[string]bool, len(p.detectors))

	for _, d := range p.detectors {
		a := d.fn(pair, price, ts, m, p.thresholds)
		fired[d.name] = a != nil
		if a != nil {
			annotations = append(annotations, a)
		}
	}
	return annotations, fired
}
