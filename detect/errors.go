package detect

import (
	"fmt"
)

// TemplateQualityError reports an exemplar whose quality metric was flat
// across the whole scan window (silence, dropouts, constant tone). The
// template is unusable; the error is fatal to that template only.
type TemplateQualityError struct {
	Label  string
	Metric QualityMetric
}

func (e *TemplateQualityError) Error() string {
	return fmt.Sprintf("template %q: quality metric %q is flat across the scan window",
		e.Label, e.Metric)
}

// InsufficientDataError reports a signal shorter than the template being
// matched against it. The scan for that template is skipped.
type InsufficientDataError struct {
	SignalLen   int
	TemplateLen int
	TemplateID  string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("template %q: signal length %d is shorter than template length %d",
		e.TemplateID, e.SignalLen, e.TemplateLen)
}
