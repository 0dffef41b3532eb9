package html2pdf

// Limit profiles. Production targets resource-constrained hosts
// (each Chrome page costs tens of MB), development a local machine.
const (
	ProductionConcurrency  = 2
	ProductionMaxPages     = 20
	DevelopmentConcurrency = 5
	DevelopmentMaxPages    = 100

	// MaxConcurrency caps explicit overrides.
	MaxConcurrency = 16

	// MaxPagesCeiling caps explicit page-count overrides.
	MaxPagesCeiling = 500
)

// Limits bounds one request: pages rendered at once and pages accepted.
type Limits struct {
	Concurrency int `json:"concurrencyLimit"`
	MaxPages    int `json:"maxPages"`
}

// ResolveLimits selects the profile for the deployment mode.
// Positive overrides take priority and are clamped to the hard caps.
func ResolveLimits(production bool, concurrency, maxPages int) Limits {
	l := Limits{Concurrency: DevelopmentConcurrency, MaxPages: DevelopmentMaxPages}
	if production {
		l = Limits{Concurrency: ProductionConcurrency, MaxPages: ProductionMaxPages}
	}

	if concurrency > 0 {
		l.Concurrency = min(concurrency, MaxConcurrency)
	}
	if maxPages > 0 {
		l.MaxPages = min(maxPages, MaxPagesCeiling)
	}
	return l
}
