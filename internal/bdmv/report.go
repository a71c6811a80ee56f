package bdmv

// Status is the outcome of one check.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Check is one validation result.
type Check struct {
	Name   string
	Status Status
	Detail string
}

// Report collects the checks run against one output.
type Report struct {
	Output string
	ISO    bool
	Checks []Check
}

// Passed reports whether no check failed. Warnings do not fail a report.
func (r *Report) Passed() bool {
	for _, check := range r.Checks {
		if check.Status == StatusFail {
			return false
		}
	}
	return true
}

// Count returns how many checks ended with status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, check := range r.Checks {
		if check.Status == status {
			n++
		}
	}
	return n
}

func (r *Report) add(checks ...Check) {
	r.Checks = append(r.Checks, checks...)
}

func pass(name, detail string) Check { return Check{Name: name, Status: StatusPass, Detail: detail} }
func warn(name, detail string) Check { return Check{Name: name, Status: StatusWarn, Detail: detail} }
func fail(name, detail string) Check { return Check{Name: name, Status: StatusFail, Detail: detail} }
