package errors

// Action says what the caller does when an error of a kind reaches it.
type Action int

const (
	// Abort stops the current run and propagates the error.
	Abort Action = iota
	// Recover substitutes a neutral value, logs a warning and carries on.
	Recover
)

func (a Action) String() string {
	if a == Recover {
		return "recover"
	}
	return "abort"
}

// Policy is one row of the error policy table.
type Policy struct {
	Action   Action
	Severity Severity
	// Scope names the unit of work the action applies to.
	Scope string
	// Pipeline is what the multi-repository runner does once the error has
	// ended one repository.
	Pipeline Action
}

// policies is the single place that decides recover-vs-abort per kind.
// Probe failures are swallowed inside one commit; metadata failures end the
// aggregation while keeping rows already written. External failures only
// end the current repository inside the pipeline runner.
var policies = map[Kind]Policy{
	KindMalformedReport:    {Action: Abort, Severity: SeverityCritical, Scope: "run, before any row", Pipeline: Recover},
	KindProbeInvocation:    {Action: Recover, Severity: SeverityLow, Scope: "size field of one commit", Pipeline: Recover},
	KindMetadataResolution: {Action: Abort, Severity: SeverityCritical, Scope: "rest of the run", Pipeline: Recover},
	KindOutputWrite:        {Action: Abort, Severity: SeverityCritical, Scope: "run, immediately", Pipeline: Abort},
	KindConfig:             {Action: Abort, Severity: SeverityCritical, Scope: "process start-up", Pipeline: Abort},
	KindValidation:         {Action: Abort, Severity: SeverityHigh, Scope: "command", Pipeline: Abort},
	KindExternal:           {Action: Recover, Severity: SeverityMedium, Scope: "one repository in the pipeline", Pipeline: Recover},
	KindDatabase:           {Action: Recover, Severity: SeverityMedium, Scope: "run index write", Pipeline: Recover},
	KindInternal:           {Action: Abort, Severity: SeverityCritical, Scope: "process", Pipeline: Abort},
}

// PolicyFor returns the policy for kind; unknown kinds abort.
func PolicyFor(kind Kind) Policy {
	if p, ok := policies[kind]; ok {
		return p
	}
	return Policy{Action: Abort, Severity: SeverityCritical, Scope: "process"}
}

// IsRecoverable reports whether err's kind is recovered locally.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	return PolicyFor(KindOf(err)).Action == Recover
}

// ContinuesPipeline reports whether the multi-repository runner moves on to
// the next repository after err ended the current one.
func ContinuesPipeline(err error) bool {
	if err == nil {
		return true
	}
	return PolicyFor(KindOf(err)).Pipeline == Recover
}
