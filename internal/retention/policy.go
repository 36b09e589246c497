// Package retention enforces backup lifecycle: deletion, archival and the
// static per-class retention policy table.
package retention

// Policy pairs a record class with its retention period. The table is
// static; it is enforced by the same component family as backup lifecycle
// but is independent of per-record RetentionUntil.
type Policy struct {
	TargetClass         string `json:"targetClass"`
	RetentionPeriodDays int    `json:"retentionPeriodDays"`
}

// Policies is the retention table for the platform's record classes.
var Policies = []Policy{
	{TargetClass: "audit_trail", RetentionPeriodDays: 365},
	{TargetClass: "operational_logs", RetentionPeriodDays: 90},
	{TargetClass: "financial_records", RetentionPeriodDays: 1825},
	{TargetClass: "document_records", RetentionPeriodDays: 1825},
	{TargetClass: "property_records", RetentionPeriodDays: 1825},
	{TargetClass: "transaction_records", RetentionPeriodDays: 1825},
}

// PolicyFor looks up the policy for a target class.
func PolicyFor(class string) (Policy, bool) {
	for _, p := range Policies {
		if p.TargetClass == class {
			return p, true
		}
	}
	return Policy{}, false
}

// LifecycleStats is the read model behind GET retention/lifecycle-stats.
type LifecycleStats struct {
	Policies           []Policy `json:"policies"`
	TotalRecords       int      `json:"totalRecords"`
	PastRetention      int      `json:"pastRetention"`
	Archived           int      `json:"archived"`
	EligibleForDelete  int      `json:"eligibleForDelete"`
	EligibleForArchive int      `json:"eligibleForArchive"`
	InGraceWindow      int      `json:"inGraceWindow"`
}
