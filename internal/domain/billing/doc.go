// Package billing holds the usage ledger of the licensing engine.
//
// Every metered operation appends one immutable UsageRecord. Records are
// only ever read in aggregate: per license for quota checks, per site and per
// end user for reporting. QuotaSummary is an optional materialized sum per
// license and billing period; when it is absent the ledger is summed directly,
// and both paths return the same number.
package billing
