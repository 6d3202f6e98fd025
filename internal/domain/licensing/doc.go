// Package licensing holds the license and site model of the metered AI service.
//
// A License is the billable identity: it carries a plan, a lifecycle status and a
// billing anchor day from which monthly quota periods are derived. A Site binds one
// external installation to a license; the plan table caps how many sites may be
// active at once.
//
// Key types:
//   - License: aggregate root keyed by an opaque, case-sensitive key
//   - Site: binding keyed by a stable site hash, unique across all licenses
//   - PlanTable: the single source of truth for credits, site caps and request rates
//   - Period: a half-open one-month accounting window anchored to the billing day
//   - Error: the typed error taxonomy shared by validation, the site registry and quota
package licensing
