// Package wizard provides the step controller shared by every multi-step
// form.
//
// A Controller is built from a fixed step table: an ordered list of steps,
// each owning a disjoint set of field names. Steps are 1-indexed. The
// controller tracks the current step, the slide direction, and which field
// errors are visible.
//
// Submissions go through a SubmitFunc. Steps before the commit step send
// validate-only requests; the commit step sends the real mutation. Server
// field errors are routed back to the earliest step that owns an errored
// field, even when the user has already moved past it. Errors for fields on
// later steps are withheld until the user reaches those steps.
//
// A response that arrives after the user has navigated away, or after a
// newer submission started, is dropped.
package wizard
