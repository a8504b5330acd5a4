// Package modal implements the queue-serialised, fragment-synchronised modal
// router.
//
// # State
//
// The router owns one pair of slots:
//
//   - Current: the modal that is visually active (drives open/closed styling)
//   - Mounted: the modal whose view exists at all (possibly mid exit animation)
//
// A host renders modal X only while Mounted == X and passes isOpen =
// (Current == X). Mounted being empty always implies Current is empty.
//
// # Transitions
//
// OpenModal and CloseModal never run inline. Each call appends one task to a
// FIFO Queue with concurrency 1, so any burst of calls resolves in call order
// and a transition (including its grace wait) finishes before the next starts.
//
//	close:   Current = ""  -> wait CloseGrace   -> Mounted = ""
//	replace: Current = ""  -> wait ReplaceGrace -> Mounted = "" -> Current = Mounted = name
//	open:    Current = Mounted = name
//
// The grace intervals are a UI contract (time for an exit animation), not a
// correctness requirement. Shutdown cancels any pending wait and no state is
// mutated afterwards.
//
// # Fragment Binding
//
// Bind attaches the router to a hashstate.State. A change of the fragment's
// first colon segment enqueues OpenModal(segment), or CloseModal when the
// segment is empty, whatever caused the change. Open and Close write the
// fragment first and let that binding enqueue the transition.
//
//	#settings:account:verify-email
//	 ^^^^^^^^ modal   ^^^^^^^^^^^^^^^^^^^^ sub-view, owned by the settings modal
package modal
