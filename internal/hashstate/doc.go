// Package hashstate holds the single URL-fragment string that decides which
// modal is open.
//
// A State behaves like a browser's location.hash: it stores one fragment
// (without the leading '#'), keeps back/forward history, and notifies
// subscribers synchronously and in mutation order whenever the fragment
// changes. Setting the fragment to its current value is not a change and
// notifies nobody.
//
// Subscribers run on the goroutine that caused the change, while the State's
// notification lock is held. They must not call Set, Replace, Back or Forward
// from inside the callback; they may call Get.
package hashstate
