// Package optimistic applies user actions to local state before the server
// confirms them.
//
// Screens register their collections and counters with a Coordinator. Every
// action resolves the registered targets once, projects the change onto all
// of them under the state.Store lock, calls the gateway, and on failure runs
// the undo returned by state.Store.Apply:
//
//	Idle → Applied → Confirmed
//	               ↘ RolledBack (RollbackError returned, transient message shown)
//
// Only one instance of an (action, post) pair runs at a time; a second
// trigger gets ErrInFlight and changes nothing.
//
// Actions:
//
//	ToggleLike   flip is_liked, likes_count ±1; liked-only lists drop the post on unlike
//	DeletePost   author only; removes every copy, author's post counter −1
//	EditPost     author only; replaces content
//	AddComment   prepends a provisional comment, comments_count +1, commenter's counter +1
package optimistic
