// Package ui is murmur's Bubble Tea terminal front end.
//
// The Model owns one controller per screen from the screen package and
// renders straight from their collections, so an optimistic change shows up
// on the next frame. Blocking work (fetches, mutations, session calls) runs
// in tea.Cmds; the coordinator's phase events arrive as messages and trigger
// a redraw.
//
// # Views
//
//   - Home: the feed
//   - Liked posts: the viewer's likes, unliking removes the post
//   - Profile: the viewer's counters plus posts, comments and likes tabs
//   - User: another user's counters and posts, opened with "@"
//   - Post: one post with its comments
//
// # Input
//
// A single input line in the footer collects post and comment text, edits,
// the bio, and the login, second-factor and registration forms. Password
// fields are masked.
//
// # Key Bindings
//
//   - f / p / L: Home, profile, liked posts
//   - enter: Open the selected post
//   - j/k, g/G: Move the selection
//   - l or Space: Like or unlike
//   - e / D: Edit or delete your own post
//   - c: Comment on the open post
//   - n: New post
//   - 1/2/3: Profile tabs
//   - i / R / O: Log in, register, log out
//   - b: Edit bio
//   - r: Refresh
//   - T: Cycle theme
//   - h or ?: Help
//   - esc: Back
//   - q or Ctrl+C: Quit
package ui
