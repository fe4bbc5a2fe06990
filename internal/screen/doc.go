// Package screen holds one controller per client screen: Feed, Likes,
// Profile, UserProfile, PostDetail and Compose.
//
// A controller creates its collections from the shared state.Store, registers
// them with the optimistic.Coordinator so that actions taken on any screen
// reach them, and closes them when the screen goes away. Fetch failures are
// recorded on the collection; mutation failures leave a transient Notice.
package screen
