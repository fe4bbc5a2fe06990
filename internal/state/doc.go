// Package state holds the client's view collections and aggregate counters.
//
// # Overview
//
// Every screen owns one or more collections created from a shared Store: post
// lists (feed, a user's posts, liked posts), enriched comment lists, the
// comments of one post, a single post detail, and per-user counters. The same
// post may appear in several of them at once.
//
// # Concurrency Model
//
// One sync.RWMutex on the Store guards every collection. Views are copies
// taken under the read lock. Store.Apply takes the write lock once and
// projects a mutation onto all of its targets, so no reader ever observes a
// post changed in one list but not yet in another.
//
// # Fetch Lifecycle
//
//	t := feed.BeginLoad()          // status → loading
//	posts, err := gw.FetchFeed(..)
//	feed.Finish(t, posts, err)     // dropped if t is stale or feed closed
//
// A failed fetch keeps the previous items and records the error. A
// successful fetch replaces the items and bumps the collection's generation.
//
// # Rollback
//
// Apply returns an undo func that restores only the entries it touched:
// patched fields are reverted through PostPatch.Revert, removed entries are
// reinserted at their old index, prepended comments are dropped, and counters
// move back by the amount actually applied. Undo is skipped for a collection
// whose generation changed since the mutation, because its contents then came
// from the server.
//
// Counters never go below zero.
package state
