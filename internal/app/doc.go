// Package app is murmur's composition root.
//
// Run loads the configuration, points the default slog logger at a file under
// the data directory, opens the persisted session, and wires the pieces
// together:
//
//	config.Load()          settings file, .env and MURMUR_* overrides
//	localstore.OpenFile()  persisted credential
//	api.NewClient()        HTTP gateway, bearer token read from the session
//	session.New()          identity; Restore runs before the first frame
//	state.NewStore()       view collections and counters
//	optimistic.New()       mutation coordinator; events go to the UI
//	ui.Run()               Bubble Tea program (blocks)
//
// Nothing polls in the background. Screens fetch when opened or refreshed.
//
// Fatal errors (returned from Run): unreadable config, log file or session
// storage, and an invalid API URL. A rejected stored credential is not an
// error: the viewer simply starts anonymous.
package app
