// Package app is the composition root of cranky.
//
// New loads .env and config.toml, opens the rotating log file and picks the
// host backend: a collection file when collection_path (or --collection) is
// set, AnkiConnect otherwise. The resulting App hands every command the same
// building blocks:
//
//   - Export: empty the media directory, select and convert cards, write the
//     export file
//   - Palace and Runner: a service client carrying the stored token, and a
//     workflow runner that reports into the shared state.Store
//   - Token: the stored token, cleared when its expiry has passed
//   - LoginManager: one browser login at a time
//
// Run wires an App into the TUI. The cli package uses the same App for the
// non-interactive commands.
package app
