// Package ui is the cranky terminal interface, built on Bubble Tea.
//
// # Screens
//
//   - Login gate: shown while no valid token is stored. l starts a browser
//     login through a local callback listener, p accepts a pasted token.
//   - Selector: deck list ("all" first), tag input with completion from the
//     host tag list, selection mode, and a live "Cards in scope" count that
//     is recomputed on every change. Export is refused at zero.
//   - Export and theme prompt: the batch is exported first, then a theme is
//     asked for. An empty theme cancels the run.
//   - Progress: spinner plus the run snapshot (stage, poll attempts,
//     service status). The result opens in a modal; success also opens the
//     dashboard in the browser.
//   - Time warp: interactive due-date simulation with an occupancy
//     histogram. Changes reach the host only on a or f.
//
// The log pane (L) tails the rotating log file on every tick. T cycles the
// theme and remembers it in prefs.toml.
//
// Long-running work (host queries, exports, the scene run) happens in
// tea.Cmds so the event loop never blocks. Count results carry a sequence
// number and stale ones are dropped.
//
// Prompt and Confirm are small standalone programs for the line-oriented
// run command.
package ui
