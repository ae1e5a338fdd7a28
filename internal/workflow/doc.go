// Package workflow runs a scene job against the palace service in the
// background.
//
// Runner.Start returns a channel that receives exactly one Result when the
// run ends. While it runs, the runner publishes its stage and poll count
// to a state.Store that the UI reads on its own tick. Status polling uses a
// fixed interval and a fixed ceiling; there is no backoff and no retry of
// a failed step. Failures are returned as *StageError so the UI can tell
// scene creation, status polling and timeouts apart.
package workflow
