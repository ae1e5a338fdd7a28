// Package state shares the progress of a scene run between the background
// workflow goroutine and the UI.
//
// The workflow is the single writer: it calls Begin, SetStage, SetSession,
// SetUploaded, Update (once per status poll) and finally Finish. The UI
// reads a Snapshot on each tick and renders it; it never blocks on the
// workflow and the workflow never calls into the UI.
//
//	Workflow goroutine:           UI tick:
//	  store.SetStage(StagePoll)     snap := store.Snapshot()
//	  store.Update(status, err)     render(snap)
//
// Update follows the same rule as a poll loop: on error the last good
// status is kept and the error recorded, so the UI can show both. Snapshots
// are returned by value and never share mutable state with the Store.
//
// The zero Store is ready to use and reports an idle run.
package state
