package syncer

import "github.com/GoCodeAlone/fieldops/task"

// FallbackTaskID identifies the synthetic task shown in degraded mode.
const FallbackTaskID int64 = 1023

// Generate returns the fixed synthetic snapshot displayed while the server
// is unreachable. Its stats are derived from its lists. It is display-only:
// the repository marks it as cache.SourceFallback and nothing in it may be
// used for a write round-trip.
func Generate() *task.Snapshot {
	snap := &task.Snapshot{
		ActiveTasks: []task.Task{{
			ID:           FallbackTaskID,
			Status:       task.StatusInProgress,
			Priority:     task.PriorityNormal,
			CompanyName:  "Cafe Lvivska",
			Address:      "Lviv, Shevchenka St, 25",
			ContactPhone: "+380672345678",
			Model:        "RICH 1800K",
			SerialNumber: "FIS-2024-001",
			Description:  "Replace thermal paper, preventive maintenance",
		}},
		HistoryTasks:   []task.Task{},
		AvailableTasks: []task.Task{},
	}
	snap.Reconcile()
	return snap
}
