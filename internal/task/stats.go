package task

import (
	"math"
	"time"

	"github.com/rgoodwin/taskmate/pkg/types"
)

// ComputeStats aggregates a user's full task list into TaskStats. It is a
// pure function over the list and a fixed "now" so both store
// implementations produce identical numbers. Tasks without a due date simply
// do not contribute to the date-based counters.
func ComputeStats(tasks []types.Task, now time.Time) *types.TaskStats {
	now = now.UTC()
	weekAgo := now.AddDate(0, 0, -7)
	weekEnd := now.AddDate(0, 0, 7)

	stats := &types.TaskStats{TotalTasks: len(tasks)}

	weeklyTotal := 0
	weeklyCompleted := 0

	for i := range tasks {
		t := &tasks[i]

		if t.IsCompleted {
			stats.CompletedTasks++
		}

		if !t.UpdatedAt.IsZero() && !t.UpdatedAt.UTC().Before(weekAgo) {
			weeklyTotal++
			if t.IsCompleted {
				weeklyCompleted++
			}
		}

		if !t.IsCompleted {
			if t.Priority == types.PriorityHigh {
				stats.HighPriorityPending++
			}
			if t.DueDate != nil {
				due := t.DueDate.UTC()
				if due.Before(now) {
					stats.OverdueTasks++
				} else if !due.After(weekEnd) {
					stats.TasksDueThisWeek++
				}
			}
		}
	}

	stats.PendingTasks = stats.TotalTasks - stats.CompletedTasks
	stats.CompletionRate = percent(stats.CompletedTasks, stats.TotalTasks)
	stats.WeeklyCompletionRate = percent(weeklyCompleted, weeklyTotal)

	return stats
}

// percent computes completed/total*100 rounded to two decimals, 0 when the
// denominator is zero.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*100*100) / 100
}
