package metrics

import "time"

// JobCompleted records a successful scheduled job run.
func JobCompleted(job string, duration time.Duration, affected int64) {
	JobsTotal.WithLabelValues(job, "completed").Inc()
	JobDuration.WithLabelValues(job).Observe(duration.Seconds())
	if affected > 0 {
		JobAffectedRows.WithLabelValues(job).Add(float64(affected))
	}
}

// JobFailed records a failed scheduled job run.
func JobFailed(job string, duration time.Duration) {
	JobsTotal.WithLabelValues(job, "failed").Inc()
	JobDuration.WithLabelValues(job).Observe(duration.Seconds())
}
