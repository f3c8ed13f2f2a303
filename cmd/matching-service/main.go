// jobmate-matching-service
//
// Candidate-to-job matching and ranking engine ("Beyond Connect").
// Exposes REST and gRPC APIs used by the Gateway to implement:
//   - recompute(jobId, candidatePool) — score, filter, rank and store
//   - matches(jobId)                  — read the stored ranking
//
// A cron loop recomputes the rankings of jobs flagged stale, building each
// pool from eligible candidates. Publishes EVENT_RANKING_RECOMPUTED to Redis
// after every stored generation.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
