// Command attendance runs the attendance steps from the shell, for cron jobs
// and backfills.
//
//	attendance recompute --from 2025-01-01 --to 2025-01-31
//	attendance daily --from 2025-01-06 --to 2025-01-12 --employee emp-1
//	attendance show monthly --employee emp-1 --month 2025-01
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
