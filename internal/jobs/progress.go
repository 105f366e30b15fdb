package jobs

import "batch-transcriber/internal/domain"

// Overall folds one file's progress into a batch-wide percentage:
// (processed + fileProgress/100) / total * 100. An indeterminate file
// progress stays indeterminate.
func Overall(processed, total int, fileProgress float64) float64 {
	if fileProgress < 0 {
		return domain.ProgressIndeterminate
	}
	if total <= 0 {
		return 0
	}
	if fileProgress > 100 {
		fileProgress = 100
	}

	overall := (float64(processed) + fileProgress/100) / float64(total) * 100
	if overall > 100 {
		return 100
	}
	return overall
}
