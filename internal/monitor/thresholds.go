package monitor

import (
	"fmt"
	"slices"

	"cloudtune-ops/internal/config"
	"cloudtune-ops/internal/models"
)

const bytesPerMB = 1024 * 1024

// Evaluate compares a snapshot against the limits and returns the violated
// thresholds. Comparisons are strict: a value equal to its limit is healthy.
func Evaluate(s *models.Snapshot, l config.Limits) models.IssueSet {
	issues := models.IssueSet{}
	if s == nil {
		return issues
	}

	if s.HTTPActiveRequests > l.MaxActiveHTTPRequests {
		issues[models.IssueHTTPActive] = fmt.Sprintf("HTTP active requests: %d > %d", s.HTTPActiveRequests, l.MaxActiveHTTPRequests)
	}
	if s.DBInUseConnections > l.MaxDBInUseConnections {
		issues[models.IssueDBInUse] = fmt.Sprintf("DB in_use: %d > %d", s.DBInUseConnections, l.MaxDBInUseConnections)
	}
	if s.Goroutines > l.MaxGoroutines {
		issues[models.IssueGoroutines] = fmt.Sprintf("Goroutines: %d > %d", s.Goroutines, l.MaxGoroutines)
	}

	allocMB := int64(s.GoMemoryAllocBytes / bytesPerMB)
	if allocMB > l.MaxGoMemoryMB {
		issues[models.IssueMemory] = fmt.Sprintf("Go alloc: %d MB > %d MB", allocMB, l.MaxGoMemoryMB)
	}

	freeMB := int64(s.UploadsFSFreeBytes / bytesPerMB)
	if freeMB < l.MinUploadsDiskFreeMB {
		issues[models.IssueDiskFree] = fmt.Sprintf("Uploads free: %d MB < %d MB", freeMB, l.MinUploadsDiskFreeMB)
	}

	if u := s.Upload; u != nil {
		evaluateUploads(u, l, issues)
	}
	return issues
}

func evaluateUploads(u *models.UploadStats, l config.Limits, issues models.IssueSet) {
	if u.Status4xxTotal > l.MaxUpload4xxTotal {
		issues[models.IssueUpload4xxTotal] = fmt.Sprintf("Upload 4xx total: %d > %d", u.Status4xxTotal, l.MaxUpload4xxTotal)
	}
	if u.Status5xxTotal > l.MaxUpload5xxTotal {
		issues[models.IssueUpload5xxTotal] = fmt.Sprintf("Upload 5xx total: %d > %d", u.Status5xxTotal, l.MaxUpload5xxTotal)
	}

	// Rates over a handful of requests are noise.
	if u.RequestsTotal < l.MinUploadRequestsForRate {
		return
	}
	if u.ClientErrorRatePct > l.MaxUpload4xxRatePct {
		issues[models.IssueUpload4xxRate] = fmt.Sprintf("Upload 4xx rate: %.2f%% > %.2f%% (n=%d)", u.ClientErrorRatePct, l.MaxUpload4xxRatePct, u.RequestsTotal)
	}
	if u.ServerErrorRatePct > l.MaxUpload5xxRatePct {
		issues[models.IssueUpload5xxRate] = fmt.Sprintf("Upload 5xx rate: %.2f%% > %.2f%% (n=%d)", u.ServerErrorRatePct, l.MaxUpload5xxRatePct, u.RequestsTotal)
	}
}

// Diff returns the keys whose message is new or changed since prev, and the
// keys present in prev but gone from cur.
func Diff(prev, cur models.IssueSet) (raised, cleared []models.IssueKey) {
	for key, text := range cur {
		if old, ok := prev[key]; !ok || old != text {
			raised = append(raised, key)
		}
	}
	for key := range prev {
		if _, ok := cur[key]; !ok {
			cleared = append(cleared, key)
		}
	}
	slices.Sort(raised)
	slices.Sort(cleared)
	return raised, cleared
}
