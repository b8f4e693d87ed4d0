package store

import "time"

// BackupRun records one backup invocation
type BackupRun struct {
	ID           int64
	Project      string
	OutputPath   string
	Images       int
	Volumes      int
	Files        int
	Skipped      int
	TotalSize    int64
	Encrypted    bool
	Compression  string
	SHA256       string
	Status       string // "running", "completed", "failed"
	ErrorMessage string
	StartTime    time.Time
	EndTime      time.Time
}
