package model

import "time"

// JobKind 异步任务类型
type JobKind string

const (
	JobReply    JobKind = "reply"
	JobEvidence JobKind = "evidence"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

// Job 延迟任务外发盒；DedupeKey 保证同一触发只落地一次
type Job struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)"`
	Kind        JobKind    `gorm:"type:varchar(16);not null"`
	StoryID     string     `gorm:"type:varchar(36);not null;index"`
	CommentID   string     `gorm:"type:varchar(36);not null"`
	DedupeKey   string     `gorm:"type:varchar(120);uniqueIndex;not null"`
	RunAt       time.Time  `gorm:"index:idx_job_due,priority:2"`
	Status      JobStatus  `gorm:"type:varchar(16);index:idx_job_due,priority:1"` // pending, processing, done, failed
	Attempts    int
	LastError   string     `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
}

func (Job) TableName() string { return "jobs" }
