package model

import (
	"time"

	"gorm.io/datatypes"
)

// StoryState 故事生命周期状态
type StoryState string

const (
	StateInit          StoryState = "init"
	StateInitial       StoryState = "initial"
	StateUnfolding     StoryState = "unfolding"
	StateClimax        StoryState = "climax"
	StateEndingMystery StoryState = "ending_mystery"
	StateEnded         StoryState = "ended"
	StateLocked        StoryState = "locked"
)

// Terminal 结局态与封帖态不再计入活跃故事
func (s StoryState) Terminal() bool {
	return s == StateEndingMystery || s == StateEnded || s == StateLocked
}

// ActiveStates 计入活跃上限的状态
var ActiveStates = []StoryState{StateInit, StateInitial, StateUnfolding, StateClimax}

// Transition 一次状态迁移记录
type Transition struct {
	From   StoryState `json:"from"`
	To     StoryState `json:"to"`
	At     time.Time  `json:"at"`
	Reason string     `json:"reason"`
}

// StateData 状态机数据，仅在存储边界序列化为 JSON
type StateData struct {
	State             StoryState   `json:"state"`
	EnteredAt         time.Time    `json:"entered_at"`
	InteractionCount  int          `json:"interaction_count"`
	TransitionHistory []Transition `json:"transition_history"`
}

// Story 故事（论坛主帖）
type Story struct {
	ID               string                        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title            string                        `gorm:"type:varchar(200);not null" json:"title"`
	Body             string                        `gorm:"type:text;not null" json:"body"`
	Category         string                        `gorm:"type:varchar(32);index" json:"category"`
	Location         string                        `gorm:"type:varchar(100)" json:"location"`
	Persona          string                        `gorm:"type:varchar(64)" json:"persona"`
	IsAIGenerated    bool                          `gorm:"index" json:"is_ai_generated"`
	CurrentState     StoryState                    `gorm:"type:varchar(20);index;not null" json:"current_state"`
	StateData        datatypes.JSONType[StateData] `json:"-"`
	UserCommentCount int                           `gorm:"not null;default:0" json:"user_comment_count"`
	EvidenceCount    int                           `gorm:"not null;default:0" json:"evidence_count"`
	AudioCount       int                           `gorm:"not null;default:0" json:"audio_count"`
	ImageCount       int                           `gorm:"not null;default:0" json:"image_count"`
	Views            int                           `gorm:"not null;default:0" json:"views"`
	CreatedAt        time.Time                     `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time                     `json:"updated_at"`
}

func (Story) TableName() string { return "stories" }

// State 返回状态数据副本
func (s *Story) State() StateData { return s.StateData.Data() }

// SetState 同时写入 JSON 与冗余列 current_state
func (s *Story) SetState(d StateData) {
	s.StateData = datatypes.NewJSONType(d)
	s.CurrentState = d.State
}
