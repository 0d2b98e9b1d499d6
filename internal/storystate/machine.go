// Package storystate 故事生命周期状态机。
//
// 状态只前进，每次评估至多迁移一步：
//
//	init → initial → unfolding → climax → {ending_mystery | ended} → locked
//
// 故事也可以直接以 locked 创建（历史封帖）。
package storystate

import (
	"time"

	"github.com/d60-Lab/living-legends/config"
	"github.com/d60-Lab/living-legends/internal/model"
)

// Rules 迁移阈值
type Rules struct {
	ClimaxAfter         time.Duration
	ClimaxInteractions  int
	EndAfter            time.Duration
	EndInteractions     int
	ResolveInteractions int
	ArchiveAfter        time.Duration
}

func RulesFromConfig(c config.StateConfig) Rules {
	return Rules{
		ClimaxAfter:         c.ClimaxAfter,
		ClimaxInteractions:  c.ClimaxInteractions,
		EndAfter:            c.EndAfter,
		EndInteractions:     c.EndInteractions,
		ResolveInteractions: c.ResolveInteractions,
		ArchiveAfter:        c.ArchiveAfter,
	}
}

// DefaultRules 与配置默认值一致
func DefaultRules() Rules { return RulesFromConfig(config.Default().State) }

var order = map[model.StoryState]int{
	model.StateInit:          0,
	model.StateInitial:       1,
	model.StateUnfolding:     2,
	model.StateClimax:        3,
	model.StateEndingMystery: 4,
	model.StateEnded:         4,
	model.StateLocked:        5,
}

// Rank 状态在生命周期中的序号，未知状态视为 init
func Rank(s model.StoryState) int { return order[s] }

// New 构造处于 state 的初始状态数据
func New(state model.StoryState, now time.Time) model.StateData {
	return model.StateData{State: state, EnteredAt: now, TransitionHistory: []model.Transition{}}
}

// Next 依据创建时长、累计互动数和当前状态给出下一状态；ok=false 表示保持不变
func (r Rules) Next(d model.StateData, createdAt, now time.Time) (next model.StoryState, reason string, ok bool) {
	age := now.Sub(createdAt)
	n := d.InteractionCount
	switch d.State {
	case model.StateInit, "":
		return model.StateInitial, "published", true
	case model.StateInitial:
		if n >= 1 {
			return model.StateUnfolding, "first_interaction", true
		}
	case model.StateUnfolding:
		if age >= r.ClimaxAfter {
			return model.StateClimax, "age", true
		}
		if n >= r.ClimaxInteractions {
			return model.StateClimax, "interactions", true
		}
	case model.StateClimax:
		if age >= r.EndAfter || n >= r.EndInteractions {
			if n >= r.ResolveInteractions {
				return model.StateEnded, "resolved", true
			}
			return model.StateEndingMystery, "unresolved", true
		}
	case model.StateEndingMystery, model.StateEnded:
		if now.Sub(d.EnteredAt) >= r.ArchiveAfter {
			return model.StateLocked, "archived", true
		}
	}
	return d.State, "", false
}

// MaybeTransition 评估并至多迁移一步，返回本次迁移
func (r Rules) MaybeTransition(s *model.Story, now time.Time) (model.Transition, bool) {
	d := s.State()
	if d.State == "" {
		d.State = s.CurrentState
	}
	next, reason, ok := r.Next(d, s.CreatedAt, now)
	if !ok || Rank(next) <= Rank(d.State) {
		return model.Transition{}, false
	}
	t := model.Transition{From: d.State, To: next, At: now, Reason: reason}
	d.State = next
	d.EnteredAt = now
	d.TransitionHistory = append(d.TransitionHistory, t)
	s.SetState(d)
	return t, true
}

// RecordInteraction 累加互动计数并返回新值。
// 调用方须持有该故事的锁并在同一事务内重新读取故事。
func RecordInteraction(s *model.Story) int {
	d := s.State()
	if d.State == "" {
		d.State = s.CurrentState
	}
	d.InteractionCount++
	s.SetState(d)
	return d.InteractionCount
}

// IsPublished init 态故事尚未发布，对外不可见
func IsPublished(s *model.Story) bool {
	return s.CurrentState != model.StateInit
}

// IsLocked 封帖后拒绝新评论
func IsLocked(s *model.Story) bool {
	return s.CurrentState == model.StateLocked
}
