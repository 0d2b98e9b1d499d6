package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/living-legends/internal/model"
)

func TestNotifier_RecipientsUnionDedupe(t *testing.T) {
	e := newEnv(t, nil)
	s := e.story(t, "午夜电梯", "电梯总停在十三楼", model.StateUnfolding)
	e.follow(t, "user-a", s.ID)
	e.follow(t, "user-b", s.ID)
	now := time.Now()
	addComment(t, e, s.ID, ptr("user-b"), "我也见过", false, now)
	addComment(t, e, s.ID, ptr("user-c"), "真的假的", false, now.Add(time.Second))
	addComment(t, e, s.ID, nil, "楼主回复", true, now.Add(2*time.Second))

	ids, err := e.deps.Notifier.Recipients(context.Background(), nil, s.ID, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-a", "user-b", "user-c"}, ids)

	ids, err = e.deps.Notifier.Recipients(context.Background(), nil, s.ID, "user-b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-a", "user-c"}, ids)
}

func TestNotifier_NotifyActorExclusionByCategory(t *testing.T) {
	e := newEnv(t, nil)
	s := e.story(t, "午夜电梯", "电梯总停在十三楼", model.StateUnfolding)
	e.follow(t, "user-a", s.ID)
	addComment(t, e, s.ID, ptr("user-b"), "我也见过", false, time.Now())

	ctx := context.Background()
	rows, err := e.deps.Notifier.Notify(ctx, Fanout{
		StoryID: s.ID, ActorID: "user-b",
		Category: model.CategoryComment, Type: model.TypeNewReply, Content: "有新回复",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "user-a", rows[0].RecipientID)

	rows, err = e.deps.Notifier.Notify(ctx, Fanout{
		StoryID: s.ID, ActorID: "user-b",
		Category: model.CategoryEvidence, Type: model.TypeEvidenceUpdate, Content: "新证据",
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.ElementsMatch(t, []string{"user-a", "user-b"}, recipients(e.notifications(t, s.ID), model.TypeEvidenceUpdate))
	assert.Len(t, e.events(t), 3)
}

func TestNotifier_NoRecipients(t *testing.T) {
	e := newEnv(t, nil)
	s := e.story(t, "空楼", "没人来过", model.StateInitial)

	rows, err := e.deps.Notifier.Notify(context.Background(), Fanout{
		StoryID: s.ID, Category: model.CategoryEvidence, Type: model.TypeEvidenceUpdate, Content: "x",
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, e.events(t))
}
