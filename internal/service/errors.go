package service

import (
	"errors"

	"github.com/d60-Lab/living-legends/internal/repository"
)

var (
	ErrStoryNotFound      = errors.New("story not found")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrStoryLocked        = errors.New("post locked")
	ErrEmptyComment       = errors.New("comment is empty")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUserExists         = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrTextTooLong        = errors.New("text too long")
	// ErrDuplicateTrigger 同一触发已经排过任务，后来者为空操作
	ErrDuplicateTrigger = errors.New("duplicate trigger")
)

// silentAbort 任务中途实体消失或故事已封帖，直接结束不重试
func silentAbort(err error) bool {
	return errors.Is(err, ErrStoryNotFound) ||
		errors.Is(err, ErrCommentNotFound) ||
		errors.Is(err, ErrStoryLocked) ||
		errors.Is(err, ErrDuplicateTrigger)
}

func storyErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrStoryNotFound
	}
	return err
}

func commentErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrCommentNotFound
	}
	return err
}
