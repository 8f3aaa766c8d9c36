package handler

import (
	"github.com/microcosm-cc/bluemonday"

	"github.com/d60-Lab/void-feed/internal/service"
)

// AudioSwitch 音效开关
type AudioSwitch interface {
	SetEnabled(on bool)
	Enabled() bool
}

type Handler struct {
	store      *service.FeedStore
	controller *service.FeedController
	syncer     *service.FeedSyncer
	notices    *service.NoticeLog
	tally      *service.DeletionTally
	audio      AudioSwitch
	policy     *bluemonday.Policy
}

func NewHandler(store *service.FeedStore, controller *service.FeedController, syncer *service.FeedSyncer,
	notices *service.NoticeLog, tally *service.DeletionTally, audio AudioSwitch) *Handler {
	return &Handler{
		store:      store,
		controller: controller,
		syncer:     syncer,
		notices:    notices,
		tally:      tally,
		audio:      audio,
		policy:     bluemonday.StrictPolicy(),
	}
}
