package services

import (
	"context"

	"github.com/Dosada05/ladder-system/models"
)

// PermissionOracle отвечает на вопрос «кем пользователь является в капсуле».
// Движок лестниц не вычисляет роли сам, он только потребляет ответ.
type PermissionOracle interface {
	ResolveViewer(ctx context.Context, capsuleID, userID int) (models.Viewer, error)
}

// Event — уведомление о событии лестницы, доставляемое подписчикам.
type Event struct {
	Type     string      `json:"type"`
	LadderID int         `json:"ladder_id"`
	Payload  interface{} `json:"payload"`
}

// EventSink доставляет события fire-and-forget: ошибка доставки логируется
// вызывающим сервисом и никогда не влияет на исход операции.
type EventSink interface {
	Publish(ladderID int, event Event) error
}

// CanViewerAccessLadder реализует правила видимости лестницы.
// Менеджеры капсулы видят всё; public видна всем, кроме черновиков;
// capsule требует членства и опубликованной лестницы; private видна
// только создателю и менеджерам. Один и тот же гейт применяется для
// листинга, просмотра и операций с вызовами.
func CanViewerAccessLadder(ladder *models.Ladder, viewer models.Viewer, includeDrafts bool) bool {
	if ladder == nil {
		return false
	}
	if viewer.IsManager() {
		return true
	}

	switch ladder.Visibility {
	case models.VisibilityPublic:
		if ladder.Status == models.LadderStatusDraft {
			return includeDrafts
		}
		return true
	case models.VisibilityCapsule:
		if !viewer.IsMember {
			return false
		}
		return ladder.Status == models.LadderStatusActive || ladder.Status == models.LadderStatusArchived
	case models.VisibilityPrivate:
		return ladder.CreatorID == viewer.UserID
	}
	return false
}

// actorCanTouchChallenges: менеджер капсулы либо активный участник ростера.
func actorCanTouchChallenges(viewer models.Viewer, members []models.Member, actorID int) bool {
	if viewer.IsManager() {
		return true
	}
	for _, m := range members {
		if m.UserID != nil && *m.UserID == actorID && m.Status == models.MemberStatusActive {
			return true
		}
	}
	return false
}
