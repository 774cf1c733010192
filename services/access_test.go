package services

import (
	"testing"

	"github.com/Dosada05/ladder-system/models"
)

func TestCanViewerAccessLadder(t *testing.T) {
	ladder := func(visibility models.LadderVisibility, status models.LadderStatus, creatorID int) *models.Ladder {
		return &models.Ladder{
			ID:         1,
			CapsuleID:  10,
			Visibility: visibility,
			Status:     status,
			CreatorID:  creatorID,
		}
	}

	manager := models.Viewer{UserID: 99, Role: models.RoleAdmin, IsMember: true}
	member := models.Viewer{UserID: 11, Role: models.RoleMember, IsMember: true}
	outsider := models.Viewer{UserID: 500, Role: models.RoleNone}

	tests := []struct {
		name          string
		ladder        *models.Ladder
		viewer        models.Viewer
		includeDrafts bool
		want          bool
	}{
		{"nil ladder", nil, manager, true, false},
		{"manager sees private draft", ladder(models.VisibilityPrivate, models.LadderStatusDraft, 99), manager, false, true},
		{"manager sees foreign private", ladder(models.VisibilityPrivate, models.LadderStatusActive, 11), manager, false, true},

		{"public active visible to outsider", ladder(models.VisibilityPublic, models.LadderStatusActive, 99), outsider, false, true},
		{"public archived visible to outsider", ladder(models.VisibilityPublic, models.LadderStatusArchived, 99), outsider, false, true},
		{"public draft hidden by default", ladder(models.VisibilityPublic, models.LadderStatusDraft, 99), outsider, false, false},
		{"public draft visible when drafts included", ladder(models.VisibilityPublic, models.LadderStatusDraft, 99), outsider, true, true},

		{"capsule active visible to member", ladder(models.VisibilityCapsule, models.LadderStatusActive, 99), member, false, true},
		{"capsule archived visible to member", ladder(models.VisibilityCapsule, models.LadderStatusArchived, 99), member, false, true},
		{"capsule draft hidden from member", ladder(models.VisibilityCapsule, models.LadderStatusDraft, 99), member, true, false},
		{"capsule hidden from outsider", ladder(models.VisibilityCapsule, models.LadderStatusActive, 99), outsider, false, false},

		{"private visible to creator", ladder(models.VisibilityPrivate, models.LadderStatusActive, 11), member, false, true},
		{"private hidden from other member", ladder(models.VisibilityPrivate, models.LadderStatusActive, 99), member, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanViewerAccessLadder(tt.ladder, tt.viewer, tt.includeDrafts); got != tt.want {
				t.Errorf("CanViewerAccessLadder() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActorCanTouchChallenges(t *testing.T) {
	members := []models.Member{
		{ID: 1, UserID: iptr(11), Status: models.MemberStatusActive},
		{ID: 2, UserID: iptr(12), Status: models.MemberStatusBanned},
		{ID: 3, UserID: nil, Status: models.MemberStatusActive},
	}

	tests := []struct {
		name    string
		viewer  models.Viewer
		actorID int
		want    bool
	}{
		{"manager always allowed", models.Viewer{UserID: 99, Role: models.RoleModerator}, 99, true},
		{"active linked member allowed", models.Viewer{UserID: 11, Role: models.RoleMember, IsMember: true}, 11, true},
		{"banned member rejected", models.Viewer{UserID: 12, Role: models.RoleMember, IsMember: true}, 12, false},
		{"capsule member without roster entry rejected", models.Viewer{UserID: 13, Role: models.RoleMember, IsMember: true}, 13, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := actorCanTouchChallenges(tt.viewer, members, tt.actorID); got != tt.want {
				t.Errorf("actorCanTouchChallenges() = %v, want %v", got, tt.want)
			}
		})
	}
}
