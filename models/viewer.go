package models

// CapsuleRole представляет роль пользователя внутри капсулы.
type CapsuleRole string

const (
	RoleOwner     CapsuleRole = "owner"
	RoleAdmin     CapsuleRole = "admin"
	RoleModerator CapsuleRole = "moderator"
	RoleMember    CapsuleRole = "member"
	RoleNone      CapsuleRole = "none"
)

// Viewer описывает контекст просматривающего пользователя относительно
// капсулы. Заполняется PermissionOracle, движок его не вычисляет.
type Viewer struct {
	UserID   int         `json:"user_id"`
	Role     CapsuleRole `json:"role"`
	IsOwner  bool        `json:"is_owner"`
	IsMember bool        `json:"is_member"`
}

// IsManager сообщает, имеет ли просматривающий управленческие права
// (owner/admin/moderator видят всё и могут разрешать вызовы).
func (v Viewer) IsManager() bool {
	return v.IsOwner || v.Role == RoleOwner || v.Role == RoleAdmin || v.Role == RoleModerator
}
