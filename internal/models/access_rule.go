package models

type Permission string

const (
	PermissionHidden    Permission = "hidden"
	PermissionReadOnly  Permission = "ro"
	PermissionReadWrite Permission = "rw"
)

func ValidPermission(p string) bool {
	switch Permission(p) {
	case PermissionHidden, PermissionReadOnly, PermissionReadWrite:
		return true
	default:
		return false
	}
}

// AccessRule overrides the default rw permission for a path. A recursive
// rule covers the path and all descendants; a non-recursive rule matches
// its exact path only.
type AccessRule struct {
	BaseModel
	Path        string     `json:"path" gorm:"type:text;not null;uniqueIndex"`
	Permissions Permission `json:"permissions" gorm:"type:varchar(10);not null"`
	Recursive   bool       `json:"recursive" gorm:"not null;default:false"`
}

func (AccessRule) TableName() string {
	return "access_rules"
}
