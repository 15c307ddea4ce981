package models

import (
	"time"

	"github.com/google/uuid"
)

const RoleAdmin = "admin"

type User struct {
	BaseModel
	Email         string       `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	EmailVerified bool         `json:"emailVerified" gorm:"not null;default:false"`
	Username      *string      `json:"username,omitempty" gorm:"type:varchar(100)"`
	DisplayName   *string      `json:"displayName,omitempty" gorm:"type:varchar(255)"`
	AvatarURL     *string      `json:"avatarURL,omitempty" gorm:"type:text"`
	Roles         []UserRole   `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	AuthMethods   []AuthMethod `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// UserRole is one role assignment. Roles form an unordered set per user.
type UserRole struct {
	UserID uuid.UUID `json:"userID" gorm:"type:uuid;primaryKey"`
	Role   string    `json:"role" gorm:"type:varchar(50);primaryKey"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Role)
	}
	return names
}

func (u *User) IsAdmin() bool {
	for _, r := range u.Roles {
		if r.Role == RoleAdmin {
			return true
		}
	}
	return false
}

// ClientUser is the projection every route returns; it never carries a
// password hash or raw auth-method rows.
type ClientUser struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"emailVerified"`
	Username      *string    `json:"username"`
	DisplayName   *string    `json:"displayName"`
	AvatarURL     *string    `json:"avatarURL,omitempty"`
	Roles         []string   `json:"roles"`
	CreatedAt     *time.Time `json:"createdAt"`
	UpdatedAt     *time.Time `json:"updatedAt"`
}

// ShareableUser is the slim projection used by share recipient pickers.
type ShareableUser struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Username    *string `json:"username"`
	DisplayName *string `json:"displayName"`
}

// ToClientUser is the single row-to-projection mapping applied at the
// storage boundary; call sites never rename fields themselves.
func ToClientUser(u *User) *ClientUser {
	if u == nil {
		return nil
	}
	created := u.CreatedAt
	updated := u.UpdatedAt
	return &ClientUser{
		ID:            u.ID.String(),
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Username:      u.Username,
		DisplayName:   u.DisplayName,
		AvatarURL:     u.AvatarURL,
		Roles:         u.RoleNames(),
		CreatedAt:     &created,
		UpdatedAt:     &updated,
	}
}

func ToShareableUser(u *User) *ShareableUser {
	if u == nil {
		return nil
	}
	return &ShareableUser{
		ID:          u.ID.String(),
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
	}
}

func (c *ClientUser) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
