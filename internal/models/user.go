package models

// Roles recognised by the task and notification services.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the directory entry for an identity known to the platform.
// Credentials live with the identity provider; only routing data is kept here.
type User struct {
	ID          string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email       string `gorm:"type:varchar(255);index" json:"email"`
	DisplayName string `gorm:"type:varchar(255)" json:"display_name"`
	Role        string `gorm:"type:varchar(16);not null;default:'user';index" json:"role"`

	DeviceTokens []DeviceToken `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
