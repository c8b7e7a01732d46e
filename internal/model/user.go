package model

import (
	"time"
)

type UserRole string

const (
	Admin       UserRole = "admin"
	Facilitator UserRole = "facilitator"
	Participant UserRole = "participant"
)

type User struct {
	UUIDBase
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100;unique;not null" json:"email"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Role      UserRole  `gorm:"type:enum('admin','facilitator','participant');default:'participant'" json:"role"`
	Language  string    `gorm:"size:10;default:'en'" json:"language"`
	Disabled  bool      `gorm:"default:false" json:"disabled"`
	LastLogin time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}

// Principal is the acting identity a caller passes to every service
// operation. It is always explicit, never read from ambient state.
type Principal struct {
	ID   string   `json:"id"`
	Role UserRole `json:"role"`
}

func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Role: u.Role}
}
