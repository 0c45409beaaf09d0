// Package user records accounts known to the invoice service
package user

import (
	"riciti/app/models"
)

// User is created lazily the first time an authenticated id is seen.
// Authentication itself lives upstream.
type User struct {
	models.BaseModel

	Email string `gorm:"type:varchar(255);index" json:"email"`
	Name  string `gorm:"type:varchar(200)" json:"name"`
	// Guest session whose invoices were migrated to this user
	GuestID *string `gorm:"type:varchar(36);index" json:"-"`

	models.CommonTimestampsField
}

// TableName pins the table name
func (User) TableName() string {
	return "users"
}
