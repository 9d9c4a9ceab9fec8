package models

// User represents the user model in the database
type User struct {
	Base
	Email         string         `gorm:"uniqueIndex;not null" json:"email"`
	Password      string         `gorm:"not null" json:"-"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	PayDayOfMonth int            `gorm:"not null;default:1" json:"pay_day_of_month"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	BudgetPeriods []BudgetPeriod `gorm:"foreignKey:UserID" json:"-"`
}
