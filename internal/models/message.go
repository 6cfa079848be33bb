package models

// Message is one anonymous message delivered to a user's inbox. Messages
// carry no sender identity and are hard-deleted when removed.
type Message struct {
	BaseModel

	UserID  string `gorm:"type:uuid;not null;index" json:"-"`
	User    *User  `gorm:"foreignKey:UserID" json:"-"`
	Content string `gorm:"type:text;not null" json:"content"`
}
