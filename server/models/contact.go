package models

// Contact is a trusted person who receives SOS alerts for the owning user.
type Contact struct {
	BaseModel
	Name   string `json:"name" validate:"required,person_name"`
	Phone  string `json:"phone" validate:"required,phone_digits" gorm:"not null"`
	Email  string `json:"email,omitempty" validate:"omitempty,email_shape"`
	UserID uint   `json:"user_id" gorm:"not null;index"`
}

func CreateContact(contact *Contact) error {
	return db.Create(contact).Error
}

func ContactsFor(userID uint) ([]Contact, error) {
	contacts := []Contact{}

	err := db.Limit(500).Find(&contacts, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}
