package models

import (
	"fmt"

	"github.com/echocheck/echocheck/server/auth"
)

var allFieldsExceptPassword = []string{
	"id",
	"name",
	"email",
	"created_at",
	"updated_at",
}

type User struct {
	BaseModel
	Name         string     `json:"name" validate:"required,person_name"`
	Email        string     `json:"email" validate:"required,email_shape" gorm:"not null;unique"`
	PasswordHash []byte     `json:"-" gorm:"not null"`
	Contacts     []Contact  `json:"contacts,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Trips        []Trip     `json:"trips,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CheckIns     []CheckIn  `json:"check_ins,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	SosEvents    []SosEvent `json:"sos_events,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (user *User) AddContact(contact *Contact) error {
	contact.UserID = user.ID
	return db.Create(contact).Error
}

func (user *User) LoadContacts() error {
	return db.Limit(500).Find(&user.Contacts, "user_id = ?", user.ID).Error
}

// DeleteContact removes the contact only when it's owned by the user;
// a contact owned by someone else looks exactly like a missing one.
func (user *User) DeleteContact(contactID interface{}) error {
	result := db.Where("user_id = ?", user.ID).Delete(&Contact{}, contactID)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func FindUserBy(field string, value interface{}) (*User, error) {
	user := User{}
	err := db.Select(allFieldsExceptPassword).First(&user, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func FindUserPasswordHash(email string) ([]byte, error) {
	user := &User{}
	err := db.Select("PasswordHash").First(user, "email = ?", email).Error
	if err != nil {
		return nil, err
	}

	return user.PasswordHash, nil
}

// CreateUser hashes the given password & persists the new user record.
func CreateUser(user *User, password string) error {
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = passwordHash

	return db.Create(user).Error
}
