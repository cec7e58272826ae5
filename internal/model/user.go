package model

import "time"

type User struct {
	TelegramID       int64
	Handle           string
	Username         string
	XP               int
	IsAdmin          bool
	RegistrationDate time.Time
	AuthDate         time.Time
}
