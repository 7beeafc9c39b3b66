package domain

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	Username     string
	PasswordHash string
	Role         string
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// ChatMessage is one transcript row of the assistant conversation for a
// user within one module.
type ChatMessage struct {
	ID        int64
	Username  string
	Module    string
	Sender    string
	Message   string
	Timestamp time.Time
}
