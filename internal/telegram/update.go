package telegram

// Update is an incoming webhook payload. Only text messages matter to the
// relay; everything else decodes to a nil Message and is ignored upstream.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
}

// User is the sending account.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat is the conversation the message arrived in.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}
