package dto

type IncomingMessageRequest struct {
	From string `json:"from" binding:"required,max=100"`
	Body string `json:"body" binding:"required,max=4096"`
}

type IncomingMessageResponse struct {
	Ack bool `json:"ack"`
}

type OutgoingMessagesResponse struct {
	Messages []OutgoingMessageView `json:"messages"`
}

type OutgoingMessageView struct {
	ID       string `json:"id"`
	ChatID   string `json:"chat_id"`
	Body     string `json:"body"`
	QueuedAt string `json:"queued_at"`
}

type AckRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

type AckResponse struct {
	Removed int `json:"removed"`
}
