// Package queue implements the Question/Interjection Queue (C7): the
// file-based mailbox agents use to ask blocking questions and humans use to
// interrupt a running agent with a steering message.
package queue

import "time"

// QuestionStatus is a Question's lifecycle position.
type QuestionStatus string

const (
	QuestionPending  QuestionStatus = "pending"
	QuestionAnswered QuestionStatus = "answered"
	QuestionDismissed QuestionStatus = "dismissed"
)

// Question is a blocking question an agent raised mid-task via `bloom ask`.
type Question struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"taskId"`
	AgentName string         `json:"agentName"`
	Prompt    string         `json:"prompt"`
	OnYes     string         `json:"onYes,omitempty"`
	OnNo      string         `json:"onNo,omitempty"`
	Status    QuestionStatus `json:"status"`
	Answer    string         `json:"answer,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	AnsweredAt *time.Time    `json:"answeredAt,omitempty"`
}

// InterjectionStatus is an Interjection's lifecycle position.
type InterjectionStatus string

const (
	InterjectionPending   InterjectionStatus = "pending"
	InterjectionResumed   InterjectionStatus = "resumed"
	InterjectionDismissed InterjectionStatus = "dismissed"
)

// Interjection is a human steering message queued for a running agent
// session via `bloom interject`.
type Interjection struct {
	ID        string             `json:"id"`
	AgentName string             `json:"agentName"`
	Message   string             `json:"message"`
	Status    InterjectionStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
	ResolvedAt *time.Time        `json:"resolvedAt,omitempty"`
}
