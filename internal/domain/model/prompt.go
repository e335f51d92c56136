package model

// Prompt is a single text-generation request.
type Prompt struct {
	// System is the instruction given to the model; it may be empty.
	System string
	// User is the user turn of the conversation.
	User string
}
