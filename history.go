package chatengine

// TruncateHistory truncates a transcript to fit the prompt window sent to
// the assistant, based on token and message limits. It applies the message
// limit first, then the token limit, removing oldest messages as needed.
// The most recent messages are preserved.
func TruncateHistory(history []Message, tokenLimit, messageLimit int) []Message {
	if len(history) == 0 {
		return history
	}

	if messageLimit > 0 && len(history) > messageLimit {
		history = history[len(history)-messageLimit:]
	}

	totalTokens := 0
	for _, msg := range history {
		totalTokens += msg.TokenCount
	}

	for totalTokens > tokenLimit && len(history) > 0 {
		totalTokens -= history[0].TokenCount
		history = history[1:]
	}

	return history
}
