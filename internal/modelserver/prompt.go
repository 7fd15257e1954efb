package modelserver

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	// Set the offline loader for tiktoken to avoid network requests
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

const summaryPromptTemplate = `Instructions:
You are a content summariser used to help summarise the main content of study materials in point form.
Your task is to provide a clear yet short summary of the Transcript without adding any information that is not explicitly in there or repeating any of the Instructions.

Transcript:
%s

Summary:
`

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
		if encErr != nil {
			encErr = fmt.Errorf("failed to get tiktoken encoding: %w", encErr)
		}
	})
	return enc, encErr
}

// CountTokens approximates the model token count of text.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	e, err := encoding()
	if err != nil {
		// roughly four bytes per token
		return (len(text) + 3) / 4
	}
	return len(e.Encode(text, nil, nil))
}

// TruncateTokens returns the longest prefix of text that fits in budget
// tokens. A non-positive budget disables truncation.
func TruncateTokens(text string, budget int) string {
	if budget <= 0 || text == "" {
		return text
	}
	e, err := encoding()
	if err != nil {
		if limit := budget * 4; len(text) > limit {
			return strings.ToValidUTF8(text[:limit], "")
		}
		return text
	}
	toks := e.Encode(text, nil, nil)
	if len(toks) <= budget {
		return text
	}
	return strings.ToValidUTF8(e.Decode(toks[:budget]), "")
}

// SummaryPrompt builds the point-form summary prompt for a transcript or
// document, keeping the text within budget tokens.
func SummaryPrompt(text string, budget int) string {
	return fmt.Sprintf(summaryPromptTemplate, TruncateTokens(strings.TrimSpace(text), budget))
}
