package memory

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"ts"`
}

// Pair is the only unit stores accept for writes, so a user turn can never
// be persisted without its assistant reply.
type Pair struct {
	User      Turn
	Assistant Turn
}

func NewPair(userText, assistantText string, at time.Time) (Pair, error) {
	if strings.TrimSpace(userText) == "" || strings.TrimSpace(assistantText) == "" {
		return Pair{}, ErrEmptyTurn
	}
	return Pair{
		User:      Turn{Role: RoleUser, Content: userText, At: at},
		Assistant: Turn{Role: RoleAssistant, Content: assistantText, At: at},
	}, nil
}

func (p Pair) Turns() [2]Turn {
	return [2]Turn{p.User, p.Assistant}
}

// completePairs keeps only user turns immediately followed by an assistant
// turn. Anything else (a leading reply cut off by trimming, a dangling
// user turn from a foreign writer) is dropped.
func completePairs(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for i := 0; i+1 < len(turns); {
		if turns[i].Role == RoleUser && turns[i+1].Role == RoleAssistant {
			out = append(out, turns[i], turns[i+1])
			i += 2
			continue
		}
		i++
	}
	return out
}
