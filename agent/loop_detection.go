package agent

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/martinemde/agentforge/reasoning"
)

// invocationSignature is the tool name plus a hash of its arguments.
// json.Marshal sorts map keys, so equal arguments hash equally.
func invocationSignature(name string, arguments map[string]interface{}) string {
	raw, err := json.Marshal(arguments)
	if err != nil {
		raw = []byte(fmt.Sprint(arguments))
	}
	h := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%x", name, h[:8])
}

// recentSignatures returns up to count signatures of the latest invocations
// in the transcript, oldest first.
func recentSignatures(transcript []reasoning.Turn, count int) []string {
	var sigs []string
	for i := len(transcript) - 1; i >= 0 && len(sigs) < count; i-- {
		turn := transcript[i]
		if turn.Role != reasoning.RoleAssistant {
			continue
		}
		calls := turn.Invocations()
		for j := len(calls) - 1; j >= 0 && len(sigs) < count; j-- {
			sigs = append(sigs, invocationSignature(calls[j].Name, calls[j].Arguments))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectLoop reports whether the last windowSize tool invocations repeat a
// pattern of length 1, 2, or 3.
func DetectLoop(transcript []reasoning.Turn, windowSize int) bool {
	if windowSize <= 0 {
		return false
	}
	sigs := recentSignatures(transcript, windowSize)
	if len(sigs) < windowSize {
		return false
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 || patternLen >= windowSize {
			continue
		}
		pattern := sigs[:patternLen]
		match := true
		for i := patternLen; i < windowSize && match; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					match = false
					break
				}
			}
		}
		if match {
			return true
		}
	}
	return false
}
