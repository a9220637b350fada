package usecase

import (
	"regexp"
	"strings"
)

// mentionPattern matches Slack user mention tokens such as <@U123ABC>.
var mentionPattern = regexp.MustCompile(`<@[^>]*?>`)

// SanitizeMentions removes every user mention token from text and trims the
// surrounding whitespace. Whitespace between words is left untouched.
//
// Removal repeats until no token remains, so a token spliced together by a
// previous removal ("<<@U1>@U2>") is stripped too and the result is stable
// under a second call.
func SanitizeMentions(text string) string {
	for mentionPattern.MatchString(text) {
		text = mentionPattern.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// mentionToken returns the literal token that mentions userID.
func mentionToken(userID string) string {
	return "<@" + userID + ">"
}
