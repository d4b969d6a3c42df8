package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTopicLength      = 100
	MaxNameLength       = 25
	MaxNominationLength = 100
	MinVotesPerVoter    = 1
	MaxVotesPerVoter    = 5
)

func ValidateTopic(topic string) error {
	return validateText("topic", topic, MaxTopicLength)
}

func ValidateName(name string) error {
	return validateText("name", name, MaxNameLength)
}

func ValidateNominationText(text string) error {
	return validateText("nomination text", text, MaxNominationLength)
}

func ValidateVotesPerVoter(n int) error {
	if n < MinVotesPerVoter || n > MaxVotesPerVoter {
		return fmt.Errorf("%w: votesPerVoter must be between %d and %d", ErrValidation, MinVotesPerVoter, MaxVotesPerVoter)
	}
	return nil
}

func validateText(field, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrValidation, field, max)
	}
	return nil
}
