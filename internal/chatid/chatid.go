// Package chatid строит детерминированные ключи переписок.
// Ключ не зависит от того, кто из участников открыл чат первым.
package chatid

import (
	"errors"
	"strings"
)

// ErrMissingParticipant — не указан участник (или объявление); чат открыть нельзя.
var ErrMissingParticipant = errors.New("chatid: missing participant")

const (
	directPrefix = "direct_"
	reportPrefix = "report_"
)

// Direct возвращает "direct_{min}_{max}".
func Direct(userA, userB string) (string, error) {
	lo, hi, err := ordered(userA, userB)
	if err != nil {
		return "", err
	}
	return directPrefix + lo + "_" + hi, nil
}

// Report возвращает "report_{reportId}_{min}_{max}".
func Report(reportID, userA, userB string) (string, error) {
	if strings.TrimSpace(reportID) == "" {
		return "", ErrMissingParticipant
	}
	lo, hi, err := ordered(userA, userB)
	if err != nil {
		return "", err
	}
	return reportPrefix + reportID + "_" + lo + "_" + hi, nil
}

func ordered(a, b string) (string, string, error) {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return "", "", ErrMissingParticipant
	}
	if b < a {
		return b, a, nil
	}
	return a, b, nil
}
