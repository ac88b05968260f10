package search

import (
	"strconv"
	"strings"

	"github.com/HansLove/rebstool-sub000/internal/domain"
)

// Tiered score weights, additive unless a tier short-circuits.
const (
	scoreIDExact = 100000 // numeric identity match, short-circuits

	scoreNameExact        = 50000
	scoreNameWordsOrdered = 30000
	scoreNameWordsAnyOrd  = 20000

	scoreNamePrefixMulti    = 8000
	scoreNamePrefix         = 5000
	scoreNameContainsMulti  = 4000
	scoreNameContains       = 2000
	scoreNamePartialPerWord = 500
	scoreNamePartialCap     = 1500

	scoreIDPrefix    = 7000
	scoreIDContains  = 5000
	scorePhonePrefix = 6000
	scorePhoneSubstr = 4000

	scoreEmailExact    = 25000
	scoreEmailPrefix   = 3000
	scoreEmailContains = 1500
)

// scoreEntity returns the additive score of one entity against the query,
// with the label of the dominant tier. An exact numeric identity match
// returns immediately, skipping name and email scoring.
func scoreEntity(e *domain.ClientEntity, q string, words []string, multiWord, numeric bool) (int, string) {
	total := 0
	best := 0
	matchType := ""

	// The label follows the highest-scoring tier, not the first one
	// evaluated.
	add := func(points int, label string) {
		if points <= 0 {
			return
		}
		total += points
		if points > best {
			best = points
			matchType = label
		}
	}

	if numeric {
		points, label, exact := scoreNumeric(e, q)
		if exact {
			return scoreIDExact, label
		}
		add(points, label)
	}

	points, label := scoreName(e.Name, q, words, multiWord)
	add(points, label)

	// Email heuristics only make sense for single-token queries; a
	// multi-word query is a name query.
	if !multiWord {
		add(scoreEmail(e.Email, q))
	}

	return total, matchType
}

// scoreNumeric scores identity, account-number and phone matches for a
// numeric-dominant query. exact is true for a full id/account match.
func scoreNumeric(e *domain.ClientEntity, q string) (points int, label string, exact bool) {
	digits := digitsOf(q)
	if digits == "" {
		return 0, "", false
	}

	idStr := strconv.FormatInt(e.ClientID, 10)
	acctStr := strconv.FormatInt(e.AccountNumber, 10)

	if digits == idStr {
		return 0, "id_exact", true
	}
	if e.AccountNumber != 0 && digits == acctStr {
		return 0, "account_exact", true
	}

	switch {
	case strings.HasPrefix(idStr, digits) || (e.AccountNumber != 0 && strings.HasPrefix(acctStr, digits)):
		points, label = scoreIDPrefix, "id_prefix"
	case strings.Contains(idStr, digits) || (e.AccountNumber != 0 && strings.Contains(acctStr, digits)):
		points, label = scoreIDContains, "id_contains"
	}

	phone := digitsOf(e.Phone)
	if phone != "" {
		switch {
		case strings.HasPrefix(phone, digits):
			if scorePhonePrefix > points {
				points, label = scorePhonePrefix, "phone_prefix"
			}
		case strings.Contains(phone, digits):
			if scorePhoneSubstr > points {
				points, label = scorePhoneSubstr, "phone_contains"
			}
		}
	}

	return points, label, false
}

// scoreName applies the tiered name heuristics.
func scoreName(name, q string, words []string, multiWord bool) (int, string) {
	nameNorm := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	if nameNorm == "" {
		return 0, ""
	}

	if nameNorm == q {
		return scoreNameExact, "name_exact"
	}

	total := 0
	matchType := ""
	add := func(points int, label string) {
		total += points
		if matchType == "" {
			matchType = label
		}
	}

	if multiWord {
		all, ordered := wordsInName(nameNorm, words)
		if all && ordered {
			add(scoreNameWordsOrdered, "name_words_ordered")
		} else if all {
			add(scoreNameWordsAnyOrd, "name_words")
		}
	}

	if strings.HasPrefix(nameNorm, q) {
		if multiWord {
			add(scoreNamePrefixMulti, "name_prefix")
		} else {
			add(scoreNamePrefix, "name_prefix")
		}
	} else if strings.Contains(nameNorm, q) {
		if multiWord {
			add(scoreNameContainsMulti, "name_contains")
		} else {
			add(scoreNameContains, "name_contains")
		}
	} else {
		overlap := 0
		for _, w := range words {
			if len(w) >= 2 && strings.Contains(nameNorm, w) {
				overlap++
			}
		}
		if overlap > 0 {
			points := overlap * scoreNamePartialPerWord
			if points > scoreNamePartialCap {
				points = scoreNamePartialCap
			}
			add(points, "name_partial")
		}
	}

	return total, matchType
}

// wordsInName reports whether all query words occur in the name, and whether
// they occur in the original query order.
func wordsInName(nameNorm string, words []string) (all, ordered bool) {
	ordered = true
	searchFrom := 0
	for _, w := range words {
		idx := strings.Index(nameNorm, w)
		if idx < 0 {
			return false, false
		}
		orderedIdx := strings.Index(nameNorm[searchFrom:], w)
		if orderedIdx < 0 {
			ordered = false
		} else {
			searchFrom += orderedIdx + len(w)
		}
	}
	return true, ordered
}

func scoreEmail(email, q string) (int, string) {
	emailNorm := strings.ToLower(strings.TrimSpace(email))
	if emailNorm == "" {
		return 0, ""
	}
	switch {
	case emailNorm == q:
		return scoreEmailExact, "email_exact"
	case strings.HasPrefix(emailNorm, q):
		return scoreEmailPrefix, "email_prefix"
	case strings.Contains(emailNorm, q):
		return scoreEmailContains, "email_contains"
	}
	return 0, ""
}

func digitsOf(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
