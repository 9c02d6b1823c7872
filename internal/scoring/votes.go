package scoring

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/utafrali/reviewrank/internal/domain"
)

// DecodeVotes parses a vote encoding of the form "[helpfulYes, totalVotes]".
func DecodeVotes(encoding string) (domain.Votes, error) {
	s := strings.TrimSpace(encoding)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	fields := strings.Split(s, ",")
	if len(fields) != 2 {
		return domain.Votes{}, fmt.Errorf("%w: %q: expected two comma-separated fields", ErrMalformedVoteEncoding, encoding)
	}

	yes, err := parseCount(fields[0])
	if err != nil {
		return domain.Votes{}, fmt.Errorf("%w: %q: helpful count: %v", ErrMalformedVoteEncoding, encoding, err)
	}
	total, err := parseCount(fields[1])
	if err != nil {
		return domain.Votes{}, fmt.Errorf("%w: %q: total count: %v", ErrMalformedVoteEncoding, encoding, err)
	}
	if yes > total {
		return domain.Votes{}, fmt.Errorf("%w: %q: helpful count %d exceeds total %d", ErrMalformedVoteEncoding, encoding, yes, total)
	}

	return domain.Votes{HelpfulYes: yes, TotalVotes: total}, nil
}

// EncodeVotes renders votes in the canonical "[helpfulYes, totalVotes]" form.
func EncodeVotes(v domain.Votes) string {
	return "[" + strconv.Itoa(v.HelpfulYes) + ", " + strconv.Itoa(v.TotalVotes) + "]"
}

func parseCount(field string) (int, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return 0, fmt.Errorf("empty field")
	}
	// Atoi accepts a leading sign; counts are plain digits only.
	if field[0] == '+' || field[0] == '-' {
		return 0, fmt.Errorf("signed value %q", field)
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", field)
	}
	return n, nil
}
