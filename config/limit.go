package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Limit is a count or byte budget. Unlimited means the budget is never enforced.
type Limit uint64

const (
	// Unlimited disables a count or cost limit.
	Unlimited Limit = math.MaxUint64

	// NoAgeLimit disables an age limit.
	NoAgeLimit time.Duration = math.MaxInt64
)

func (l Limit) IsUnlimited() bool {
	return l == Unlimited
}

func (l Limit) String() string {
	if l.IsUnlimited() {
		return "unlimited"
	}
	return strconv.FormatUint(uint64(l), 10)
}

// UnmarshalYAML accepts a non-negative integer or the literal "unlimited".
func (l *Limit) UnmarshalYAML(value *yaml.Node) error {
	raw := strings.TrimSpace(value.Value)
	if strings.EqualFold(raw, "unlimited") {
		*l = Unlimited
		return nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("parse limit %q: %w", raw, err)
	}
	*l = Limit(n)
	return nil
}

func (l Limit) MarshalYAML() (any, error) {
	if l.IsUnlimited() {
		return "unlimited", nil
	}
	return uint64(l), nil
}
