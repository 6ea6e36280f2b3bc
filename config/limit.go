package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultReservationLimit = 5
	limitKey                = "RESERVATION_LIMIT"
	defaultRefreshInterval  = 2 * time.Second
)

// ReservationSettings serves the per-client reservation limit. The value is
// re-read from the env file so operators can change it without a restart.
type ReservationSettings struct {
	EnvFile string
	// Override comes from the process environment. When set it wins over the
	// file, the same way godotenv.Load never replaces an exported variable.
	Override        int
	Default         int
	RefreshInterval time.Duration

	mu        sync.Mutex
	cached    int
	checkedAt time.Time
	now       func() time.Time
}

func NewReservationSettings(envFile string, override int) *ReservationSettings {
	if override < 1 {
		override = 0
	}
	return &ReservationSettings{
		EnvFile:         envFile,
		Override:        override,
		Default:         DefaultReservationLimit,
		RefreshInterval: defaultRefreshInterval,
		now:             time.Now,
	}
}

// ReservationLimit returns the current limit. Lookup order is Override, then
// the env file, then Default. Values below 1 are ignored.
func (s *ReservationSettings) ReservationLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cached > 0 && now.Sub(s.checkedAt) < s.RefreshInterval {
		return s.cached
	}

	s.cached = s.lookup()
	s.checkedAt = now
	return s.cached
}

func (s *ReservationSettings) lookup() int {
	if s.Override > 0 {
		return s.Override
	}
	if s.EnvFile != "" {
		if values, err := godotenv.Read(s.EnvFile); err == nil {
			if n, ok := parseLimit(values[limitKey]); ok {
				return n
			}
		}
	}
	return s.Default
}

// exportedLimit reads RESERVATION_LIMIT from the process environment. Call it
// before godotenv.Load so values copied from the env file are not mistaken
// for an exported one.
func exportedLimit() int {
	n, _ := parseLimit(os.Getenv(limitKey))
	return n
}

func parseLimit(v string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// StaticLimit is a fixed limit.
type StaticLimit int

func (l StaticLimit) ReservationLimit() int { return int(l) }
