package bridge

import (
	"sync"

	"github.com/Iron-Ham/screeps-adapter/internal/event"
	"github.com/Iron-Ham/screeps-adapter/internal/logging"
	"github.com/Iron-Ham/screeps-adapter/internal/version"
)

// UpgradePolicy decides whether candidate replaces the installed version.
type UpgradePolicy func(installed, candidate string) bool

// HigherVersionWins replaces the installed bridge only with a strictly newer
// one. An installed version that can not be parsed is always replaced and an
// unparsable candidate never replaces anything.
func HigherVersionWins(installed, candidate string) bool {
	if !version.Valid(installed) {
		return true
	}
	cmp, err := version.Compare(candidate, installed)
	if err != nil {
		return false
	}
	return cmp > 0
}

// Slot holds the one bridge an application uses. Feature code that brings its
// own bridge installs it through the slot instead of replacing a shared one.
type Slot struct {
	policy UpgradePolicy
	bus    *event.Bus
	logger *logging.Logger

	mu        sync.Mutex
	installed *Bridge
}

// NewSlot creates an empty slot. A nil policy selects HigherVersionWins.
func NewSlot(policy UpgradePolicy, bus *event.Bus, logger *logging.Logger) *Slot {
	if policy == nil {
		policy = HigherVersionWins
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Slot{policy: policy, bus: bus, logger: logger}
}

// Install offers candidate to the slot and returns the bridge to use.
//
// An empty slot and an unversioned installed bridge are always replaced.
// Otherwise the policy decides. The losing bridge is closed: the replaced one
// when the candidate wins, the candidate itself when it does not. Installing
// the installed bridge again, or nil, changes nothing.
func (s *Slot) Install(candidate *Bridge) (current *Bridge, replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.installed
	if candidate == nil || candidate == old {
		return old, false
	}
	if old != nil && old.Version() != "" && !s.policy(old.Version(), candidate.Version()) {
		s.logger.Info("bridge already installed",
			"installed", old.Version(), "candidate", candidate.Version())
		s.publish(event.NewBridgeInstalledEvent(candidate.Version(), "", true))
		_ = candidate.Close()
		return old, false
	}

	s.installed = candidate
	previous := ""
	if old != nil {
		previous = old.Version()
		_ = old.Close()
	}
	s.logger.Info("bridge installed", "version", candidate.Version(), "replaced", previous)
	s.publish(event.NewBridgeInstalledEvent(candidate.Version(), previous, false))
	return candidate, old != nil
}

// Current returns the installed bridge, or nil.
func (s *Slot) Current() *Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installed
}

// Close closes the installed bridge and empties the slot.
func (s *Slot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.installed == nil {
		return nil
	}
	err := s.installed.Close()
	s.installed = nil
	return err
}

func (s *Slot) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
