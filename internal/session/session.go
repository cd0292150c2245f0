// Package session holds the connection-scoped mutable state a handler
// reads and replaces. Per spec.md §9's design note, this is a struct of
// named fields rather than the reference's dynamic tagged map: unknown
// extensions get typed optional sub-structs, not free-form map entries.
package session

// Quest is one character-scoped quest's tracked state.
type Quest struct {
	ID       uint32
	Progress uint32
	Stage    uint16
}

// Character identifies the player bound to a connection once selected.
// Its zero value (ID == 0) means "no character bound yet".
type Character struct {
	ID   uint64
	Name string
}

// Achievement is the optional handler-scoped achievement worker handle.
// Re-architected per spec.md §9 as a typed optional field instead of a
// free-form session map entry; nil means no worker has been started.
type Achievement struct {
	Stop func()
}

// Session is the per-connection scratch state a handler may read and
// return an updated copy of. The zero value is valid: a freshly accepted
// connection with no character selected and no dirty quests.
type Session struct {
	Character         *Character
	ActiveQuests      map[uint32]*Quest
	CompletedQuestIDs []uint32
	QuestDirty        bool
	Achievement       *Achievement

	// RemoteAddr is the connection's client address, set once at accept
	// time. Handlers use it as a rate-limit key (spec.md §4.5); it is
	// never mutated after New.
	RemoteAddr string
}

// New returns an empty session ready for a freshly accepted connection.
func New() Session {
	return Session{ActiveQuests: make(map[uint32]*Quest)}
}

// Clone returns a deep-enough copy suitable for the "handler receives by
// value, returns a new value" ownership rule in spec.md §5: the quest map
// and completed-ID slice are copied so the returned Session never aliases
// the one it replaces.
func (s Session) Clone() Session {
	out := s
	out.ActiveQuests = make(map[uint32]*Quest, len(s.ActiveQuests))
	for id, q := range s.ActiveQuests {
		qc := *q
		out.ActiveQuests[id] = &qc
	}
	out.CompletedQuestIDs = append([]uint32(nil), s.CompletedQuestIDs...)
	return out
}

// MarkDirty sets QuestDirty. Handlers call this whenever they mutate an
// ActiveQuests entry (spec.md §3 invariant 3).
func (s *Session) MarkDirty() {
	s.QuestDirty = true
}

// CharacterID returns the bound character's ID, or 0 if none is bound.
func (s Session) CharacterID() uint64 {
	if s.Character == nil {
		return 0
	}
	return s.Character.ID
}
