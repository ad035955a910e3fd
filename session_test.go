package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Login(t *testing.T) {
	t.Run("creates one entry per player", func(t *testing.T) {
		s := newSession()

		p, rejoined := s.Login("conn-1", "player-a", "Alice")
		require.False(t, rejoined)
		assert.Equal(t, "player-a", p.ID)
		assert.Equal(t, "conn-1", p.SessionID)
		assert.Equal(t, "Alice", p.Name)
		assert.True(t, p.Enabled)
		assert.Len(t, s.Participants(), 1)
	})

	t.Run("relogin supersedes connection in place", func(t *testing.T) {
		s := newSession()

		s.Login("conn-1", "player-a", "Alice")
		p, rejoined := s.Login("conn-2", "player-a", "Alicia")

		require.True(t, rejoined)
		assert.Equal(t, "conn-2", p.SessionID)
		assert.Equal(t, "Alicia", p.Name)
		assert.Len(t, s.Participants(), 1)
	})

	t.Run("one entry after connect login disconnect login churn", func(t *testing.T) {
		s := newSession()

		s.Login("conn-1", "player-a", "Alice")
		_, ok := s.Disconnect("conn-1")
		require.True(t, ok)
		s.Login("conn-2", "player-a", "Alice")
		s.Login("conn-3", "player-a", "Alice")

		require.Len(t, s.Participants(), 1)
		p, ok := s.Lookup("player-a")
		require.True(t, ok)
		assert.Equal(t, "conn-3", p.SessionID)
	})

	t.Run("rejoin preserves enablement", func(t *testing.T) {
		s := newSession()

		s.Login("conn-1", "player-a", "Alice")
		s.NewRound(ModeBuzzer)
		_, _, ok := s.React("player-a", "")
		require.True(t, ok)

		p, rejoined := s.Login("conn-2", "player-a", "Alice")
		require.True(t, rejoined)
		assert.False(t, p.Enabled, "a reactor stays disabled across reconnects")
	})
}

func TestSession_Disconnect(t *testing.T) {
	t.Run("unknown connection is a silent no-op", func(t *testing.T) {
		s := newSession()

		p, ok := s.Disconnect("never-logged-in")
		assert.False(t, ok)
		assert.Nil(t, p)
	})

	t.Run("stale connection after supersede is a no-op", func(t *testing.T) {
		s := newSession()

		s.Login("conn-1", "player-a", "Alice")
		s.Login("conn-2", "player-a", "Alice")

		_, ok := s.Disconnect("conn-1")
		assert.False(t, ok)
		assert.Len(t, s.Participants(), 1)
	})
}

func TestSession_Lookup(t *testing.T) {
	s := newSession()

	_, ok := s.Lookup("ghost")
	assert.False(t, ok)
}

func TestSession_React(t *testing.T) {
	t.Run("positions are dense and ordered by arrival", func(t *testing.T) {
		s := newSession()
		for i := 0; i < 5; i++ {
			s.Login(fmt.Sprintf("conn-%d", i), fmt.Sprintf("player-%d", i), fmt.Sprintf("Player %d", i))
		}
		s.NewRound(ModeBuzzer)

		for i := 0; i < 5; i++ {
			_, reaction, ok := s.React(fmt.Sprintf("player-%d", i), "")
			require.True(t, ok)
			assert.Equal(t, i+1, reaction.Position)
		}

		reactions := s.Reactions()
		require.Len(t, reactions, 5)
		for i, reaction := range reactions {
			assert.Equal(t, i+1, reaction.Position)
			assert.Equal(t, fmt.Sprintf("player-%d", i), reaction.PlayerID)
		}
	})

	t.Run("repeat reaction is a no-op", func(t *testing.T) {
		s := newSession()
		s.Login("conn-1", "player-a", "Alice")
		s.NewRound(ModeBuzzer)

		_, first, ok := s.React("player-a", "")
		require.True(t, ok)
		assert.Equal(t, 1, first.Position)

		_, _, ok = s.React("player-a", "")
		assert.False(t, ok)
		assert.Len(t, s.Reactions(), 1)
	})

	t.Run("unknown participant is a recoverable miss", func(t *testing.T) {
		s := newSession()
		s.NewRound(ModeBuzzer)

		_, _, ok := s.React("ghost", "")
		assert.False(t, ok)
		assert.Empty(t, s.Reactions())
	})

	t.Run("latecomer may still react in a locked round", func(t *testing.T) {
		s := newSession()
		s.Login("conn-a", "player-a", "Alice")
		s.NewRound(ModeBuzzer)

		_, _, ok := s.React("player-a", "")
		require.True(t, ok)
		require.True(t, s.Locked())

		s.Login("conn-b", "player-b", "Bob")
		_, reaction, ok := s.React("player-b", "")
		require.True(t, ok)
		assert.Equal(t, 2, reaction.Position)
	})

	t.Run("answer text is recorded", func(t *testing.T) {
		s := newSession()
		s.Login("conn-1", "player-a", "Alice")
		s.NewRound(ModeAnswer)

		_, reaction, ok := s.React("player-a", "42")
		require.True(t, ok)
		assert.Equal(t, "42", reaction.Text)
	})
}

func TestSession_Rounds(t *testing.T) {
	t.Run("new round clears ledger and re-enables everyone", func(t *testing.T) {
		s := newSession()
		s.Login("conn-a", "player-a", "Alice")
		s.Login("conn-b", "player-b", "Bob")
		s.NewRound(ModeBuzzer)
		s.React("player-a", "")
		s.React("player-b", "")

		s.NewRound(ModeAnswer)

		assert.Equal(t, ModeAnswer, s.Mode())
		assert.Empty(t, s.Reactions())
		assert.False(t, s.Locked())
		for _, p := range s.Participants() {
			assert.True(t, p.Enabled)
		}
	})

	t.Run("reset keeps the mode", func(t *testing.T) {
		s := newSession()
		s.Login("conn-a", "player-a", "Alice")
		s.NewRound(ModeBuzzer)
		s.React("player-a", "")

		s.Reset()

		assert.Equal(t, ModeBuzzer, s.Mode())
		assert.Empty(t, s.Reactions())
		p, _ := s.Lookup("player-a")
		assert.True(t, p.Enabled)
	})

	t.Run("starts waiting and unlocked", func(t *testing.T) {
		s := newSession()

		assert.Equal(t, ModeWaiting, s.Mode())
		assert.False(t, s.Locked())
	})
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"buzzer", "answer"} {
		mode, ok := parseMode(valid)
		assert.True(t, ok)
		assert.Equal(t, Mode(valid), mode)
	}

	for _, invalid := range []string{"", "waiting", "BUZZER", "lightning"} {
		_, ok := parseMode(invalid)
		assert.False(t, ok, "mode %q should be rejected", invalid)
	}
}
