package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTakeConsumes(t *testing.T) {
	s := NewStore(0)
	s.Set(42, Pending{Kind: EditReport, TargetID: 7})

	p, ok := s.Peek(42)
	assert.True(t, ok)
	assert.Equal(t, EditReport, p.Kind)

	p, ok = s.Take(42)
	assert.True(t, ok)
	assert.Equal(t, int64(7), p.TargetID)
	assert.False(t, p.CreatedAt.IsZero())

	_, ok = s.Take(42)
	assert.False(t, ok)
}

func TestSetReplaces(t *testing.T) {
	s := NewStore(0)
	s.Set(1, Pending{Kind: SubmitReport})
	s.Set(1, Pending{Kind: SubmitTask})

	p, ok := s.Take(1)
	assert.True(t, ok)
	assert.Equal(t, SubmitTask, p.Kind)
}

func TestChatsAreIndependent(t *testing.T) {
	s := NewStore(0)
	s.Set(1, Pending{Kind: SubmitReport})
	s.Set(2, Pending{Kind: EditTask, TargetID: 3})

	assert.True(t, s.Clear(1))
	assert.False(t, s.Clear(1))

	p, ok := s.Peek(2)
	assert.True(t, ok)
	assert.Equal(t, EditTask, p.Kind)
}

func TestExpiry(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	s := NewStore(time.Minute)
	s.now = func() time.Time { return now }

	s.Set(1, Pending{Kind: SubmitReport})
	s.Set(2, Pending{Kind: SubmitTask})
	now = now.Add(2 * time.Minute)
	s.Set(3, Pending{Kind: SubmitTask})

	_, ok := s.Take(1)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore(0)
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			s.Set(chatID, Pending{Kind: SubmitReport})
			s.Peek(chatID)
			s.Take(chatID)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, s.Len())
}
