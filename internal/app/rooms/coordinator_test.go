package rooms

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/signalroom/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func setup(t *testing.T) (*Coordinator, *fakeClock, *recorder) {
	t.Helper()
	clock := newFakeClock()
	c := NewCoordinator(domain.DefaultRoomSettings(), WithClock(clock.Now))
	rec := &recorder{}
	c.Subscribe(rec.listen)
	return c, clock, rec
}

func participant(sid string, role domain.Role) domain.Participant {
	return domain.Participant{SessionID: domain.SessionID(sid), UserID: domain.UserID("u-" + sid), Role: role}
}

func TestCreateRoom_DefaultsAndOverrides(t *testing.T) {
	c, clock, rec := setup(t)
	ctx := context.Background()

	r, err := c.CreateRoom(ctx, "r1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("r1"), r.ID)
	assert.Equal(t, domain.DefaultRoomSettings(), r.Settings)
	assert.Equal(t, clock.Now(), r.CreatedAt)
	assert.Equal(t, clock.Now(), r.LastActivity)
	assert.Empty(t, r.Participants)

	four := 4
	off := false
	r2, err := c.CreateRoom(ctx, "r2", &domain.SettingsOverride{MaxParticipants: &four, RecordingEnabled: &off})
	require.NoError(t, err)
	assert.Equal(t, 4, r2.Settings.MaxParticipants)
	assert.False(t, r2.Settings.RecordingEnabled)
	assert.True(t, r2.Settings.ScreenShareEnabled)
	assert.Equal(t, 5*time.Minute, r2.Settings.Timeout)

	assert.Equal(t, []EventKind{RoomCreated, RoomCreated}, rec.kinds())
}

func TestCreateRoom_RejectsBadInput(t *testing.T) {
	c, _, _ := setup(t)
	ctx := context.Background()

	_, err := c.CreateRoom(ctx, "", nil)
	require.ErrorIs(t, err, domain.ErrInvalidRoomID)

	zero := 0
	_, err = c.CreateRoom(ctx, "r1", &domain.SettingsOverride{MaxParticipants: &zero})
	require.ErrorIs(t, err, domain.ErrInvalidSettings)
	assert.Equal(t, 0, c.Len())
}

func TestCreateRoom_ConcurrentSameIDExactlyOneWins(t *testing.T) {
	c, _, _ := setup(t)
	ctx := context.Background()

	const n = 16
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.CreateRoom(ctx, "same", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, exists := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, domain.ErrAlreadyExists):
			exists++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, exists)
}

func TestAddParticipant_CapacityScenario(t *testing.T) {
	c, _, rec := setup(t)
	ctx := context.Background()

	_, err := c.CreateRoom(ctx, "r1", nil)
	require.NoError(t, err)

	require.NoError(t, c.AddParticipant(ctx, "r1", participant("s1", domain.RoleHost)))
	require.NoError(t, c.AddParticipant(ctx, "r1", participant("s2", domain.RoleParticipant)))

	err = c.AddParticipant(ctx, "r1", participant("s3", domain.RoleParticipant))
	require.ErrorIs(t, err, domain.ErrRoomFull)

	info, ok, err := c.GetRoomInfo(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, info.Participants, 2)
	assert.Equal(t, domain.RoleHost, info.Participants[0].Role)

	assert.Equal(t, []EventKind{RoomCreated, ParticipantJoined, ParticipantJoined}, rec.kinds())
}

func TestAddParticipant_UnknownRoom(t *testing.T) {
	c, _, rec := setup(t)
	err := c.AddParticipant(context.Background(), "nope", participant("s1", domain.RoleHost))
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, rec.kinds())
}

func TestAddParticipant_RejoinDoesNotConsumeCapacity(t *testing.T) {
	c, _, _ := setup(t)
	ctx := context.Background()
	_, err := c.CreateRoom(ctx, "r1", nil)
	require.NoError(t, err)

	require.NoError(t, c.AddParticipant(ctx, "r1", participant("s1", domain.RoleHost)))
	require.NoError(t, c.AddParticipant(ctx, "r1", participant("s2", domain.RoleParticipant)))
	require.NoError(t, c.AddParticipant(ctx, "r1", participant("s2", domain.RoleParticipant)))

	info, _, err := c.GetRoomInfo(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, info.Participants, 2)
}

func TestAddParticipant_RejoinRefreshesInPlace(t *testing.T) {
	c, clock, rec := setup(t)
	ctx := context.Background()
	_, err := c.CreateRoom(ctx, "r1", nil)
	require.NoError(t, err)
	require.NoError(t, c.AddParticipant(ctx, "r1", participant("s1", domain.RoleParticipant)))
	require.NoError(t, c.UpdateParticipantState(ctx, "r1", "s1", "connected"))
	first, _, err := c.GetRoomInfo(ctx, "r1")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	rec.reset()
	require.NoError(t, c.AddParticipant(ctx, "r1", participant("s1", domain.RoleHost)))

	info, _, err := c.GetRoomInfo(ctx, "r1")
	require.NoError(t, err)
	p, ok := info.Participant("s1")
	require.True(t, ok)
	assert.Equal(t, first.Participants[0].JoinedAt, p.JoinedAt)
	assert.Equal(t, "connected", p.ConnectionState)
	assert.Equal(t, domain.RoleHost, p.Role)
	assert.Equal(t, clock.Now(), info.LastActivity)
	assert.Empty(t, rec.kinds(), "rejoin is not a new join")
}

func TestAddParticipant_CapacityHoldsUnderConcurrency(t *testing.T) {
	c, _, _ := setup(t)
	ctx := context.Background()
	three := 3
	_, err := c.CreateRoom(ctx, "r1", &domain.SettingsOverride{MaxParticipants: &three})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.AddParticipant(ctx, "r1", participant(string(rune('a'+i)), domain.RoleParticipant))
		}(i)
	}
	wg.Wait()

	info, ok, err := c.GetRoomInfo(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, info.Participants, 3)
}

func TestRemoveParticipant_NoopWhenAbsent(t *testing.T) {
	c, _, rec := setup(t)
	ctx := context.Background()

	require.NoError(t, c.RemoveParticipant(ctx, "missing", "s1"))

	_, err := c.CreateRoom(ctx, "r1", nil)
	require.NoError(t, err)
	require.NoError(t, c.AddParticipant(ctx, "r1", participant("s1", domain.RoleHost)))
	rec.reset()

	require.NoError(t, c.RemoveParticipant(ctx, "r1", "ghost"))
	assert.Empty(t, rec.kinds())
}

func TestRemoveParticipant_LastOneClosesRoom(t *testing.T) {
	c, _, rec := setup(t)
	ctx := context.Background()

	_, err := c.CreateRoom(ctx, "r1", nil)
	require.NoError(t, err)
	require.NoError(t, c.AddParticipant(ctx, "r1", participant("s1", domain.RoleHost)))
	require.NoError(t, c.AddParticipant(ctx, "r1", participant("s2", domain.RoleParticipant)))
	rec.reset()

	require.NoError(t, c.RemoveParticipant(ctx, "r1", "s1"))
	_, ok, err := c.GetRoomInfo(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.RemoveParticipant(ctx, "r1", "s2"))
	_, ok, err = c.GetRoomInfo(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []EventKind{ParticipantLeft, ParticipantLeft, RoomClosed}, rec.kinds())

	// a drained room is gone; joining again requires re-creation
	err = c.AddParticipant(ctx, "r1", participant("s3", domain.RoleHost))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateParticipantState(t *testing.T) {
	c, _, rec := setup(t)
	ctx := context.Background()
	_, err := c.CreateRoom(ctx, "r1", nil)
	require.NoError(t, err)
	require.NoError(t, c.AddParticipant(ctx, "r1", participant("s1", domain.RoleHost)))
	rec.reset()

	require.NoError(t, c.UpdateParticipantState(ctx, "r1", "s1", "connected"))
	require.NoError(t, c.UpdateParticipantState(ctx, "r1", "ghost", "connected"))
	require.NoError(t, c.UpdateParticipantState(ctx, "missing", "s1", "connected"))

	info, _, err := c.GetRoomInfo(ctx, "r1")
	require.NoError(t, err)
	p, ok := info.Participant("s1")
	require.True(t, ok)
	assert.Equal(t, "connected", p.ConnectionState)
	assert.Equal(t, []EventKind{ParticipantStateChanged}, rec.kinds())
}

func TestCloseRoom_NotifiesEachParticipant(t *testing.T) {
	c, _, rec := setup(t)
	ctx := context.Background()
	_, err := c.CreateRoom(ctx, "r1", nil)
	require.NoError(t, err)
	require.NoError(t, c.AddParticipant(ctx, "r1", participant("s1", domain.RoleHost)))
	require.NoError(t, c.AddParticipant(ctx, "r1", participant("s2", domain.RoleParticipant)))
	rec.reset()

	require.NoError(t, c.CloseRoom(ctx, "r1"))
	require.NoError(t, c.CloseRoom(ctx, "r1"))

	assert.Equal(t, []EventKind{ParticipantRemoved, ParticipantRemoved, RoomClosed}, rec.kinds())
	assert.Equal(t, 0, c.Len())
}

func TestUpdateRoomMetadata_MergesAndBumpsActivity(t *testing.T) {
	c, clock, rec := setup(t)
	ctx := context.Background()
	_, err := c.CreateRoom(ctx, "r1", nil)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, c.UpdateRoomMetadata(ctx, "r1", map[string]any{"topic": "review", "n": 1}))
	require.NoError(t, c.UpdateRoomMetadata(ctx, "r1", map[string]any{"n": 2}))
	require.NoError(t, c.UpdateRoomMetadata(ctx, "missing", map[string]any{"n": 3}))

	info, _, err := c.GetRoomInfo(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"topic": "review", "n": 2}, info.Metadata)
	assert.Equal(t, clock.Now(), info.LastActivity)
	assert.Equal(t, []EventKind{RoomCreated, RoomMetadataUpdated, RoomMetadataUpdated}, rec.kinds())
}

func TestGetRoomInfo_ReturnsDetachedSnapshot(t *testing.T) {
	c, _, _ := setup(t)
	ctx := context.Background()
	_, err := c.CreateRoom(ctx, "r1", nil)
	require.NoError(t, err)
	require.NoError(t, c.UpdateRoomMetadata(ctx, "r1", map[string]any{"k": "v"}))

	info, _, err := c.GetRoomInfo(ctx, "r1")
	require.NoError(t, err)
	info.Metadata["k"] = "mutated"

	again, _, err := c.GetRoomInfo(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Metadata["k"])
}

func TestEventsArePublishedAfterLockRelease(t *testing.T) {
	c := NewCoordinator(domain.DefaultRoomSettings())
	ctx := context.Background()

	var seen []bool
	c.Subscribe(func(e Event) {
		// a listener may call back into the same room without deadlocking
		_, ok, err := c.GetRoomInfo(ctx, e.RoomID)
		require.NoError(t, err)
		seen = append(seen, ok)
	})

	_, err := c.CreateRoom(ctx, "r1", nil)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, seen)
}

func TestRoomsDoNotBlockEachOther(t *testing.T) {
	c, _, _ := setup(t)
	ctx := context.Background()
	_, err := c.CreateRoom(ctx, "a", nil)
	require.NoError(t, err)
	_, err = c.CreateRoom(ctx, "b", nil)
	require.NoError(t, err)

	// hold room a's critical section open
	release, err := c.locks.Acquire(ctx, lockKey("a"))
	require.NoError(t, err)
	defer release()

	done := make(chan error, 1)
	go func() {
		done <- c.AddParticipant(ctx, "b", participant("s1", domain.RoleHost))
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("room b blocked by room a")
	}

	// room a itself waits, bounded by the caller's context
	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err = c.AddParticipant(tctx, "a", participant("s2", domain.RoleHost))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, domain.IsDomainError(err))
}

func TestList(t *testing.T) {
	c, _, _ := setup(t)
	ctx := context.Background()
	for _, id := range []domain.RoomID{"b", "a"} {
		_, err := c.CreateRoom(ctx, id, nil)
		require.NoError(t, err)
	}
	require.NoError(t, c.AddParticipant(ctx, "a", participant("s1", domain.RoleHost)))

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.RoomID("a"), list[0].ID)
	assert.Equal(t, 1, list[0].Participants)
	assert.Equal(t, 2, list[0].MaxSize)
}
