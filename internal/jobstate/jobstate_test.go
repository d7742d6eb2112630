package jobstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMarkAndGet(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.Mark("a@x.test", "2026-07-31", "daily_search", true, 30, time.Now()))

	done, err := s.Get("a@x.test", "2026-07-31")
	require.NoError(t, err)
	require.True(t, done["daily_search"])
	require.False(t, done["poll"])
}

func TestMarkIncompleteOnlyBumpsAttempts(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.Mark("a@x.test", "2026-07-31", "poll", false, 0, time.Now()))
	require.NoError(t, s.Mark("a@x.test", "2026-07-31", "poll", false, 0, time.Now()))

	snap, err := s.Snapshot("a@x.test", "2026-07-31")
	require.NoError(t, err)
	require.Equal(t, 2, snap["poll"].Attempts)
	require.False(t, snap["poll"].Completed())

	done, err := s.Get("a@x.test", "2026-07-31")
	require.NoError(t, err)
	require.False(t, done["poll"])
}

func TestMarkCompletedTwiceKeepsFirstWrite(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	first := time.Now()
	require.NoError(t, s.Mark("a@x.test", "2026-07-31", "poll", true, 150, first))
	require.NoError(t, s.Mark("a@x.test", "2026-07-31", "poll", true, 9999, first.Add(time.Minute)))

	snap, err := s.Snapshot("a@x.test", "2026-07-31")
	require.NoError(t, err)
	require.Equal(t, 150, snap["poll"].Points, "first completed write must win, not the later overwrite")
	require.Equal(t, 2, snap["poll"].Attempts)
	require.WithinDuration(t, first, *snap["poll"].CompletedAt, 0)
}

func TestResetClearsDate(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.Mark("a@x.test", "2026-07-31", "daily_search", true, 30, time.Now()))
	require.NoError(t, s.Reset("a@x.test", "2026-07-31"))

	done, err := s.Get("a@x.test", "2026-07-31")
	require.NoError(t, err)
	require.Empty(t, done)
}

func TestResetAllTodayCoversMultipleAccounts(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.Mark("a@x.test", "2026-07-31", "daily_search", true, 30, time.Now()))
	require.NoError(t, s.Mark("b@x.test", "2026-07-31", "daily_search", true, 30, time.Now()))

	require.NoError(t, s.ResetAllToday("2026-07-31", []string{"a@x.test", "b@x.test"}))

	doneA, _ := s.Get("a@x.test", "2026-07-31")
	doneB, _ := s.Get("b@x.test", "2026-07-31")
	require.Empty(t, doneA)
	require.Empty(t, doneB)
}

func TestGetOnUnknownAccountIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	done, err := s.Get("never-seen@x.test", "2026-07-31")
	require.NoError(t, err)
	require.Empty(t, done)
}

func TestPersistsAcrossStoreInstances(t *testing.T) {
	dir := t.TempDir()
	s1, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Mark("a@x.test", "2026-07-31", "daily_search", true, 30, time.Now()))

	s2, err := New(dir)
	require.NoError(t, err)
	done, err := s2.Get("a@x.test", "2026-07-31")
	require.NoError(t, err)
	require.True(t, done["daily_search"])
}
