package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

type entry struct {
	Until time.Time `json:"until"`
}

type TableSuite struct {
	suite.Suite
	dir string
}

func TestTableSuite(t *testing.T) {
	suite.Run(t, new(TableSuite))
}

func (s *TableSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *TableSuite) open() *Table[id.UserID, entry] {
	file, err := NewFile(s.dir, "cooldowns.json")
	s.Require().NoError(err)
	table, err := OpenTable[id.UserID, entry](file)
	s.Require().NoError(err)
	return table
}

func (s *TableSuite) TestRoundTrip() {
	until := time.Date(2026, 5, 1, 10, 30, 0, 123456789, time.UTC)

	s.Run("missing file opens empty", func() {
		s.Equal(0, s.open().Len())
	})

	s.Run("writes survive reopen with nanosecond timestamps", func() {
		table := s.open()
		s.Require().NoError(table.Put(id.UserID(42), entry{Until: until}))

		reopened := s.open()
		got, ok := reopened.Get(id.UserID(42))
		s.Require().True(ok)
		s.True(until.Equal(got.Until))
	})

	s.Run("deletes survive reopen", func() {
		table := s.open()
		removed, err := table.Delete(id.UserID(42))
		s.Require().NoError(err)
		s.True(removed)

		_, ok := s.open().Get(id.UserID(42))
		s.False(ok)
	})

	s.Run("file keys are decimal strings", func() {
		table := s.open()
		s.Require().NoError(table.Put(id.UserID(18446744073709551615), entry{Until: until}))
		raw, err := os.ReadFile(filepath.Join(s.dir, "cooldowns.json"))
		s.Require().NoError(err)
		s.Contains(string(raw), `"18446744073709551615"`)
	})
}

func (s *TableSuite) TestUpdate() {
	table := NewTable[string, int]()

	s.Run("creates when absent", func() {
		v, err := table.Update("a", func(cur int, ok bool) (int, error) {
			s.False(ok)
			return cur + 1, nil
		})
		s.Require().NoError(err)
		s.Equal(1, v)
	})

	s.Run("error aborts without mutating", func() {
		_, err := table.Update("a", func(cur int, ok bool) (int, error) {
			return 99, dErrors.New(dErrors.CodeConflict, "nope")
		})
		s.Require().Error(err)
		got, _ := table.Get("a")
		s.Equal(1, got)
	})
}

func (s *TableSuite) TestDeleteFunc() {
	table := NewTable[string, int]()
	for k, v := range map[string]int{"a": 1, "b": 5, "c": 10} {
		s.Require().NoError(table.Put(k, v))
	}

	removed, err := table.DeleteFunc(func(_ string, v int) bool { return v <= 5 })
	s.Require().NoError(err)
	s.ElementsMatch([]string{"a", "b"}, removed)
	s.Equal(map[string]int{"c": 10}, table.All())
}

func (s *TableSuite) TestPersistenceFailureKeepsMemoryState() {
	table := s.open()
	s.Require().NoError(os.RemoveAll(s.dir))

	err := table.Put(id.UserID(7), entry{Until: time.Now()})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePersistenceFailed))

	_, ok := table.Get(id.UserID(7))
	s.True(ok, "in-memory state stays authoritative")
}

func (s *TableSuite) TestCorruptSnapshotFailsOpen() {
	s.Require().NoError(os.WriteFile(filepath.Join(s.dir, "cooldowns.json"), []byte("{not json"), 0o600))
	file, err := NewFile(s.dir, "cooldowns.json")
	s.Require().NoError(err)
	_, err = OpenTable[id.UserID, entry](file)
	s.Require().Error(err)
}
