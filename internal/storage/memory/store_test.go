package memory

import (
	"context"
	"testing"
	"time"

	"github.com/pawsafe/internal/storage"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = New()
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *StoreSuite) TestCreateGetDelete() {
	s.Require().NoError(s.store.Create(s.ctx, "blocks", "a_b", map[string]any{"id": "a_b", "blockerId": "a"}))
	s.ErrorIs(s.store.Create(s.ctx, "blocks", "a_b", map[string]any{"id": "a_b"}), storage.ErrExists)

	doc, err := s.store.Get(s.ctx, "blocks", "a_b")
	s.Require().NoError(err)
	s.Equal("a", doc["blockerId"])

	doc["blockerId"] = "mutated"
	again, err := s.store.Get(s.ctx, "blocks", "a_b")
	s.Require().NoError(err)
	s.Equal("a", again["blockerId"])

	s.Require().NoError(s.store.Delete(s.ctx, "blocks", "a_b"))
	s.ErrorIs(s.store.Delete(s.ctx, "blocks", "a_b"), storage.ErrNotFound)
	_, err = s.store.Get(s.ctx, "blocks", "a_b")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *StoreSuite) TestUpdate() {
	s.ErrorIs(s.store.Update(s.ctx, "direct_chats", "nope", storage.Set("x", 1)), storage.ErrNotFound)

	s.Require().NoError(s.store.Set(s.ctx, "direct_chats", "t", map[string]any{"id": "t", "readBy": []string{"a"}}))
	s.Require().NoError(s.store.Update(s.ctx, "direct_chats", "t",
		storage.ArrayUnion("readBy", "b"),
		storage.Set("lastMessagePreview", "hi"),
	))
	doc, err := s.store.Get(s.ctx, "direct_chats", "t")
	s.Require().NoError(err)
	s.Equal([]any{"a", "b"}, doc["readBy"])
	s.Equal("hi", doc["lastMessagePreview"])
}

func (s *StoreSuite) TestUpdateIf() {
	notDeleted := []storage.Filter{storage.Eq("deleted", false)}
	s.ErrorIs(s.store.UpdateIf(s.ctx, "direct_messages", "nope", notDeleted, storage.Set("text", "x")), storage.ErrNotFound)

	s.Require().NoError(s.store.Set(s.ctx, "direct_messages", "m", map[string]any{"id": "m", "text": "hi", "deleted": false}))
	s.Require().NoError(s.store.UpdateIf(s.ctx, "direct_messages", "m", notDeleted, storage.Set("text", "edited")))
	s.Require().NoError(s.store.Update(s.ctx, "direct_messages", "m", storage.Set("deleted", true), storage.Set("text", nil)))

	s.ErrorIs(s.store.UpdateIf(s.ctx, "direct_messages", "m", notDeleted, storage.Set("text", "back")), storage.ErrConditionFailed)
	doc, err := s.store.Get(s.ctx, "direct_messages", "m")
	s.Require().NoError(err)
	s.Nil(doc["text"])
}

func (s *StoreSuite) TestQuery() {
	for _, d := range []map[string]any{
		{"id": "1", "participants": []string{"a", "b"}},
		{"id": "2", "participants": []string{"b", "c"}},
		{"id": "3", "participants": []string{"a", "c"}},
	} {
		s.Require().NoError(s.store.Set(s.ctx, "report_chats", d["id"].(string), d))
	}
	docs, err := s.store.Query(s.ctx, "report_chats", storage.ArrayContains("participants", "a"))
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.Equal("1", docs[0].ID())
	s.Equal("3", docs[1].ID())
}

func (s *StoreSuite) TestSubscribeSnapshotAndChanges() {
	s.Require().NoError(s.store.Set(s.ctx, "direct_messages", "m1", map[string]any{"id": "m1", "chatId": "c"}))
	s.Require().NoError(s.store.Set(s.ctx, "direct_messages", "x1", map[string]any{"id": "x1", "chatId": "other"}))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	ch, err := s.store.Subscribe(ctx, "direct_messages", storage.Eq("chatId", "c"))
	s.Require().NoError(err)

	s.expect(ch, storage.ChangeAdded, "m1")

	s.Require().NoError(s.store.Set(s.ctx, "direct_messages", "m2", map[string]any{"id": "m2", "chatId": "c"}))
	s.expect(ch, storage.ChangeAdded, "m2")

	s.Require().NoError(s.store.Update(s.ctx, "direct_messages", "m1", storage.Set("edited", true)))
	s.expect(ch, storage.ChangeModified, "m1")

	s.Require().NoError(s.store.Set(s.ctx, "direct_messages", "x2", map[string]any{"id": "x2", "chatId": "other"}))
	s.Require().NoError(s.store.Delete(s.ctx, "direct_messages", "m2"))
	s.expect(ch, storage.ChangeRemoved, "m2")
}

func (s *StoreSuite) TestCancelClosesChannel() {
	ctx, cancel := context.WithCancel(s.ctx)
	ch, err := s.store.Subscribe(ctx, "notifications", storage.Eq("userId", "u"))
	s.Require().NoError(err)
	cancel()
	select {
	case _, ok := <-ch:
		s.False(ok)
	case <-time.After(time.Second):
		s.Fail("subscription channel was not closed")
	}
}

func (s *StoreSuite) expect(ch <-chan storage.Change, typ storage.ChangeType, id string) {
	select {
	case c, ok := <-ch:
		s.Require().True(ok)
		s.Equal(typ, c.Type)
		s.Equal(id, c.ID)
	case <-time.After(time.Second):
		s.Failf("timeout", "waiting for %s %s", typ, id)
	}
}

func TestStoreSuite(t *testing.T) {
	defer goleak.VerifyNone(t)
	suite.Run(t, new(StoreSuite))
}
