package repository

import (
	"context"
	"testing"
	"time"

	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/storage"
	"github.com/pawsafe/internal/storage/memory"
	"github.com/stretchr/testify/suite"
)

type RepositorySuite struct {
	suite.Suite
	ctx      context.Context
	store    *memory.Store
	blocks   *BlockRepository
	friends  *FriendRepository
	users    *UserRepository
	reports  *ReportRepository
	messages *MessageRepository
	threads  *ThreadRepository
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.blocks = NewBlockRepository(s.store)
	s.friends = NewFriendRepository(s.store)
	s.users = NewUserRepository(s.store)
	s.reports = NewReportRepository(s.store)
	s.messages = NewMessageRepository(s.store)
	s.threads = NewThreadRepository(s.store, s.messages, s.users, s.reports)
}

func (s *RepositorySuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *RepositorySuite) exists(coll, id string) bool {
	_, err := s.store.Get(s.ctx, coll, id)
	if err == nil {
		return true
	}
	s.Require().ErrorIs(err, storage.ErrNotFound)
	return false
}

func (s *RepositorySuite) TestBlockGating() {
	ok, err := s.blocks.CanSend(s.ctx, "a", "b")
	s.Require().NoError(err)
	s.True(ok)

	s.Require().NoError(s.blocks.Block(s.ctx, "b", "a"))
	ok, err = s.blocks.CanSend(s.ctx, "a", "b")
	s.Require().NoError(err)
	s.False(ok)
	ok, err = s.blocks.CanSend(s.ctx, "b", "a")
	s.Require().NoError(err)
	s.False(ok, "blocker cannot write either")

	blocked, err := s.blocks.IsBlocked(s.ctx, "b", "a")
	s.Require().NoError(err)
	s.True(blocked)
	blocked, err = s.blocks.IsBlocked(s.ctx, "a", "b")
	s.Require().NoError(err)
	s.False(blocked)

	s.Require().NoError(s.blocks.Unblock(s.ctx, "b", "a"))
	s.Require().NoError(s.blocks.Unblock(s.ctx, "b", "a"))
	ok, err = s.blocks.CanSend(s.ctx, "a", "b")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *RepositorySuite) TestBlockCascade() {
	s.Require().NoError(s.friends.Accept(s.ctx, "A", "B"))
	_, err := s.friends.CreateRequest(s.ctx, "A", "B")
	s.Require().NoError(err)
	_, err = s.friends.CreateRequest(s.ctx, "B", "A")
	s.Require().NoError(err)
	s.Require().True(s.exists(CollFriends, "A_B"))
	s.Require().True(s.exists(CollFriends, "B_A"))

	s.Require().NoError(s.blocks.Block(s.ctx, "A", "B"))
	s.Require().NoError(s.blocks.Block(s.ctx, "A", "B"), "block is idempotent")

	s.True(s.exists(CollBlocks, "A_B"))
	s.False(s.exists(CollFriends, "A_B"))
	s.False(s.exists(CollFriends, "B_A"))
	s.False(s.exists(CollFriendRequests, "A_B"))
	s.False(s.exists(CollFriendRequests, "B_A"))

	list, err := s.blocks.ListBlocked(s.ctx, "A")
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("B", list[0].BlockedID)
}

func (s *RepositorySuite) TestEnsureIsSymmetric() {
	id1, err := s.threads.Ensure(s.ctx, model.ChatDirect, "b", "a", "", "b")
	s.Require().NoError(err)
	id2, err := s.threads.Ensure(s.ctx, model.ChatDirect, "a", "b", "", "a")
	s.Require().NoError(err)
	s.Equal("direct_a_b", id1)
	s.Equal(id1, id2)

	t, err := s.threads.GetByID(s.ctx, model.ChatDirect, id1)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b"}, t.Participants)
	s.Equal([]string{"b"}, t.ReadBy, "second Ensure does not touch the existing thread")

	_, err = s.threads.Ensure(s.ctx, model.ChatDirect, "a", "", "", "a")
	s.Error(err)
}

func (s *RepositorySuite) TestUnreadPropagation() {
	id, err := s.threads.Ensure(s.ctx, model.ChatDirect, "a", "b", "", "a")
	s.Require().NoError(err)
	s.Require().NoError(s.threads.MarkRead(s.ctx, model.ChatDirect, id, "b"))
	s.Require().NoError(s.threads.MarkRead(s.ctx, model.ChatDirect, id, "b"))

	t, err := s.threads.GetByID(s.ctx, model.ChatDirect, id)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"a", "b"}, t.ReadBy)

	s.Require().NoError(s.threads.PostMessageMetadata(s.ctx, model.ChatDirect, id, "a", "hello"))
	t, err = s.threads.GetByID(s.ctx, model.ChatDirect, id)
	s.Require().NoError(err)
	s.Equal([]string{"a"}, t.ReadBy)
	s.Equal("hello", t.LastMessagePreview)

	n, err := s.threads.UnreadCount(s.ctx, "b")
	s.Require().NoError(err)
	s.Equal(1, n)
	n, err = s.threads.UnreadCount(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(0, n)
}

func (s *RepositorySuite) TestSoftDeleteThenRestore() {
	id, err := s.threads.Ensure(s.ctx, model.ChatDirect, "A", "B", "", "A")
	s.Require().NoError(err)
	msg := &model.Message{ChatID: id, Kind: model.ChatDirect, SenderID: "A", Text: ptr("hi")}
	s.Require().NoError(s.messages.Create(s.ctx, msg))

	s.Require().NoError(s.threads.SoftDelete(s.ctx, model.ChatDirect, id, "A"))
	items, err := s.threads.ListForUser(s.ctx, "A", model.ViewActive)
	s.Require().NoError(err)
	s.Empty(items)
	msgs, err := s.messages.ListByChat(s.ctx, model.ChatDirect, id, "A")
	s.Require().NoError(err)
	s.Empty(msgs)
	msgs, err = s.messages.ListByChat(s.ctx, model.ChatDirect, id, "B")
	s.Require().NoError(err)
	s.Len(msgs, 1)

	s.Require().NoError(s.threads.PostMessageMetadata(s.ctx, model.ChatDirect, id, "B", "back"))
	t, err := s.threads.GetByID(s.ctx, model.ChatDirect, id)
	s.Require().NoError(err)
	s.Empty(t.DeletedBy)
	s.Equal([]string{"B"}, t.ReadBy)
}

func (s *RepositorySuite) TestSenderDeletionSurvivesOwnSend() {
	id, err := s.threads.Ensure(s.ctx, model.ChatDirect, "A", "B", "", "A")
	s.Require().NoError(err)
	s.Require().NoError(s.threads.SoftDelete(s.ctx, model.ChatDirect, id, "A"))
	s.Require().NoError(s.threads.PostMessageMetadata(s.ctx, model.ChatDirect, id, "A", "again"))

	t, err := s.threads.GetByID(s.ctx, model.ChatDirect, id)
	s.Require().NoError(err)
	s.Equal([]string{"A"}, t.DeletedBy)
}

func (s *RepositorySuite) TestListForUserViews() {
	s.Require().NoError(s.users.Upsert(s.ctx, &model.User{ID: "b", Name: "bob", DisplayName: "Bob"}))
	rep := &model.Report{UserID: "b", Type: model.ReportLost}
	s.Require().NoError(s.reports.Create(s.ctx, rep))

	direct, err := s.threads.Ensure(s.ctx, model.ChatDirect, "a", "b", "", "a")
	s.Require().NoError(err)
	report, err := s.threads.Ensure(s.ctx, model.ChatReport, "a", "b", rep.ID, "b")
	s.Require().NoError(err)
	s.Require().NoError(s.threads.PostMessageMetadata(s.ctx, model.ChatReport, report, "b", "seen it"))

	items, err := s.threads.ListForUser(s.ctx, "a", model.ViewActive)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.Equal(report, items[0].ID, "newest first")
	s.Equal(model.ReportOpen, items[0].ReportStatus)
	s.True(items[0].Unread)
	s.Equal("Bob", items[0].OtherUser.Name)
	s.False(items[1].Unread)

	s.Require().NoError(s.threads.Archive(s.ctx, model.ChatDirect, direct, "a"))
	items, err = s.threads.ListForUser(s.ctx, "a", model.ViewActive)
	s.Require().NoError(err)
	s.Len(items, 1)
	archived, err := s.threads.ListForUser(s.ctx, "a", model.ViewArchived)
	s.Require().NoError(err)
	s.Require().Len(archived, 1)
	s.Equal(direct, archived[0].ID)
	s.NotNil(archived[0].ArchivedAt)

	s.Require().NoError(s.threads.Unarchive(s.ctx, model.ChatDirect, direct))
	t, err := s.threads.GetByID(s.ctx, model.ChatDirect, direct)
	s.Require().NoError(err)
	s.False(t.Archived)
	s.Nil(t.ArchivedAt)
	s.Empty(t.ArchivedBy)
}

func (s *RepositorySuite) TestDirectMessageSoftDelete() {
	msg := &model.Message{ChatID: "direct_a_b", Kind: model.ChatDirect, SenderID: "a", Text: ptr("secret"), Images: []string{"x.jpg"}}
	s.Require().NoError(s.messages.Create(s.ctx, msg))
	s.NotEmpty(msg.ID)

	s.Require().NoError(s.messages.SoftDelete(s.ctx, msg.ID, "a"))
	got, err := s.messages.GetByID(s.ctx, model.ChatDirect, msg.ID)
	s.Require().NoError(err)
	s.True(got.Deleted)
	s.Nil(got.Text)
	s.Empty(got.Images)
	s.Equal("a", got.DeletedBy)
	s.NotNil(got.DeletedAt)
}

func (s *RepositorySuite) TestEditAfterSoftDeleteKeepsTextCleared() {
	msg := &model.Message{ChatID: "direct_a_b", Kind: model.ChatDirect, SenderID: "a", Text: ptr("secret")}
	s.Require().NoError(s.messages.Create(s.ctx, msg))
	s.Require().NoError(s.messages.Edit(s.ctx, model.ChatDirect, msg.ID, "fixed"))

	s.Require().NoError(s.messages.SoftDelete(s.ctx, msg.ID, "a"))
	s.ErrorIs(s.messages.Edit(s.ctx, model.ChatDirect, msg.ID, "back again"), ErrMessageDeleted)

	got, err := s.messages.GetByID(s.ctx, model.ChatDirect, msg.ID)
	s.Require().NoError(err)
	s.True(got.Deleted)
	s.Nil(got.Text)

	s.ErrorIs(s.messages.Edit(s.ctx, model.ChatDirect, "missing", "x"), ErrNotFound)
	s.ErrorIs(s.messages.Edit(s.ctx, model.ChatReport, "missing", "x"), ErrNotFound)
}

func (s *RepositorySuite) TestReportMessageHardDeleteAndHide() {
	first := &model.Message{ChatID: "report_r_a_b", Kind: model.ChatReport, SenderID: "a", Text: ptr("one")}
	second := &model.Message{ChatID: "report_r_a_b", Kind: model.ChatReport, SenderID: "b", Text: ptr("two")}
	s.Require().NoError(s.messages.Create(s.ctx, first))
	s.Require().NoError(s.messages.Create(s.ctx, second))

	s.Require().NoError(s.messages.HideForUser(s.ctx, model.ChatReport, second.ID, "a"))
	doc, err := s.store.Get(s.ctx, CollReportMessages, second.ID)
	s.Require().NoError(err)
	s.Equal([]any{"a"}, doc["deletedBy"])

	forA, err := s.messages.ListByChat(s.ctx, model.ChatReport, "report_r_a_b", "a")
	s.Require().NoError(err)
	s.Len(forA, 1)
	forB, err := s.messages.ListByChat(s.ctx, model.ChatReport, "report_r_a_b", "b")
	s.Require().NoError(err)
	s.Len(forB, 2)

	s.Require().NoError(s.messages.HardDelete(s.ctx, first.ID))
	_, err = s.messages.GetByID(s.ctx, model.ChatReport, first.ID)
	s.ErrorIs(err, ErrNotFound)
}

func (s *RepositorySuite) TestNotificationsOwnership() {
	notifications := NewNotificationRepository(s.store)
	older := &model.Notification{UserID: "u", Type: model.NotifyPostLike, CreatedAt: time.Now().Add(-time.Minute)}
	newer := &model.Notification{UserID: "u", Type: model.NotifyFoundPet}
	s.Require().NoError(notifications.Create(s.ctx, older))
	s.Require().NoError(notifications.Create(s.ctx, newer))

	list, err := notifications.ListForUser(s.ctx, "u", 0)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(newer.ID, list[0].ID)

	s.ErrorIs(notifications.MarkRead(s.ctx, older.ID, "intruder"), ErrNotFound)
	s.Require().NoError(notifications.MarkRead(s.ctx, older.ID, "u"))
	list, err = notifications.ListForUser(s.ctx, "u", 1)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func TestSortMessages(t *testing.T) {
	now := time.Now()
	msgs := []model.Message{
		{ID: "c", Timestamp: now.Add(time.Second)},
		{ID: "b", Timestamp: now},
		{ID: "a", Timestamp: now},
	}
	SortMessages(msgs)
	got := []string{msgs[0].ID, msgs[1].ID, msgs[2].ID}
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected order %v", got)
	}
}

func ptr(s string) *string { return &s }

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) TestWatchThreadsHidesDeleted() {
	ctx, cancel := context.WithCancel(s.ctx)
	id, err := s.threads.Ensure(s.ctx, model.ChatDirect, "a", "b", "", "a")
	s.Require().NoError(err)

	ch, err := s.threads.Watch(ctx, model.ChatDirect, "b")
	s.Require().NoError(err)
	next := func() Event[model.ChatThread] {
		select {
		case ev := <-ch:
			return ev
		case <-time.After(2 * time.Second):
			s.FailNow("no event")
		}
		return Event[model.ChatThread]{}
	}

	ev := next()
	s.Equal(storage.ChangeAdded, ev.Type)
	s.Require().NotNil(ev.Item)
	s.Equal(id, ev.Item.ID)
	s.Equal(model.ChatDirect, ev.Item.Kind)

	s.Require().NoError(s.threads.SoftDelete(s.ctx, model.ChatDirect, id, "b"))
	ev = next()
	s.Equal(storage.ChangeRemoved, ev.Type)
	s.Nil(ev.Item)

	cancel()
	for range ch {
	}
}

func (s *RepositorySuite) TestWatchMessagesHidesForViewer() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	ch, err := s.messages.Watch(ctx, model.ChatReport, "report_r_a_b", "b")
	s.Require().NoError(err)

	m := &model.Message{ChatID: "report_r_a_b", Kind: model.ChatReport, SenderID: "a", Text: ptr("hi")}
	s.Require().NoError(s.messages.Create(s.ctx, m))
	select {
	case ev := <-ch:
		s.Equal(storage.ChangeAdded, ev.Type)
		s.Equal(m.ID, ev.ID)
	case <-time.After(2 * time.Second):
		s.FailNow("no added event")
	}

	s.Require().NoError(s.messages.HideForUser(s.ctx, model.ChatReport, m.ID, "b"))
	select {
	case ev := <-ch:
		s.Equal(storage.ChangeRemoved, ev.Type)
	case <-time.After(2 * time.Second):
		s.FailNow("no removed event")
	}
}
