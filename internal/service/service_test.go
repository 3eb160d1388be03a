package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pawsafe/internal/blob"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/repository"
	"github.com/pawsafe/internal/storage"
	"github.com/pawsafe/internal/storage/memory"
	"github.com/stretchr/testify/suite"
)

type pushCall struct {
	UserID string
	Title  string
	Data   map[string]string
}

type recordingPusher struct {
	mu    sync.Mutex
	calls []pushCall
	err   error
}

func (p *recordingPusher) Notify(_ context.Context, userID, title, _ string, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pushCall{UserID: userID, Title: title, Data: data})
	return p.err
}

func (p *recordingPusher) Calls() []pushCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushCall(nil), p.calls...)
}

type ServiceSuite struct {
	suite.Suite
	ctx    context.Context
	store  *memory.Store
	pusher *recordingPusher

	users         *repository.UserRepository
	blocks        *repository.BlockRepository
	friends       *repository.FriendRepository
	reports       *repository.ReportRepository
	posts         *repository.PostRepository
	comments      *repository.CommentRepository
	messages      *repository.MessageRepository
	threads       *repository.ThreadRepository
	notifications *repository.NotificationRepository

	fanout    *Fanout
	chat      *ChatService
	social    *SocialService
	commentSv *CommentService
	reportSv  *ReportService
	proximity *ProximityMatcher
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.pusher = &recordingPusher{}

	s.users = repository.NewUserRepository(s.store)
	s.blocks = repository.NewBlockRepository(s.store)
	s.friends = repository.NewFriendRepository(s.store)
	s.reports = repository.NewReportRepository(s.store)
	s.posts = repository.NewPostRepository(s.store)
	s.comments = repository.NewCommentRepository(s.store)
	s.messages = repository.NewMessageRepository(s.store)
	s.threads = repository.NewThreadRepository(s.store, s.messages, s.users, s.reports)
	s.notifications = repository.NewNotificationRepository(s.store)

	s.fanout = NewFanout(s.notifications, s.pusher, 4)
	s.chat = NewChatService(s.threads, s.messages, s.blocks, s.reports, s.users, blob.NewLocalStore(s.T().TempDir(), "/api/files"), s.fanout)
	s.social = NewSocialService(s.blocks, s.friends, s.posts, s.users, s.fanout)
	s.commentSv = NewCommentService(s.comments, s.posts, s.reports, s.users, NewMentionResolver(s.users), s.fanout)
	s.proximity = NewProximityMatcher(s.reports, s.fanout, DefaultMatchRadiusKm)
	s.reportSv = NewReportService(s.reports, s.proximity)

	for _, u := range []model.User{
		{ID: "alice", Name: "alice", DisplayName: "Alice"},
		{ID: "bob", Name: "bob", DisplayName: "Bob"},
		{ID: "carol", Name: "carol", DisplayName: "Mary Jane"},
		{ID: "admin", Name: "admin", IsAdmin: true},
	} {
		s.Require().NoError(s.users.Upsert(s.ctx, &u))
	}
}

func (s *ServiceSuite) TearDownTest() {
	s.proximity.Wait()
	s.Require().NoError(s.store.Close())
}

func (s *ServiceSuite) notificationsFor(userID string) []model.Notification {
	list, err := s.notifications.ListForUser(s.ctx, userID, 0)
	s.Require().NoError(err)
	return list
}

func (s *ServiceSuite) allNotifications() []storage.Document {
	docs, err := s.store.Query(s.ctx, repository.CollNotifications)
	s.Require().NoError(err)
	return docs
}

func (s *ServiceSuite) send(kind model.ChatKind, from, to, reportID, text string) (*model.Message, error) {
	return s.chat.Send(s.ctx, SendRequest{Kind: kind, SenderID: from, RecipientID: to, ReportID: reportID, Text: text})
}

// Fanout

func (s *ServiceSuite) TestSelfNotifySuppressed() {
	ok, err := s.fanout.Notify(s.ctx, "alice", Event{ActorID: "alice", Type: model.NotifyPostLike})
	s.Require().NoError(err)
	s.False(ok)
	s.Empty(s.allNotifications())
	s.Empty(s.pusher.Calls())
}

func (s *ServiceSuite) TestNotifyManyDeduplicates() {
	n := s.fanout.NotifyMany(s.ctx, []string{"A", "A", "B"}, Event{ActorID: "X", Type: model.NotifyPostComment})
	s.Equal(2, n)
	s.Len(s.allNotifications(), 2)

	n = s.fanout.NotifyMany(s.ctx, []string{"A", "A", "B"}, Event{ActorID: "A", Type: model.NotifyPostComment})
	s.Equal(1, n)
	s.Len(s.notificationsFor("B"), 2)
	s.Len(s.notificationsFor("A"), 1)
}

type failingWriter struct {
	inner   NotificationWriter
	failFor string
}

func (w failingWriter) Create(ctx context.Context, n *model.Notification) error {
	if n.UserID == w.failFor {
		return errors.New("write failed")
	}
	return w.inner.Create(ctx, n)
}

func (s *ServiceSuite) TestNotifyManyIsolatesFailures() {
	s.pusher.err = errors.New("push down")
	f := NewFanout(failingWriter{inner: s.notifications, failFor: "B"}, s.pusher, 2)

	n := f.NotifyMany(s.ctx, []string{"A", "B", "C"}, Event{ActorID: "X", Type: model.NotifyFoundPet})
	s.Equal(2, n)
	s.Len(s.notificationsFor("A"), 1)
	s.Empty(s.notificationsFor("B"))
	s.Len(s.notificationsFor("C"), 1)
	s.Len(s.pusher.Calls(), 2, "push failures are swallowed")
}

// Chat

func (s *ServiceSuite) TestSendCreatesThreadAndPushes() {
	msg, err := s.send(model.ChatDirect, "alice", "bob", "", "  hello  ")
	s.Require().NoError(err)
	s.Equal("direct_alice_bob", msg.ChatID)
	s.Equal("hello", *msg.Text)
	s.Equal("Alice", msg.SenderName)

	t, err := s.threads.GetByID(s.ctx, model.ChatDirect, msg.ChatID)
	s.Require().NoError(err)
	s.Equal([]string{"alice"}, t.ReadBy)
	s.Equal("hello", t.LastMessagePreview)

	calls := s.pusher.Calls()
	s.Require().Len(calls, 1)
	s.Equal("bob", calls[0].UserID)
	s.Equal(msg.ChatID, calls[0].Data["chatId"])
	s.Empty(s.allNotifications(), "chat messages are push-only")

	n, err := s.chat.UnreadCount(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Require().NoError(s.chat.MarkRead(s.ctx, model.ChatDirect, msg.ChatID, "bob"))
	n, err = s.chat.UnreadCount(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(0, n)
}

func (s *ServiceSuite) TestSendValidation() {
	_, err := s.send(model.ChatDirect, "alice", "bob", "", "   ")
	s.ErrorIs(err, ErrEmptyMessage)
	_, err = s.send(model.ChatDirect, "alice", "", "", "hi")
	s.Error(err)
	_, err = s.send(model.ChatDirect, "alice", "alice", "", "hi")
	s.ErrorIs(err, ErrForbidden)

	docs, err := s.store.Query(s.ctx, repository.CollDirectChats)
	s.Require().NoError(err)
	s.Empty(docs, "rejections write nothing")
}

func (s *ServiceSuite) TestSendBlockedBothDirections() {
	s.Require().NoError(s.social.Block(s.ctx, "bob", "alice"))

	_, err := s.send(model.ChatDirect, "alice", "bob", "", "hi")
	s.ErrorIs(err, ErrBlocked)
	_, err = s.send(model.ChatDirect, "bob", "alice", "", "hi")
	s.ErrorIs(err, ErrBlocked)

	s.Require().NoError(s.social.Unblock(s.ctx, "bob", "alice"))
	_, err = s.send(model.ChatDirect, "alice", "bob", "", "hi")
	s.NoError(err)
}

func (s *ServiceSuite) TestResolvedReportRejectsBothParticipants() {
	rep := &model.Report{UserID: "bob", Type: model.ReportLost, Location: model.Location{Latitude: 1, Longitude: 1}}
	s.Require().NoError(s.reportSv.Submit(s.ctx, rep))

	msg, err := s.send(model.ChatReport, "alice", "bob", rep.ID, "I saw your dog")
	s.Require().NoError(err)
	s.Equal("report_"+rep.ID+"_alice_bob", msg.ChatID)

	s.ErrorIs(s.reportSv.Resolve(s.ctx, rep.ID, "alice"), ErrForbidden)
	s.Require().NoError(s.reportSv.Resolve(s.ctx, rep.ID, "bob"))

	_, err = s.send(model.ChatReport, "alice", "bob", rep.ID, "still there?")
	s.ErrorIs(err, ErrReportResolved)
	_, err = s.send(model.ChatReport, "bob", "alice", rep.ID, "found him")
	s.ErrorIs(err, ErrReportResolved)

	items, err := s.chat.Threads(s.ctx, "alice", model.ViewActive)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal(model.ReportResolved, items[0].ReportStatus)
}

func (s *ServiceSuite) TestUnknownReportCannotStartThread() {
	_, err := s.send(model.ChatReport, "alice", "bob", "nonexistent", "is this yours?")
	s.ErrorIs(err, ErrReportNotFound)
	_, err = s.threads.GetByID(s.ctx, model.ChatReport, "report_nonexistent_alice_bob")
	s.ErrorIs(err, repository.ErrNotFound)

	// переписка уже есть, объявление удалили: её можно продолжать
	rep := &model.Report{UserID: "bob", Type: model.ReportLost}
	s.Require().NoError(s.reportSv.Submit(s.ctx, rep))
	_, err = s.send(model.ChatReport, "alice", "bob", rep.ID, "I saw your dog")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Delete(s.ctx, repository.CollReports, rep.ID))
	_, err = s.send(model.ChatReport, "bob", "alice", rep.ID, "thanks")
	s.NoError(err)
}

func (s *ServiceSuite) TestSoftDeleteThenRestore() {
	msg, err := s.send(model.ChatDirect, "alice", "bob", "", "hi")
	s.Require().NoError(err)
	s.Require().NoError(s.chat.DeleteThread(s.ctx, model.ChatDirect, msg.ChatID, "alice"))

	items, err := s.chat.Threads(s.ctx, "alice", model.ViewActive)
	s.Require().NoError(err)
	s.Empty(items)

	_, err = s.send(model.ChatDirect, "bob", "alice", "", "are you there?")
	s.Require().NoError(err)
	t, err := s.threads.GetByID(s.ctx, model.ChatDirect, msg.ChatID)
	s.Require().NoError(err)
	s.Empty(t.DeletedBy)
	s.Equal([]string{"bob"}, t.ReadBy)

	msgs, err := s.chat.Messages(s.ctx, model.ChatDirect, msg.ChatID, "alice")
	s.Require().NoError(err)
	s.Require().Len(msgs, 1, "messages hidden before deletion stay hidden")
	s.Equal("are you there?", *msgs[0].Text)
}

func (s *ServiceSuite) TestImagesBestEffort() {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 1, 2, 3}
	msg, err := s.chat.Send(s.ctx, SendRequest{
		Kind: model.ChatDirect, SenderID: "alice", RecipientID: "bob",
		Images: []Attachment{
			{Filename: "cat.png", ContentType: "image/png", Data: png},
			{Filename: "virus.exe", Data: []byte("MZ")},
		},
	})
	s.Require().NoError(err)
	s.Len(msg.Images, 1)
	s.Nil(msg.Text)

	t, err := s.threads.GetByID(s.ctx, model.ChatDirect, msg.ChatID)
	s.Require().NoError(err)
	s.Equal("📷 Photo", t.LastMessagePreview)

	_, err = s.chat.Send(s.ctx, SendRequest{
		Kind: model.ChatDirect, SenderID: "alice", RecipientID: "bob",
		Images: []Attachment{{Filename: "virus.exe", Data: []byte("MZ")}},
	})
	s.ErrorIs(err, ErrUploadFailed)
}

func (s *ServiceSuite) TestEditDeleteHide() {
	direct, err := s.send(model.ChatDirect, "alice", "bob", "", "typo")
	s.Require().NoError(err)

	s.ErrorIs(s.chat.Edit(s.ctx, model.ChatDirect, direct.ID, "bob", "nope"), ErrForbidden)
	s.ErrorIs(s.chat.Edit(s.ctx, model.ChatDirect, direct.ID, "carol", "nope"), repository.ErrNotFound)
	s.Require().NoError(s.chat.Edit(s.ctx, model.ChatDirect, direct.ID, "alice", "fixed"))

	s.ErrorIs(s.chat.Delete(s.ctx, model.ChatDirect, direct.ID, "bob"), ErrForbidden)
	s.Require().NoError(s.chat.Delete(s.ctx, model.ChatDirect, direct.ID, "alice"))
	got, err := s.messages.GetByID(s.ctx, model.ChatDirect, direct.ID)
	s.Require().NoError(err)
	s.True(got.Deleted)
	s.Nil(got.Text)
	s.ErrorIs(s.chat.Edit(s.ctx, model.ChatDirect, direct.ID, "alice", "back"), ErrMessageDeleted)

	rep := &model.Report{UserID: "bob", Type: model.ReportStray}
	s.Require().NoError(s.reportSv.Submit(s.ctx, rep))
	first, err := s.send(model.ChatReport, "alice", "bob", rep.ID, "one")
	s.Require().NoError(err)
	second, err := s.send(model.ChatReport, "bob", "alice", rep.ID, "two")
	s.Require().NoError(err)

	s.Require().NoError(s.chat.Delete(s.ctx, model.ChatReport, first.ID, "alice"))
	_, err = s.messages.GetByID(s.ctx, model.ChatReport, first.ID)
	s.ErrorIs(err, repository.ErrNotFound)

	s.Require().NoError(s.chat.Hide(s.ctx, model.ChatReport, second.ID, "alice"))
	forAlice, err := s.chat.Messages(s.ctx, model.ChatReport, second.ChatID, "alice")
	s.Require().NoError(err)
	s.Empty(forAlice)
	forBob, err := s.chat.Messages(s.ctx, model.ChatReport, second.ChatID, "bob")
	s.Require().NoError(err)
	s.Len(forBob, 1)
}

func (s *ServiceSuite) TestReportMessageNotifiesAdmins() {
	msg, err := s.send(model.ChatDirect, "bob", "alice", "", "rude words")
	s.Require().NoError(err)

	s.ErrorIs(s.chat.ReportMessage(s.ctx, model.ChatDirect, msg.ID, "bob", "self"), ErrForbidden)
	s.Require().NoError(s.chat.ReportMessage(s.ctx, model.ChatDirect, msg.ID, "alice", "abuse"))

	list := s.notificationsFor("admin")
	s.Require().Len(list, 1)
	s.Equal(model.NotifyAdminReport, list[0].Type)

	msgs, err := s.chat.Messages(s.ctx, model.ChatDirect, msg.ChatID, "alice")
	s.Require().NoError(err)
	s.Empty(msgs)
}

func (s *ServiceSuite) TestArchiveViews() {
	msg, err := s.send(model.ChatDirect, "alice", "bob", "", "hi")
	s.Require().NoError(err)
	s.Require().NoError(s.chat.Archive(s.ctx, model.ChatDirect, msg.ChatID, "bob"))

	archived, err := s.chat.Threads(s.ctx, "bob", model.ViewArchived)
	s.Require().NoError(err)
	s.Len(archived, 1)
	active, err := s.chat.Threads(s.ctx, "bob", "")
	s.Require().NoError(err)
	s.Empty(active)
	n, err := s.chat.UnreadCount(s.ctx, "bob")
	s.Require().NoError(err)
	s.Zero(n, "archived threads do not count as unread")

	s.Require().NoError(s.chat.Unarchive(s.ctx, model.ChatDirect, msg.ChatID, "bob"))
	active, err = s.chat.Threads(s.ctx, "bob", model.ViewActive)
	s.Require().NoError(err)
	s.Len(active, 1)

	_, err = s.chat.Threads(s.ctx, "bob", "bogus")
	s.ErrorIs(err, ErrInvalidInput)
}

// Social

func (s *ServiceSuite) TestPostLikeNotifiesOnce() {
	post := &model.Post{UserID: "bob", Text: "my cat"}
	s.Require().NoError(s.posts.Create(s.ctx, post))

	liked, err := s.social.TogglePostLike(s.ctx, post.ID, "alice")
	s.Require().NoError(err)
	s.True(liked)
	liked, err = s.social.TogglePostLike(s.ctx, post.ID, "alice")
	s.Require().NoError(err)
	s.False(liked)
	_, err = s.social.TogglePostLike(s.ctx, post.ID, "bob")
	s.Require().NoError(err)

	list := s.notificationsFor("bob")
	s.Require().Len(list, 1)
	s.Equal(model.NotifyPostLike, list[0].Type)
}

func (s *ServiceSuite) TestFriendRequestFlow() {
	s.Require().NoError(s.social.SendFriendRequest(s.ctx, "alice", "bob"))
	s.Require().Len(s.notificationsFor("bob"), 1)

	s.Require().NoError(s.social.AcceptFriendRequest(s.ctx, "bob", "alice"))
	ok, err := s.friends.AreFriends(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	s.True(ok)
	list := s.notificationsFor("alice")
	s.Require().Len(list, 1)
	s.Equal(model.NotifyFriendRequestAccepted, list[0].Type)

	s.ErrorIs(s.social.AcceptFriendRequest(s.ctx, "bob", "alice"), repository.ErrNotFound)

	s.Require().NoError(s.social.Block(s.ctx, "carol", "alice"))
	s.ErrorIs(s.social.SendFriendRequest(s.ctx, "alice", "carol"), ErrBlocked)
	s.ErrorIs(s.social.Block(s.ctx, "alice", "alice"), ErrInvalidInput)
}

// Comments

func (s *ServiceSuite) TestCommentMentionsReplaceGenericNotification() {
	post := &model.Post{UserID: "bob", Text: "lost cat"}
	s.Require().NoError(s.posts.Create(s.ctx, post))

	c, err := s.commentSv.Add(s.ctx, AddCommentRequest{
		Target: model.TargetPost, ContainerID: post.ID, UserID: "alice",
		Text: "@Bob hi, also @Mary Jane and @alice",
	})
	s.Require().NoError(err)
	s.ElementsMatch([]string{"bob", "carol", "alice"}, c.MentionedUsers)

	bob := s.notificationsFor("bob")
	s.Require().Len(bob, 1, "owner gets the mention only")
	s.Equal(model.NotifyCommentMention, bob[0].Type)
	s.Len(s.notificationsFor("carol"), 1)
	s.Empty(s.notificationsFor("alice"))

	reply, err := s.commentSv.Add(s.ctx, AddCommentRequest{
		Target: model.TargetPost, ContainerID: post.ID, ParentID: c.ID, UserID: "bob", Text: "thanks",
	})
	s.Require().NoError(err)
	s.True(reply.IsReply())
	alice := s.notificationsFor("alice")
	s.Require().Len(alice, 1)
	s.Equal(model.NotifyCommentReply, alice[0].Type)
}

func (s *ServiceSuite) TestReportCommentAndMentionReply() {
	rep := &model.Report{UserID: "bob", Type: model.ReportLost}
	s.Require().NoError(s.reportSv.Submit(s.ctx, rep))

	c, err := s.commentSv.Add(s.ctx, AddCommentRequest{Target: model.TargetReport, ContainerID: rep.ID, UserID: "alice", Text: "saw it"})
	s.Require().NoError(err)
	bob := s.notificationsFor("bob")
	s.Require().Len(bob, 1)
	s.Equal(model.NotifyReportComment, bob[0].Type)

	_, err = s.commentSv.Add(s.ctx, AddCommentRequest{
		Target: model.TargetReport, ContainerID: rep.ID, ParentID: c.ID, UserID: "bob", Text: "@Mary Jane look",
	})
	s.Require().NoError(err)
	carol := s.notificationsFor("carol")
	s.Require().Len(carol, 1)
	s.Equal(model.NotifyCommentMentionReply, carol[0].Type)

	_, err = s.commentSv.Add(s.ctx, AddCommentRequest{Target: model.TargetReport, ContainerID: "missing", UserID: "alice", Text: "x"})
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *ServiceSuite) TestCommentEditNotifiesNewMentionsOnly() {
	post := &model.Post{UserID: "bob"}
	s.Require().NoError(s.posts.Create(s.ctx, post))
	c, err := s.commentSv.Add(s.ctx, AddCommentRequest{Target: model.TargetPost, ContainerID: post.ID, UserID: "alice", Text: "@Mary Jane hi"})
	s.Require().NoError(err)
	s.Require().Len(s.notificationsFor("carol"), 1)

	_, err = s.commentSv.Edit(s.ctx, model.TargetPost, c.ID, "bob", "hijack")
	s.ErrorIs(err, ErrForbidden)

	edited, err := s.commentSv.Edit(s.ctx, model.TargetPost, c.ID, "alice", "@Mary Jane and @admin hi")
	s.Require().NoError(err)
	s.ElementsMatch([]string{"carol", "admin"}, edited.MentionedUsers)
	s.Len(s.notificationsFor("carol"), 1)
	s.Len(s.notificationsFor("admin"), 1)

	stored, err := s.comments.GetByID(s.ctx, model.TargetPost, c.ID)
	s.Require().NoError(err)
	s.NotNil(stored.EditedAt)
}

func (s *ServiceSuite) TestCommentDeleteRemovesSubtree() {
	post := &model.Post{UserID: "bob"}
	s.Require().NoError(s.posts.Create(s.ctx, post))
	root, err := s.commentSv.Add(s.ctx, AddCommentRequest{Target: model.TargetPost, ContainerID: post.ID, UserID: "alice", Text: "root"})
	s.Require().NoError(err)
	child, err := s.commentSv.Add(s.ctx, AddCommentRequest{Target: model.TargetPost, ContainerID: post.ID, ParentID: root.ID, UserID: "carol", Text: "child"})
	s.Require().NoError(err)
	_, err = s.commentSv.Add(s.ctx, AddCommentRequest{Target: model.TargetPost, ContainerID: post.ID, ParentID: child.ID, UserID: "alice", Text: "grandchild"})
	s.Require().NoError(err)
	other, err := s.commentSv.Add(s.ctx, AddCommentRequest{Target: model.TargetPost, ContainerID: post.ID, UserID: "carol", Text: "other"})
	s.Require().NoError(err)

	s.ErrorIs(s.commentSv.Delete(s.ctx, model.TargetPost, root.ID, "carol"), ErrForbidden)
	s.Require().NoError(s.commentSv.Delete(s.ctx, model.TargetPost, root.ID, "bob"), "post owner may delete")

	tree, err := s.commentSv.List(s.ctx, model.TargetPost, post.ID)
	s.Require().NoError(err)
	s.Require().Len(tree, 1)
	s.Equal(other.ID, tree[0].ID)
}

func (s *ServiceSuite) TestCommentLike() {
	post := &model.Post{UserID: "bob"}
	s.Require().NoError(s.posts.Create(s.ctx, post))
	c, err := s.commentSv.Add(s.ctx, AddCommentRequest{Target: model.TargetPost, ContainerID: post.ID, UserID: "alice", Text: "nice"})
	s.Require().NoError(err)

	liked, err := s.commentSv.ToggleLike(s.ctx, model.TargetPost, c.ID, "carol")
	s.Require().NoError(err)
	s.True(liked)
	liked, err = s.commentSv.ToggleLike(s.ctx, model.TargetPost, c.ID, "carol")
	s.Require().NoError(err)
	s.False(liked)

	list := s.notificationsFor("alice")
	s.Require().Len(list, 1)
	s.Equal(model.NotifyCommentLike, list[0].Type)
}

// Proximity

func (s *ServiceSuite) TestFoundReportNotifiesNearbyOwnersAsync() {
	base := model.Location{Latitude: 52.52, Longitude: 13.405}
	for _, rep := range []*model.Report{
		{UserID: "bob", Type: model.ReportLost, Location: offsetNorth(base, 2)},
		{UserID: "bob", Type: model.ReportLost, Location: offsetNorth(base, 3)},
		{UserID: "carol", Type: model.ReportLost, Location: offsetNorth(base, 50)},
		{UserID: "alice", Type: model.ReportLost, Location: base},
	} {
		s.Require().NoError(s.reportSv.Submit(s.ctx, rep))
	}

	found := &model.Report{UserID: "alice", Type: model.ReportFound, Location: base}
	s.Require().NoError(s.reportSv.Submit(s.ctx, found))
	s.proximity.Wait()

	bob := s.notificationsFor("bob")
	s.Require().Len(bob, 1, "one notification per owner")
	s.Equal(model.NotifyFoundPet, bob[0].Type)
	s.Equal(found.ID, bob[0].Data["foundReportId"])
	s.Empty(s.notificationsFor("carol"))
	s.Empty(s.notificationsFor("alice"))

	s.ErrorIs(s.reportSv.Submit(s.ctx, &model.Report{UserID: "alice", Type: "Unknown"}), ErrInvalidInput)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
