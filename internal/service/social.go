package service

import (
	"context"

	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/repository"
)

// SocialService — блокировки, заявки в друзья и лайки постов.
type SocialService struct {
	blocks  *repository.BlockRepository
	friends *repository.FriendRepository
	posts   *repository.PostRepository
	users   *repository.UserRepository
	fanout  *Fanout
}

func NewSocialService(
	blocks *repository.BlockRepository,
	friends *repository.FriendRepository,
	posts *repository.PostRepository,
	users *repository.UserRepository,
	fanout *Fanout,
) *SocialService {
	return &SocialService{blocks: blocks, friends: friends, posts: posts, users: users, fanout: fanout}
}

func (s *SocialService) Block(ctx context.Context, blocker, blocked string) error {
	if blocker == "" || blocked == "" || blocker == blocked {
		return ErrInvalidInput
	}
	return s.blocks.Block(ctx, blocker, blocked)
}

// Unblock снимает только собственную блокировку blocker → blocked.
func (s *SocialService) Unblock(ctx context.Context, blocker, blocked string) error {
	if blocker == "" || blocked == "" {
		return ErrInvalidInput
	}
	return s.blocks.Unblock(ctx, blocker, blocked)
}

func (s *SocialService) ListBlocked(ctx context.Context, blocker string) ([]model.Block, error) {
	return s.blocks.ListBlocked(ctx, blocker)
}

// SendFriendRequest создаёт заявку и уведомляет адресата. При блокировке в любую сторону — ErrBlocked.
func (s *SocialService) SendFriendRequest(ctx context.Context, from, to string) error {
	if from == "" || to == "" || from == to {
		return ErrInvalidInput
	}
	ok, err := s.blocks.CanSend(ctx, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBlocked
	}
	friends, err := s.friends.AreFriends(ctx, from, to)
	if err != nil {
		return err
	}
	if friends {
		return nil
	}
	if _, err := s.friends.CreateRequest(ctx, from, to); err != nil {
		return err
	}
	name := s.users.Snapshot(ctx, from).Name
	_, err = s.fanout.Notify(ctx, to, Event{
		ActorID: from,
		Type:    model.NotifyFriendRequest,
		Title:   "New friend request",
		Body:    name + " sent you a friend request",
		Data:    map[string]string{"fromUserId": from},
	})
	logFanoutErr("friend request", err)
	return nil
}

// AcceptFriendRequest принимает заявку from → userID.
func (s *SocialService) AcceptFriendRequest(ctx context.Context, userID, from string) error {
	if _, err := s.friends.GetRequest(ctx, from, userID); err != nil {
		return err
	}
	ok, err := s.blocks.CanSend(ctx, userID, from)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBlocked
	}
	if err := s.friends.Accept(ctx, from, userID); err != nil {
		return err
	}
	name := s.users.Snapshot(ctx, userID).Name
	_, err = s.fanout.Notify(ctx, from, Event{
		ActorID: userID,
		Type:    model.NotifyFriendRequestAccepted,
		Title:   "Friend request accepted",
		Body:    name + " accepted your friend request",
		Data:    map[string]string{"userId": userID},
	})
	logFanoutErr("friend accept", err)
	return nil
}

// TogglePostLike ставит или снимает лайк; владелец уведомляется только о новом лайке.
func (s *SocialService) TogglePostLike(ctx context.Context, postID, userID string) (bool, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return false, err
	}
	liked := true
	for _, id := range post.Likes {
		if id == userID {
			liked = false
			break
		}
	}
	if err := s.posts.SetLike(ctx, postID, userID, liked); err != nil {
		return false, err
	}
	if liked {
		name := s.users.Snapshot(ctx, userID).Name
		_, err := s.fanout.Notify(ctx, post.UserID, Event{
			ActorID: userID,
			Type:    model.NotifyPostLike,
			Title:   "New like",
			Body:    name + " liked your post",
			Data:    map[string]string{"postId": postID},
		})
		logFanoutErr("post like", err)
	}
	return liked, nil
}
