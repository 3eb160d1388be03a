package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/repository"
)

type CommentService struct {
	comments *repository.CommentRepository
	posts    *repository.PostRepository
	reports  *repository.ReportRepository
	users    *repository.UserRepository
	mentions *MentionResolver
	fanout   *Fanout
}

func NewCommentService(
	comments *repository.CommentRepository,
	posts *repository.PostRepository,
	reports *repository.ReportRepository,
	users *repository.UserRepository,
	mentions *MentionResolver,
	fanout *Fanout,
) *CommentService {
	return &CommentService{comments: comments, posts: posts, reports: reports, users: users, mentions: mentions, fanout: fanout}
}

type AddCommentRequest struct {
	Target      model.CommentTarget
	ContainerID string
	ParentID    string
	UserID      string
	Text        string
}

// containerOwner возвращает автора поста или объявления.
func (s *CommentService) containerOwner(ctx context.Context, target model.CommentTarget, id string) (string, error) {
	if target == model.TargetReport {
		rep, err := s.reports.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return rep.UserID, nil
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return post.UserID, nil
}

// resolveMentions: сбой справочника не мешает сохранить комментарий.
func (s *CommentService) resolveMentions(ctx context.Context, text string) []string {
	ids, err := s.mentions.ResolveText(ctx, text)
	if err != nil {
		logger.Errorf("resolve mentions: %v", err)
		return []string{}
	}
	if ids == nil {
		return []string{}
	}
	return ids
}

func mentionType(reply bool) model.NotificationType {
	if reply {
		return model.NotifyCommentMentionReply
	}
	return model.NotifyCommentMention
}

func commentData(target model.CommentTarget, c *model.Comment) map[string]string {
	data := map[string]string{
		"targetType":  string(target),
		"containerId": c.ContainerID(),
		"commentId":   c.ID,
	}
	if c.IsReply() {
		data["parentCommentId"] = *c.ParentCommentID
	}
	return data
}

// Add сохраняет комментарий или ответ и рассылает уведомления:
// упомянутым — mention, владельцу поста/объявления или родительского комментария — comment/reply,
// если он уже не получил mention.
func (s *CommentService) Add(ctx context.Context, req AddCommentRequest) (*model.Comment, error) {
	text := strings.TrimSpace(req.Text)
	if !req.Target.Valid() || req.ContainerID == "" || req.UserID == "" || text == "" {
		return nil, ErrInvalidInput
	}
	owner, err := s.containerOwner(ctx, req.Target, req.ContainerID)
	if err != nil {
		return nil, err
	}

	var parent *model.Comment
	if req.ParentID != "" {
		parent, err = s.comments.GetByID(ctx, req.Target, req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.ContainerID() != req.ContainerID {
			return nil, ErrInvalidInput
		}
	}

	author := s.users.Snapshot(ctx, req.UserID)
	c := &model.Comment{
		UserID:         req.UserID,
		UserName:       author.Name,
		Text:           text,
		MentionedUsers: s.resolveMentions(ctx, text),
	}
	if req.Target == model.TargetReport {
		c.ReportID = req.ContainerID
	} else {
		c.PostID = req.ContainerID
	}
	if parent != nil {
		pid := parent.ID
		c.ParentCommentID = &pid
	}
	if err := s.comments.Create(ctx, req.Target, c); err != nil {
		return nil, err
	}

	data := commentData(req.Target, c)
	s.fanout.NotifyMany(ctx, c.MentionedUsers, Event{
		ActorID: req.UserID,
		Type:    mentionType(parent != nil),
		Title:   "You were mentioned",
		Body:    author.Name + " mentioned you: " + Preview(text, 0),
		Data:    data,
	})

	ev := Event{ActorID: req.UserID, Data: data}
	target := owner
	switch {
	case parent != nil:
		target = parent.UserID
		ev.Type = model.NotifyCommentReply
		ev.Title = "New reply"
		ev.Body = author.Name + " replied to your comment: " + Preview(text, 0)
	case req.Target == model.TargetReport:
		ev.Type = model.NotifyReportComment
		ev.Title = "New comment"
		ev.Body = author.Name + " commented on your report: " + Preview(text, 0)
	default:
		ev.Type = model.NotifyPostComment
		ev.Title = "New comment"
		ev.Body = author.Name + " commented on your post: " + Preview(text, 0)
	}
	if len(Recipients([]string{target}, c.MentionedUsers...)) > 0 {
		_, err := s.fanout.Notify(ctx, target, ev)
		logFanoutErr(string(ev.Type), err)
	}
	return c, nil
}

// Edit меняет текст (только автор), пересчитывает упоминания и уведомляет только новых упомянутых.
func (s *CommentService) Edit(ctx context.Context, target model.CommentTarget, id, userID, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if !target.Valid() || text == "" {
		return nil, ErrInvalidInput
	}
	c, err := s.comments.GetByID(ctx, target, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrForbidden
	}
	mentioned := s.resolveMentions(ctx, text)
	if err := s.comments.UpdateText(ctx, target, id, text, mentioned); err != nil {
		return nil, err
	}
	added := Recipients(mentioned, c.MentionedUsers...)
	c.Text = text
	c.MentionedUsers = mentioned

	if len(added) > 0 {
		name := s.users.Snapshot(ctx, userID).Name
		s.fanout.NotifyMany(ctx, added, Event{
			ActorID: userID,
			Type:    mentionType(c.IsReply()),
			Title:   "You were mentioned",
			Body:    name + " mentioned you: " + Preview(text, 0),
			Data:    commentData(target, c),
		})
	}
	return c, nil
}

// Delete удаляет комментарий вместе со всеми ответами. Разрешено автору комментария и владельцу контейнера.
func (s *CommentService) Delete(ctx context.Context, target model.CommentTarget, id, userID string) error {
	if !target.Valid() {
		return ErrInvalidInput
	}
	c, err := s.comments.GetByID(ctx, target, id)
	if err != nil {
		return err
	}
	if c.UserID != userID {
		owner, err := s.containerOwner(ctx, target, c.ContainerID())
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if owner != userID {
			return ErrForbidden
		}
	}
	all, err := s.comments.ListByContainer(ctx, target, c.ContainerID())
	if err != nil {
		return err
	}
	var errs []error
	for _, cid := range Subtree(all, id) {
		if err := s.comments.Delete(ctx, target, cid); err != nil && !errors.Is(err, repository.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ToggleLike ставит или снимает лайк; автор уведомляется только о новом лайке.
func (s *CommentService) ToggleLike(ctx context.Context, target model.CommentTarget, id, userID string) (bool, error) {
	if !target.Valid() {
		return false, ErrInvalidInput
	}
	c, err := s.comments.GetByID(ctx, target, id)
	if err != nil {
		return false, err
	}
	liked := !c.LikedBy(userID)
	if err := s.comments.SetLike(ctx, target, id, userID, liked); err != nil {
		return false, err
	}
	if liked {
		name := s.users.Snapshot(ctx, userID).Name
		_, err := s.fanout.Notify(ctx, c.UserID, Event{
			ActorID: userID,
			Type:    model.NotifyCommentLike,
			Title:   "New like",
			Body:    name + " liked your comment",
			Data:    commentData(target, c),
		})
		logFanoutErr("comment like", err)
	}
	return liked, nil
}

// List возвращает дерево комментариев контейнера.
func (s *CommentService) List(ctx context.Context, target model.CommentTarget, containerID string) ([]*model.CommentNode, error) {
	if !target.Valid() {
		return nil, ErrInvalidInput
	}
	all, err := s.comments.ListByContainer(ctx, target, containerID)
	if err != nil {
		return nil, err
	}
	return BuildCommentTree(all), nil
}

// BuildCommentTree строит дерево за один проход по индексу parent → children.
// Дети на каждом уровне по createdAt по возрастанию; ответы на отсутствующие комментарии отбрасываются.
func BuildCommentTree(comments []model.Comment) []*model.CommentNode {
	nodes := make(map[string]*model.CommentNode, len(comments))
	for i := range comments {
		nodes[comments[i].ID] = &model.CommentNode{Comment: comments[i], Replies: []*model.CommentNode{}}
	}
	roots := []*model.CommentNode{}
	for i := range comments {
		n := nodes[comments[i].ID]
		if !n.IsReply() {
			roots = append(roots, n)
			continue
		}
		if parent, ok := nodes[*n.ParentCommentID]; ok {
			parent.Replies = append(parent.Replies, n)
		}
	}
	for _, n := range nodes {
		sortNodes(n.Replies)
	}
	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*model.CommentNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if !nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// Subtree возвращает id комментария и всех его потомков.
func Subtree(comments []model.Comment, rootID string) []string {
	children := make(map[string][]string)
	for _, c := range comments {
		if c.IsReply() {
			children[*c.ParentCommentID] = append(children[*c.ParentCommentID], c.ID)
		}
	}
	out := []string{}
	seen := map[string]bool{}
	stack := []string{rootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		stack = append(stack, children[id]...)
	}
	return out
}
