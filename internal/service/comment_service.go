package service

import (
	"context"
	"log/slog"
	"time"

	"modmixx/internal/models"
	"modmixx/internal/repository"
	"modmixx/internal/textguard"
)

// deletedPlaceholder replaces the content of soft-deleted comments in listings.
const deletedPlaceholder = "[deleted]"

type CommentService struct {
	commentRepo repository.CommentRepository
	trackRepo   repository.TrackRepository
	userRepo    repository.UserRepository
	guard       *textguard.Guard
	logger      *slog.Logger
}

type CreateCommentInput struct {
	UserID   uint
	TrackID  uint
	ParentID *uint
	Content  string
	// Website is a honeypot field that is invisible to humans. Anything in it
	// marks the submission as bot traffic.
	Website string
}

type UpdateCommentInput struct {
	UserID    uint
	CommentID uint
	Content   string
}

// CommentNode is one comment in the rendered thread tree.
type CommentNode struct {
	ID        uint           `json:"id"`
	Content   string         `json:"content"`
	Username  string         `json:"username"`
	Deleted   bool           `json:"deleted"`
	CreatedAt time.Time      `json:"created_at"`
	Replies   []*CommentNode `json:"replies,omitempty"`
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	trackRepo repository.TrackRepository,
	userRepo repository.UserRepository,
	guard *textguard.Guard,
	logger *slog.Logger,
) *CommentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommentService{
		commentRepo: commentRepo,
		trackRepo:   trackRepo,
		userRepo:    userRepo,
		guard:       guard,
		logger:      logger,
	}
}

// Create posts a comment, or a reply when ParentID is set. A filled honeypot
// returns success without persisting anything: the bot gets no signal that it
// was detected.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if in.Website != "" {
		s.logger.InfoContext(ctx, "honeypot tripped, dropping comment",
			"user_id", in.UserID, "track_id", in.TrackID)
		return nil, nil
	}

	if _, err := s.trackRepo.GetByID(ctx, in.TrackID); err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.TrackID != in.TrackID {
			return nil, models.NewValidationError("Parent comment belongs to a different track")
		}
		if parent.Deleted {
			return nil, models.NewValidationError("Cannot reply to a deleted comment")
		}
	}

	content, err := s.guard.Check(ctx, "comment", in.Content, models.MaxCommentLen)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, models.NewValidationError("Comment cannot be empty")
	}

	comment := &models.Comment{
		Content:  content,
		UserID:   in.UserID,
		TrackID:  in.TrackID,
		ParentID: in.ParentID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, comment.ID)
}

// Update edits a comment's content. Owner only.
func (s *CommentService) Update(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only edit your own comments")
	}
	if comment.Deleted {
		return nil, models.NewValidationError("Cannot edit a deleted comment")
	}

	content, err := s.guard.Check(ctx, "comment", in.Content, models.MaxCommentLen)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, models.NewValidationError("Comment cannot be empty")
	}

	comment.Content = content
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, comment.ID)
}

// Delete removes a comment (owner or admin). A comment with surviving replies
// is only soft-deleted so the thread below it stays readable; a leaf is
// removed outright, and the deletion then walks up the parent chain erasing
// soft-deleted ancestors that no longer anchor any reply.
func (s *CommentService) Delete(ctx context.Context, userID, commentID uint) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID {
		admin, err := s.isAdmin(ctx, userID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewUnauthorizedError("You can only delete your own comments")
		}
	}

	// Any reply row, live or soft-deleted, pins the comment: a soft-deleted
	// child still references this row as its parent.
	replies, err := s.commentRepo.CountReplies(ctx, commentID)
	if err != nil {
		return err
	}
	if replies > 0 {
		comment.Deleted = true
		return s.commentRepo.Update(ctx, comment)
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return err
	}
	return s.pruneAncestors(ctx, comment.ParentID)
}

// pruneAncestors hard-deletes soft-deleted ancestors left with no replies.
// The visited set guards against a corrupted parent cycle looping forever.
func (s *CommentService) pruneAncestors(ctx context.Context, parentID *uint) error {
	visited := make(map[uint]struct{})
	for parentID != nil {
		id := *parentID
		if _, seen := visited[id]; seen {
			s.logger.ErrorContext(ctx, "comment parent cycle detected", "comment_id", id)
			return nil
		}
		visited[id] = struct{}{}

		parent, err := s.commentRepo.GetByID(ctx, id)
		if err != nil {
			// Already gone (or unreadable); nothing left to prune.
			return nil
		}
		if !parent.Deleted {
			return nil
		}
		replies, err := s.commentRepo.CountReplies(ctx, id)
		if err != nil {
			return err
		}
		if replies > 0 {
			return nil
		}

		if err := s.commentRepo.Delete(ctx, id); err != nil {
			return err
		}
		parentID = parent.ParentID
	}
	return nil
}

// ListByTrack returns the visible comment tree for a track, oldest first at
// every level. Soft-deleted comments appear as placeholders so their replies
// keep context.
func (s *CommentService) ListByTrack(ctx context.Context, trackID uint) ([]*CommentNode, error) {
	if _, err := s.trackRepo.GetByID(ctx, trackID); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByTrack(ctx, trackID)
	if err != nil {
		return nil, err
	}

	nodes := make(map[uint]*CommentNode, len(comments))
	var roots []*CommentNode
	for _, c := range comments {
		node := &CommentNode{
			ID:        c.ID,
			Content:   c.Content,
			Username:  c.User.Profile.Username,
			Deleted:   c.Deleted,
			CreatedAt: c.CreatedAt,
		}
		if c.Deleted {
			node.Content = deletedPlaceholder
			node.Username = ""
		}
		nodes[c.ID] = node
	}
	for _, c := range comments {
		node := nodes[c.ID]
		if c.ParentID != nil {
			if parent, ok := nodes[*c.ParentID]; ok {
				parent.Replies = append(parent.Replies, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots, nil
}

func (s *CommentService) isAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}
